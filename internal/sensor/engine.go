package sensor

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Tolerance constants, expressed as per-board-version constants rather
// than global magic numbers.
const (
	ToleranceV2 = 0.15 // volts, BASIC channel comparison against reference
	ToleranceV3 = 0.15 // volts, NORMAL/CHANNEL_A/CHANNEL_B strategy comparison
)

// ErrValidation is returned by Validate when the sensor layout or
// calibration state does not meet the pre-READY invariants.
var ErrValidation = fmt.Errorf("sensor: validation failed")

// StateRepo persists per-sensor (alert, error) flags and is implemented by
// internal/repo. It is invoked only on observable change.
type StateRepo interface {
	SaveSensorState(ctx context.Context, sensorID int, alert, errFlag bool) error
}

// Config bundles the sensor engine's runtime parameters, filled in from
// the bootstrap YAML config.
type Config struct {
	SampleRateHz       float64
	VRef               float64
	Wiring             PullUpConfig
	BoardHasEOL        bool // true for v2 (resistive-divider) boards only
	MeasurementCycles  int
	MeasurementTime    time.Duration
	ChannelCount       int
	V2DuplicateCheck   bool
}

type sensorState struct {
	sensor   *model.Sensor
	window   *Window
	strategy Strategy
	lastAlert bool
	lastError bool
}

// Engine is the sensor sampling loop: it owns one Window per sensor,
// derives wiring strategies, classifies alert/error on each tick, and
// publishes observable changes.
type Engine struct {
	in     hal.SensorInput
	repo   StateRepo
	b      *bus.Bus
	logger *log.Logger
	cfg    Config

	mu    sync.RWMutex
	states []*sensorState

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs an Engine. Calibrate and Validate must both succeed
// before Start is called, matching the pre-READY contract.
func New(in hal.SensorInput, repo StateRepo, b *bus.Bus, logger *log.Logger, cfg Config) (*Engine, error) {
	if in == nil || repo == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	if cfg.SampleRateHz <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be > 0", sysutil.ErrInvalidArgument)
	}
	return &Engine{
		in:     in,
		repo:   repo,
		b:      b,
		logger: logger,
		cfg:    cfg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Validate checks the pre-READY invariants: sensor count
// against channel count, duplicate channels on v2, and that every
// non-deleted sensor is calibrated.
func Validate(sensors []*model.Sensor, channelCount int, v2DuplicateCheck bool) error {
	if err := model.ValidateLayout(sensors, channelCount, v2DuplicateCheck); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := model.ValidateCalibration(sensors); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// LoadSensors (re)builds the engine's per-sensor window/strategy state
// from a freshly loaded sensor set. Called once at startup.
func (e *Engine) LoadSensors(sensors []*model.Sensor) error {
	states := make([]*sensorState, 0, len(sensors))
	for _, s := range sensors {
		if s.Deleted || !s.HasChannel() || !s.Enabled {
			continue
		}
		size := s.WindowSize(e.cfg.SampleRateHz)
		w, err := NewWindow(size, s.EffectiveThreshold())
		if err != nil {
			return fmt.Errorf("sensor: load sensor %d: %w", s.ID, err)
		}
		states = append(states, &sensorState{
			sensor:   s,
			window:   w,
			strategy: Resolve(e.cfg.Wiring, e.cfg.VRef, s),
		})
	}

	e.mu.Lock()
	e.states = states
	e.mu.Unlock()
	return nil
}

// Start runs the sampling loop until ctx is canceled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		defer sysutil.RecoverGoPanic("sensor-engine", e.logger)
		defer close(e.done)
		defer e.Stop()

		interval := time.Duration(float64(time.Second) / e.cfg.SampleRateHz)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				e.tick(ctx)
			}
		}
	}()
}

// Stop requests the sampling loop to exit.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stop) })
}

// Done reports when the sampling loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) tick(ctx context.Context) {
	e.mu.RLock()
	states := e.states
	e.mu.RUnlock()

	anyAlert, anyError := false, false

	for _, st := range states {
		v, err := e.in.ReadChannel(ctx, st.sensor.Channel)
		if err != nil {
			e.logger.Printf("sensor: read channel %d: %v", st.sensor.Channel, err)
			continue
		}

		raw, errFlag := classify(st, v, e.cfg.BoardHasEOL)
		qualified := st.window.Push(raw)

		if qualified {
			anyAlert = true
		}
		if errFlag {
			anyError = true
		}

		if qualified != st.lastAlert || errFlag != st.lastError {
			st.lastAlert = qualified
			st.lastError = errFlag
			st.sensor.Alert = qualified
			st.sensor.Error = errFlag
			if err := e.repo.SaveSensorState(ctx, st.sensor.ID, qualified, errFlag); err != nil {
				e.logger.Printf("sensor: persist sensor %d state: %v", st.sensor.ID, err)
			}
			e.b.Publish("sensor_state_change", SensorStateChange{
				SensorID: st.sensor.ID,
				Channel:  st.sensor.Channel,
				Alert:    qualified,
				Error:    errFlag,
			})
		}
	}

	e.b.Publish("sensor_aggregate", Aggregate{AnyAlert: anyAlert, AnyError: anyError})
}

// SensorStateChange is published whenever one sensor's observable
// (alert, error) pair changes.
type SensorStateChange struct {
	SensorID int
	Channel  int
	Alert    bool
	Error    bool
}

// Aggregate is published on every tick with the OR of all sensors' flags.
type Aggregate struct {
	AnyAlert bool
	AnyError bool
}

func classify(st *sensorState, v float64, boardHasEOL bool) (alert, errFlag bool) {
	s := st.sensor

	switch s.ChannelType {
	case model.ChannelA, model.ChannelB:
		d := st.strategy.Dual
		aActive := math.Abs(v-d.AActive) <= ToleranceV3
		bActive := math.Abs(v-d.BActive) <= ToleranceV3
		bothActive := math.Abs(v-d.BothActive) <= ToleranceV3

		if s.ChannelType == model.ChannelA {
			alert = (aActive || bothActive)
		} else {
			alert = (bActive || bothActive)
		}

		if boardHasEOL {
			known := math.Abs(v-d.Default) <= ToleranceV3 || aActive || bActive || bothActive
			errFlag = !known
		}
		return alert, errFlag

	case model.ChannelNormal:
		alert = math.Abs(v-st.strategy.Active) <= ToleranceV3
		if boardHasEOL {
			known := math.Abs(v-st.strategy.Default) <= ToleranceV3 || alert
			errFlag = !known
		}
		return alert, errFlag

	default: // BASIC
		if s.ReferenceValue == nil {
			return false, false
		}
		alert = math.Abs(v-*s.ReferenceValue) >= ToleranceV2
		return alert, false
	}
}
