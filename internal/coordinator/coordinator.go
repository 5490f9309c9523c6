// Package coordinator wires the sensor engine's per-sensor events into
// the alert controller and republishes the plural sensor fan-out events,
// resolving each sensor's zone and area inline as events arrive.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/alert"
	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/sensor"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// AlertTrigger is internal/alert's Controller, consumed here only
// through Trigger/Clear.
type AlertTrigger interface {
	Trigger(ctx context.Context, p alert.TriggerParams)
	Clear(ctx context.Context, channel int)
}

// AreaSource resolves the arm state and open Arm a triggering sensor's
// area is subject to, implemented by internal/area's Controller.
type AreaSource interface {
	AreaState(areaID int) (model.ArmState, bool)
	OpenArm() *model.Arm
}

// MonitoringSource reports the current monitoring state, implemented by
// internal/statestore's Store.
type MonitoringSource interface {
	Monitoring() statestore.MonitoringState
}

// Lookup resolves a sensor by its channel and a zone by its ID from the
// static entity set loaded at startup.
type Lookup struct {
	sensors map[int]*model.Sensor // by channel
	zones   map[int]*model.Zone
}

// NewLookup indexes sensors by channel and zones by ID, skipping
// deleted rows.
func NewLookup(sensors []*model.Sensor, zones []*model.Zone) *Lookup {
	l := &Lookup{sensors: make(map[int]*model.Sensor), zones: make(map[int]*model.Zone)}
	for _, s := range sensors {
		if s.Deleted || !s.HasChannel() {
			continue
		}
		l.sensors[s.Channel] = s
	}
	for _, z := range zones {
		if z.Deleted {
			continue
		}
		l.zones[z.ID] = z
	}
	return l
}

// Sensor resolves a sensor by channel.
func (l *Lookup) Sensor(channel int) (*model.Sensor, bool) {
	s, ok := l.sensors[channel]
	return s, ok
}

// Zone resolves a zone by ID.
func (l *Lookup) Zone(id int) (*model.Zone, bool) {
	z, ok := l.zones[id]
	return z, ok
}

// Bridge subscribes to "sensor_state_change", resolves each sensor's
// zone/area, drives the alert controller, and republishes the plural
// "sensors_state_change"/"sensors_error_change" events the UI/MQTT fan-out
// expect, each carrying the full *model.Sensor.
type Bridge struct {
	lookup *Lookup
	alert  AlertTrigger
	areas  AreaSource
	state  MonitoringSource
	b      *bus.Bus
	logger *log.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs a Bridge over the given static sensor/zone set.
func New(sensors []*model.Sensor, zones []*model.Zone, alertCtl AlertTrigger, areas AreaSource, state MonitoringSource, b *bus.Bus, logger *log.Logger) (*Bridge, error) {
	if alertCtl == nil || areas == nil || state == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Bridge{
		lookup: NewLookup(sensors, zones),
		alert:  alertCtl, areas: areas, state: state, b: b, logger: logger,
		stop: make(chan struct{}), done: make(chan struct{}),
	}, nil
}

// Start runs the bridge loop until ctx is canceled or Stop is called.
func (br *Bridge) Start(ctx context.Context) {
	msgs, subID := br.b.Subscribe(64, "sensor_state_change")

	go func() {
		defer sysutil.RecoverGoPanic("coordinator-bridge", br.logger)
		defer close(br.done)
		defer br.b.Unsubscribe(subID)

		for {
			select {
			case <-ctx.Done():
				return
			case <-br.stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				br.handle(ctx, msg)
			}
		}
	}()
}

// Stop requests the bridge loop to exit.
func (br *Bridge) Stop() {
	br.once.Do(func() { close(br.stop) })
}

// Done reports when the bridge loop has exited.
func (br *Bridge) Done() <-chan struct{} { return br.done }

func (br *Bridge) handle(ctx context.Context, msg bus.Message) {
	sc, ok := msg.Payload.(sensor.SensorStateChange)
	if !ok {
		return
	}
	s, ok := br.lookup.Sensor(sc.Channel)
	if !ok {
		return
	}
	zone, ok := br.lookup.Zone(s.ZoneID)
	if !ok {
		br.logger.Printf("coordinator: sensor %d references unknown zone %d", s.ID, s.ZoneID)
		return
	}

	s.Alert = sc.Alert
	s.Error = sc.Error
	br.b.Publish("sensors_state_change", s)
	if sc.Error {
		br.b.Publish("sensors_error_change", s)
	}

	if !sc.Alert {
		br.alert.Clear(ctx, sc.Channel)
		return
	}

	areaState, _ := br.areas.AreaState(s.AreaID)

	var armID *int
	var armTime time.Time
	if arm := br.areas.OpenArm(); arm != nil {
		id := arm.ID
		armID = &id
		armTime = arm.Time
	}

	br.alert.Trigger(ctx, alert.TriggerParams{
		Sensor:        s,
		Zone:          zone,
		AreaState:     areaState,
		Current:       br.state.Monitoring(),
		ArmID:         armID,
		ArmTime:       armTime,
		SuppressionID: suppressionID(s),
	})
}

func suppressionID(s *model.Sensor) string {
	period := 0
	if s.MonitorPeriod != nil {
		period = *s.MonitorPeriod
	}
	return fmt.Sprintf("%d/%d", period, s.EffectiveThreshold())
}
