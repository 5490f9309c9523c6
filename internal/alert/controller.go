// Package alert implements the alert controller: funnels per-sensor
// qualifying triggers into at most one open Alert, starts the siren and
// the "alert started"/"alert stopped" notifications, and reconciles
// clearing sensors and disarm.
package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/monitor"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Repo persists Alert/AlertSensor rows. Implemented by internal/repo.
type Repo interface {
	OpenAlert(ctx context.Context, armID *int, start time.Time) (int, error)
	AddAlertSensor(ctx context.Context, alertID int, as *model.AlertSensor) error
	CloseAlertSensor(ctx context.Context, alertID int, channel int, end time.Time) error
	CloseAlert(ctx context.Context, alertID int, end time.Time, disarmID *int) error
}

// Siren is the C6 driver, consumed here only through Start/Stop.
type Siren interface {
	Start(ctx context.Context, silent bool)
	Stop(ctx context.Context)
}

// Notifier is the C9 queue, consumed here only for the two alert events.
type Notifier interface {
	NotifyAlertStarted(ctx context.Context, sensors []*model.AlertSensor)
	NotifyAlertStopped(ctx context.Context, alertID int)
}

// MonitoringSetter is internal/statestore's Store, consumed here so
// alert/sabotage transitions go through the one place that owns
// "system_state_change" fan-out instead of this package publishing the
// same tag directly and leaving the store's own snapshot stale.
type MonitoringSetter interface {
	SetMonitoring(statestore.MonitoringState)
}

type pending struct {
	cancel context.CancelFunc
}

// Controller is the alert funnel. Trigger/Clear/StopAll are safe for
// concurrent use; Trigger spawns a per-sensor delayed-start goroutine
// cancelable by a disarm arriving before the delay elapses.
type Controller struct {
	repo     Repo
	siren    Siren
	notifier Notifier
	state    MonitoringSetter
	b        *bus.Bus
	logger   *log.Logger

	mu       sync.Mutex
	current  *model.Alert
	alertID  int
	pendings map[int]*pending // channel -> cancelable delayed start
}

// New constructs a Controller.
func New(repo Repo, siren Siren, notifier Notifier, state MonitoringSetter, b *bus.Bus, logger *log.Logger) (*Controller, error) {
	if repo == nil || siren == nil || notifier == nil || state == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Controller{
		repo: repo, siren: siren, notifier: notifier, state: state, b: b, logger: logger,
		pendings: make(map[int]*pending),
	}, nil
}

// TriggerParams bundles the per-sensor context Trigger needs to compute
// the alert type and delay and to honor the arming grace window.
type TriggerParams struct {
	Sensor        *model.Sensor
	Zone          *model.Zone
	AreaState     model.ArmState
	Current       statestore.MonitoringState
	ArmID         *int
	ArmTime       time.Time
	SuppressionID string // "period/threshold" snapshot for the AlertSensor row
}

// Trigger handles one qualified windowed-alert sample for a sensor. It is
// idempotent: a channel already pending or already part of the open
// Alert is not re-triggered.
func (c *Controller) Trigger(ctx context.Context, p TriggerParams) {
	alertType := monitor.SelectAlertType(p.Zone, p.AreaState)
	delay := monitor.SelectDelay(p.Zone, alertType, p.Current)
	if alertType == monitor.AlertNone || delay == nil {
		return
	}

	c.mu.Lock()
	if _, already := c.pendings[p.Sensor.Channel]; already {
		c.mu.Unlock()
		return
	}
	if c.current != nil {
		for _, as := range c.current.Sensors {
			if as.Channel == p.Sensor.Channel && as.Open() {
				c.mu.Unlock()
				return
			}
		}
	}

	if p.Current != statestore.AlertDelay && p.ArmID != nil {
		if p.ArmTime.Add(time.Duration(*delay) * time.Second).After(time.Now()) {
			c.mu.Unlock()
			return
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.pendings[p.Sensor.Channel] = &pending{cancel: cancel}
	c.mu.Unlock()

	go func() {
		defer sysutil.RecoverGoPanic("alert-trigger", c.logger)

		select {
		case <-runCtx.Done():
			return
		case <-time.After(time.Duration(*delay) * time.Second):
		}

		silent := p.Sensor.SilentAlert
		as := &model.AlertSensor{
			Channel:     p.Sensor.Channel,
			Name:        p.Sensor.Name,
			Type:        p.Sensor.TypeID,
			StartTime:   time.Now(),
			Delay:       *delay,
			Silent:      silent,
			Suppression: p.SuppressionID,
		}

		c.startSensor(ctx, as, alertType, p.ArmID)
	}()
}

func (c *Controller) startSensor(ctx context.Context, as *model.AlertSensor, alertType monitor.AlertType, armID *int) {
	c.mu.Lock()
	delete(c.pendings, as.Channel)

	first := c.current == nil
	if first {
		id, err := c.repo.OpenAlert(ctx, armID, as.StartTime)
		if err != nil {
			c.logger.Printf("alert: open alert: %v", err)
			c.mu.Unlock()
			return
		}
		c.alertID = id
		c.current = &model.Alert{ID: id, StartTime: as.StartTime, ArmID: armID}
	}

	if err := c.current.AddSensor(as); err != nil {
		c.mu.Unlock()
		return
	}
	if err := c.repo.AddAlertSensor(ctx, c.current.ID, as); err != nil {
		c.logger.Printf("alert: persist alert sensor %d: %v", as.Channel, err)
	}
	sensors := append([]*model.AlertSensor(nil), c.current.Sensors...)
	alertID := c.current.ID
	c.mu.Unlock()

	newState := statestore.Alert
	if alertType == monitor.AlertSabotage {
		newState = statestore.Sabotage
	}

	if first {
		c.notifier.NotifyAlertStarted(ctx, sensors)
		c.state.SetMonitoring(newState)
		silent := model.SirenSilent(sensors, false)
		c.siren.Start(ctx, silent)
		c.b.Publish("alert_state_change", &model.Alert{ID: alertID, StartTime: as.StartTime, ArmID: armID, Sensors: sensors})
	}

	c.b.Publish("alert_sensor_added", AlertSensorAdded{AlertID: alertID, Sensor: as})
}

// Clear closes an AlertSensor row when its windowed alert flag drops
// false, and cancels any still-pending delayed start for the channel.
func (c *Controller) Clear(ctx context.Context, channel int) {
	c.mu.Lock()
	if p, ok := c.pendings[channel]; ok {
		p.cancel()
		delete(c.pendings, channel)
	}

	if c.current == nil {
		c.mu.Unlock()
		return
	}
	alertID := c.current.ID
	now := time.Now()
	var found bool
	for _, s := range c.current.Sensors {
		if s.Channel == channel && s.Open() {
			s.EndTime = &now
			found = true
		}
	}
	c.mu.Unlock()

	if found {
		if err := c.repo.CloseAlertSensor(ctx, alertID, channel, now); err != nil {
			c.logger.Printf("alert: close alert sensor %d: %v", channel, err)
		}
	}
}

// StopAll closes the open Alert (if any) at now, sealing any still-open
// AlertSensor rows, stops the siren, and emits "alert stopped".
func (c *Controller) StopAll(ctx context.Context, now time.Time, disarmID *int) {
	c.mu.Lock()
	for _, p := range c.pendings {
		p.cancel()
	}
	c.pendings = make(map[int]*pending)

	current := c.current
	c.current = nil
	c.mu.Unlock()

	if current == nil {
		return
	}

	current.Close(now)
	if err := c.repo.CloseAlert(ctx, current.ID, now, disarmID); err != nil {
		c.logger.Printf("alert: close alert %d: %v", current.ID, err)
	}
	c.siren.Stop(ctx)
	c.notifier.NotifyAlertStopped(ctx, current.ID)
	c.b.Publish("alert_state_change", current)
}

// Open reports whether an Alert is currently open.
func (c *Controller) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// CurrentAlertID returns the open Alert's ID, if any.
func (c *Controller) CurrentAlertID() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0, false
	}
	return c.current.ID, true
}

// AlertSensorAdded is published whenever a sensor's delayed start
// completes and it joins the open Alert.
type AlertSensorAdded struct {
	AlertID int
	Sensor  *model.AlertSensor
}
