package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/ipc"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/monitor"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// ArmArea is internal/area's Controller, consumed here for per-area
// persistence and the Arm/Disarm audit trail.
type ArmArea interface {
	Arm(ctx context.Context, armType model.ArmType, userID, keypadID *int) error
	Disarm(ctx context.Context, userID, keypadID *int, alertID *int) error
}

// AlertStopper is the subset of internal/alert's Controller an operator
// disarm drives, closing whatever incident was open the way a manual
// stop-all does.
type AlertStopper interface {
	StopAll(ctx context.Context, now time.Time, disarmID *int)
	CurrentAlertID() (int, bool)
}

// MonitoringStore is internal/statestore's Store, consumed here to drive
// the arm/disarm side of the monitoring state machine.
type MonitoringStore interface {
	Monitoring() statestore.MonitoringState
	SetMonitoring(statestore.MonitoringState)
}

// Coordinator drives arm/disarm requests from both the keypad (always
// honoring configured delays) and the IPC bus broadcast actions
// (optionally skipping the delay when the caller asks for an immediate
// arm), updating the area reconciler,
// the monitoring state machine, and the arm-delay timer together.
type Coordinator struct {
	areas  ArmArea
	alert  AlertStopper
	state  MonitoringStore
	delays *DelayResolver
	b      *bus.Bus
	logger *log.Logger

	mu       sync.Mutex
	armTimer *time.Timer
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(areas ArmArea, alertCtl AlertStopper, state MonitoringStore, delays *DelayResolver, b *bus.Bus, logger *log.Logger) (*Coordinator, error) {
	if areas == nil || alertCtl == nil || state == nil || delays == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Coordinator{areas: areas, alert: alertCtl, state: state, delays: delays, b: b, logger: logger}, nil
}

// Arm satisfies internal/keypad's ArmController: a keypad-issued arm
// always honors the zone-configured delay.
func (c *Coordinator) Arm(ctx context.Context, armType model.ArmType, userID, keypadID *int) error {
	return c.arm(ctx, armType, userID, keypadID, true)
}

// Disarm satisfies internal/keypad's ArmController.
func (c *Coordinator) Disarm(ctx context.Context, userID, keypadID *int, alertID *int) error {
	c.mu.Lock()
	if c.armTimer != nil {
		c.armTimer.Stop()
		c.armTimer = nil
	}
	c.mu.Unlock()

	if alertID == nil {
		if id, ok := c.alert.CurrentAlertID(); ok {
			alertID = &id
		}
	}

	if err := c.areas.Disarm(ctx, userID, keypadID, alertID); err != nil {
		return err
	}

	c.state.SetMonitoring(monitor.Next(c.state.Monitoring(), monitor.EventDisarm))
	c.alert.StopAll(ctx, time.Now(), nil)
	return nil
}

func (c *Coordinator) arm(ctx context.Context, armType model.ArmType, userID, keypadID *int, useDelay bool) error {
	if err := c.areas.Arm(ctx, armType, userID, keypadID); err != nil {
		return err
	}

	ev := monitor.EventArmAway
	if armType == model.ArmTypeStay {
		ev = monitor.EventArmStay
	}

	delay := time.Duration(0)
	if useDelay {
		delay = c.delays.ArmDelay(armType)
	}

	next := monitor.Next(c.state.Monitoring(), ev)
	if next == statestore.ArmDelay && delay <= 0 {
		next = statestore.Armed
	}
	c.state.SetMonitoring(next)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armTimer != nil {
		c.armTimer.Stop()
		c.armTimer = nil
	}
	if next == statestore.ArmDelay {
		c.armTimer = time.AfterFunc(delay, func() {
			c.state.SetMonitoring(monitor.Next(statestore.ArmDelay, monitor.EventArmTimerExpired))
		})
	}
	return nil
}

// Start subscribes to the IPC layer's broadcast arm/disarm actions and
// drives them the same way a keypad would, except that
// monitor_arm_away/monitor_arm_stay can request an immediate (no-delay)
// arm via their request's use_delay field.
func (c *Coordinator) Start(ctx context.Context) {
	msgs, subID := c.b.Subscribe(16, "monitor_arm_away", "monitor_arm_stay", "monitor_disarm")

	go func() {
		defer sysutil.RecoverGoPanic("coordinator-arm", c.logger)
		defer c.b.Unsubscribe(subID)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.handleAction(ctx, msg)
			}
		}
	}()
}

func (c *Coordinator) handleAction(ctx context.Context, msg bus.Message) {
	switch msg.Tag {
	case "monitor_arm_away", "monitor_arm_stay":
		armType := model.ArmTypeAway
		if msg.Tag == "monitor_arm_stay" {
			armType = model.ArmTypeStay
		}
		useDelay := true
		if req, ok := msg.Payload.(ipc.Request); ok && req.UseDelay != nil {
			useDelay = *req.UseDelay
		}
		if err := c.arm(ctx, armType, nil, nil, useDelay); err != nil {
			c.logger.Printf("coordinator: arm %s: %v", armType, err)
		}
	case "monitor_disarm":
		if err := c.Disarm(ctx, nil, nil, nil); err != nil {
			c.logger.Printf("coordinator: disarm: %v", err)
		}
	}
}
