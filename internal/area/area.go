// Package area implements arm/disarm reconciliation: per-area arm
// state, global-state resolution across areas, and the Arm/Disarm audit
// trail.
package area

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Repo persists Area state and the Arm/Disarm audit trail. Implemented
// by internal/repo.
type Repo interface {
	SetAreaState(ctx context.Context, areaID int, state model.ArmState) error
	OpenArm(ctx context.Context, armType model.ArmType, t time.Time, userID, keypadID *int) (int, error)
	CloseArm(ctx context.Context, armID int, t time.Time, userID, keypadID *int, alertID *int) error
}

// ErrNoOpenArm is returned by AwaitOpenArm when no Arm opens before the
// deadline.
var ErrNoOpenArm = fmt.Errorf("area: no open arm")

// Controller tracks the current open Arm and every Area's individual
// arm state, publishing global-state changes on the bus.
type Controller struct {
	repo   Repo
	b      *bus.Bus
	logger *log.Logger

	mu      sync.RWMutex
	areas   map[int]*model.Area
	openArm *model.Arm

	armOpened chan struct{}
}

// New constructs a Controller seeded with the known Area set.
func New(repo Repo, b *bus.Bus, logger *log.Logger, areas []*model.Area) (*Controller, error) {
	if repo == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	byID := make(map[int]*model.Area, len(areas))
	for _, a := range areas {
		byID[a.ID] = a
	}
	return &Controller{
		repo: repo, b: b, logger: logger,
		areas:     byID,
		armOpened: make(chan struct{}),
	}, nil
}

// Arm opens a new Arm row and sets every non-deleted area's state to
// armType, per the area/global arming contract.
func (c *Controller) Arm(ctx context.Context, armType model.ArmType, userID, keypadID *int) error {
	now := time.Now()
	id, err := c.repo.OpenArm(ctx, armType, now, userID, keypadID)
	if err != nil {
		return fmt.Errorf("area: open arm: %w", err)
	}

	state := model.ArmAway
	if armType == model.ArmTypeStay {
		state = model.ArmStay
	}

	c.mu.Lock()
	c.openArm = &model.Arm{ID: id, Type: armType, Time: now, UserID: userID, KeypadID: keypadID}
	for _, a := range c.areas {
		if a.Deleted {
			continue
		}
		a.State = state
	}
	opened := c.armOpened
	c.armOpened = make(chan struct{})
	c.mu.Unlock()
	close(opened)

	for _, a := range c.areas {
		if a.Deleted {
			continue
		}
		if err := c.repo.SetAreaState(ctx, a.ID, state); err != nil {
			c.logger.Printf("area: persist area %d state: %v", a.ID, err)
		}
		c.b.Publish("arm_state_change", a)
	}
	return nil
}

// Disarm closes the open Arm, if any, and sets every non-deleted area's
// state to DISARM.
func (c *Controller) Disarm(ctx context.Context, userID, keypadID *int, alertID *int) error {
	c.mu.Lock()
	open := c.openArm
	c.openArm = nil
	for _, a := range c.areas {
		if !a.Deleted {
			a.State = model.ArmDisarm
		}
	}
	c.mu.Unlock()

	if open != nil {
		if err := c.repo.CloseArm(ctx, open.ID, time.Now(), userID, keypadID, alertID); err != nil {
			return fmt.Errorf("area: close arm: %w", err)
		}
	}

	for _, a := range c.areas {
		if a.Deleted {
			continue
		}
		if err := c.repo.SetAreaState(ctx, a.ID, model.ArmDisarm); err != nil {
			c.logger.Printf("area: persist area %d state: %v", a.ID, err)
		}
		c.b.Publish("arm_state_change", a)
	}
	return nil
}

// Global returns the current reconciled global arm state.
func (c *Controller) Global() model.ArmState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	areas := make([]*model.Area, 0, len(c.areas))
	for _, a := range c.areas {
		areas = append(areas, a)
	}
	return model.GlobalArmState(areas)
}

// AreaState returns one area's current arm state.
func (c *Controller) AreaState(areaID int) (model.ArmState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.areas[areaID]
	if !ok {
		return "", false
	}
	return a.State, true
}

// OpenArm returns the currently open Arm, if any.
func (c *Controller) OpenArm() *model.Arm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.openArm
}

// AwaitOpenArm blocks until an Arm opens or timeout elapses, resolving
// the "does Arm() need to be synchronous with IPC callers" open question
// as a bounded wait rather than an unconditional block: IPC handlers
// that must observe the resulting Arm (e.g. for output-sign triggers)
// get a deadline instead of risking an indefinite hang.
func (c *Controller) AwaitOpenArm(ctx context.Context, timeout time.Duration) (*model.Arm, error) {
	c.mu.RLock()
	if c.openArm != nil {
		arm := c.openArm
		c.mu.RUnlock()
		return arm, nil
	}
	ch := c.armOpened
	c.mu.RUnlock()

	select {
	case <-ch:
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.openArm == nil {
			return nil, ErrNoOpenArm
		}
		return c.openArm, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: after %s", ErrNoOpenArm, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("area: await open arm: %w", ctx.Err())
	}
}
