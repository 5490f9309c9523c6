// Package outputsign implements the output-sign engine: per-output
// delay/active/duration/default-state timelines triggered by area/system
// arming or button presses.
package outputsign

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// DurationUntilCancelled is the sentinel duration meaning "hold active
// until a STOP trigger arrives" (duration = -1 in the database).
const DurationUntilCancelled = -1

// TriggerKind names what bound key a trigger fired for.
type TriggerKind int

const (
	TriggerArea TriggerKind = iota
	TriggerSystem
	TriggerButton
)

// Key identifies one configured Output's binding. Only one Output may be
// bound to a given key at a time; lookup is linear, matching the small
// expected output count.
type Key struct {
	Kind     TriggerKind
	AreaID   int // valid when Kind == TriggerArea
	ButtonID int // valid when Kind == TriggerButton
}

// Output is one configured sign: a channel plus its timeline.
type Output struct {
	Key          Key
	Channel      int
	Enabled      bool
	Delay        time.Duration
	Duration     time.Duration // DurationUntilCancelled (-1) means until STOP
	DefaultState bool
}

type run struct {
	cancel context.CancelFunc
}

// Engine drives 0..N Output timelines over one hal.OutputDriver.
type Engine struct {
	out     hal.OutputDriver
	b       *bus.Bus
	logger  *log.Logger
	outputs []*Output

	mu   sync.Mutex
	runs map[Key]*run
}

// New constructs an Engine over the given Output set, publishing
// "output_state_change" on b whenever a channel's active state changes.
func New(out hal.OutputDriver, outputs []*Output, b *bus.Bus, logger *log.Logger) (*Engine, error) {
	if out == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Engine{out: out, b: b, logger: logger, outputs: outputs, runs: make(map[Key]*run)}, nil
}

// StateChange is published on "output_state_change" whenever an
// Output's channel is actuated.
type StateChange struct {
	Channel int
	Active  bool
}

func (e *Engine) find(key Key) *Output {
	for _, o := range e.outputs {
		if o.Key == key {
			return o
		}
	}
	return nil
}

// Start triggers the Output bound to key, if any and enabled, canceling
// any sign already in flight for that key.
func (e *Engine) Start(ctx context.Context, key Key) {
	o := e.find(key)
	if o == nil || !o.Enabled {
		return
	}

	e.mu.Lock()
	if prev, ok := e.runs[key]; ok {
		prev.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runs[key] = &run{cancel: cancel}
	e.mu.Unlock()

	go func() {
		defer sysutil.RecoverGoPanic("outputsign", e.logger)
		e.runTimeline(runCtx, o)
	}()
}

// Stop cancels the sign bound to key, if one is running, returning its
// channel to the default state.
func (e *Engine) Stop(ctx context.Context, key Key) {
	o := e.find(key)
	if o == nil {
		return
	}

	e.mu.Lock()
	prev, ok := e.runs[key]
	delete(e.runs, key)
	e.mu.Unlock()

	if ok {
		prev.cancel()
	}
	if err := e.out.Set(ctx, o.Channel, o.DefaultState); err != nil {
		e.logger.Printf("outputsign: set channel %d default: %v", o.Channel, err)
	}
	e.b.Publish("output_state_change", StateChange{Channel: o.Channel, Active: o.DefaultState})
}

func (e *Engine) runTimeline(ctx context.Context, o *Output) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(o.Delay):
	}

	if err := e.out.Set(ctx, o.Channel, !o.DefaultState); err != nil {
		e.logger.Printf("outputsign: set channel %d active: %v", o.Channel, err)
	}
	e.b.Publish("output_state_change", StateChange{Channel: o.Channel, Active: !o.DefaultState})

	if o.Duration == DurationUntilCancelled {
		<-ctx.Done()
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(o.Duration):
	}

	if err := e.out.Set(ctx, o.Channel, o.DefaultState); err != nil {
		e.logger.Printf("outputsign: set channel %d default: %v", o.Channel, err)
	}
	e.b.Publish("output_state_change", StateChange{Channel: o.Channel, Active: o.DefaultState})
}
