// Package siren implements the siren driver: at most one active run,
// silent arbitration, and delay/duration timing over an hal.OutputDriver
// channel.
package siren

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

// DurationForever is the "until stopped" sentinel for a siren run's
// duration (duration = 0 in the database's syren/timing settings).
const DurationForever = 0

// Params resolves caller override, database settings, and built-in
// defaults into one concrete run configuration. Silent is resolved by
// the caller via model.SirenSilent before constructing Params.
type Params struct {
	Silent   bool
	Delay    time.Duration
	Duration time.Duration // DurationForever (0) means until Stop is called
}

// Driver runs at most one siren activation at a time.
type Driver struct {
	out     hal.OutputDriver
	channel int
	b       *bus.Bus
	logger  *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New constructs a Driver actuating channel on out, publishing
// "syren_state_change" on b whenever a run starts or ends.
func New(out hal.OutputDriver, channel int, b *bus.Bus, logger *log.Logger) (*Driver, error) {
	if out == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Driver{out: out, channel: channel, b: b, logger: logger}, nil
}

// Start begins a new siren run, canceling any run already in progress.
// A silent run never actuates the output channel.
func (d *Driver) Start(ctx context.Context, silent bool) {
	d.StartWithParams(ctx, Params{Silent: silent})
}

// StartWithParams is Start with explicit delay/duration, used when the
// caller has database timing settings to apply.
func (d *Driver) StartWithParams(ctx context.Context, p Params) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	d.b.Publish("syren_state_change", !p.Silent)

	if p.Silent {
		return
	}

	go func() {
		defer sysutil.RecoverGoPanic("siren-run", d.logger)
		d.run(runCtx, p)
	}()
}

// Stop ends the current siren run, if any, returning the channel to its
// default (off) state.
func (d *Driver) Stop(ctx context.Context) {
	d.mu.Lock()
	cancel := d.cancel
	wasRunning := d.running
	d.cancel = nil
	d.running = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := d.out.Set(ctx, d.channel, false); err != nil {
		d.logger.Printf("siren: set channel %d off: %v", d.channel, err)
	}
	if wasRunning {
		d.b.Publish("syren_state_change", false)
	}
}

// Running reports whether a siren run is currently active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Driver) run(ctx context.Context, p Params) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	elapsed := time.Duration(0)
	active := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed += time.Second

			if !active && elapsed >= p.Delay {
				active = true
				if err := d.out.Set(ctx, d.channel, true); err != nil {
					d.logger.Printf("siren: set channel %d on: %v", d.channel, err)
				}
			}

			if active && p.Duration != DurationForever && elapsed >= p.Delay+p.Duration {
				if err := d.out.Set(ctx, d.channel, false); err != nil {
					d.logger.Printf("siren: set channel %d off: %v", d.channel, err)
				}
				d.mu.Lock()
				d.running = false
				d.mu.Unlock()
				d.b.Publish("syren_state_change", false)
				return
			}
		}
	}
}
