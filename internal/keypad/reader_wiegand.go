package keypad

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"

	"github.com/arpi-project/monitord/internal/hal"
)

// wiegandPin is the subset of gpio.PinIO the Wiegand reader depends on,
// so tests can substitute a fake pulse source.
type wiegandPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
}

// wiegandInterFrame is the quiet period that marks a completed card
// transmission: no further D0/D1 pulses for this long ends the frame.
const wiegandInterFrame = 25 * time.Millisecond

// WiegandReader decodes standard 26/34-bit Wiegand card transmissions
// from a pair of data GPIO lines using edge interrupts rather than
// sampled levels. Function keys and digits are not carried over
// Wiegand; a reader wired this way only ever produces FrameCard.
type WiegandReader struct {
	d0, d1 wiegandPin
	logger *log.Logger

	mu sync.Mutex
}

// NewWiegandReader configures d0/d1 as falling-edge inputs.
func NewWiegandReader(d0, d1 gpio.PinIn, logger *log.Logger) (*WiegandReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("keypad: wiegand host init: %w", err)
	}
	if err := d0.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("keypad: configure D0: %w", err)
	}
	if err := d1.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("keypad: configure D1: %w", err)
	}
	return &WiegandReader{d0: d0, d1: d1, logger: logger}, nil
}

// newWiegandReaderForTest bypasses host.Init/In for unit tests driving
// fake pins directly.
func newWiegandReaderForTest(d0, d1 wiegandPin, logger *log.Logger) *WiegandReader {
	return &WiegandReader{d0: d0, d1: d1, logger: logger}
}

// Poll accumulates Wiegand pulses until the inter-frame quiet period or
// timeout elapses, then decodes the bit count into a FrameCard.
func (r *WiegandReader) Poll(ctx context.Context, timeout time.Duration) (hal.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := time.Now().Add(timeout)
	var bits []byte // '0' or '1' per pulse, in arrival order

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return hal.Frame{}, ctx.Err()
		default:
		}

		got0 := r.d0.WaitForEdge(wiegandInterFrame)
		if got0 {
			bits = append(bits, '0')
			continue
		}
		got1 := r.d1.WaitForEdge(wiegandInterFrame)
		if got1 {
			bits = append(bits, '1')
			continue
		}
		if len(bits) > 0 {
			break // inter-frame quiet period reached
		}
	}

	if len(bits) == 0 {
		return hal.Frame{Kind: hal.FrameNone}, nil
	}
	if len(bits) != 26 && len(bits) != 34 {
		return hal.Frame{}, fmt.Errorf("keypad: wiegand frame: unexpected bit count %d", len(bits))
	}

	var number uint64
	for _, b := range bits {
		number <<= 1
		if b == '1' {
			number |= 1
		}
	}
	return hal.Frame{Kind: hal.FrameCard, CardBits: len(bits), CardNumber: number}, nil
}

// Beep is a no-op: a bare Wiegand data pair carries no feedback line.
func (r *WiegandReader) Beep(_ context.Context, _ hal.BeepPattern) error {
	return nil
}

// Close is a no-op; GPIO pins are released by the host driver at
// process exit.
func (r *WiegandReader) Close() error { return nil }
