// Package hal gives the rest of the monitoring core a uniform interface
// to sensor-input, output-driver, power-detect, and keypad-reader
// hardware, with board-variant selection behind it.
package hal

import (
	"context"
	"errors"
	"time"
)

// ErrChannelUnavailable is returned when a channel index is out of the
// board's physical range.
var ErrChannelUnavailable = errors.New("hal: channel unavailable")

// SensorInput reads the analog or digital value of a sensor's channel as
// a single floating-point quantity the sensor engine compares against
// wiring-derived thresholds.
type SensorInput interface {
	ReadChannel(ctx context.Context, ch int) (float64, error)
	ChannelCount() int
}

// OutputDriver actuates a high-side output switch (siren, status LED,
// auxiliary relay, sign channel).
type OutputDriver interface {
	Set(ctx context.Context, ch int, active bool) error
	ChannelCount() int
}

// PowerDetect reports whether the controller currently has AC power.
type PowerDetect interface {
	ACPresent(ctx context.Context) (bool, error)
}

// FrameKind classifies a decoded keypad reader frame.
type FrameKind int

const (
	FrameNone FrameKind = iota
	FrameCard
	FrameFunctionKey
	FrameDigit
)

// Frame is one decoded unit of keypad input.
type Frame struct {
	Kind FrameKind

	CardBits    int    // 26 or 34, when Kind == FrameCard
	CardNumber  uint64 // raw card bits, when Kind == FrameCard
	FunctionKey string // "#1" or "#2", when Kind == FrameFunctionKey
	Digit       byte   // '0'..'9', when Kind == FrameDigit
}

// BeepPattern selects a keypad feedback cadence.
type BeepPattern int

const (
	BeepNone BeepPattern = iota
	BeepNormal
	BeepLast5Secs
	BeepNoDelay
	BeepError
)

// KeypadReader polls a physical reader for the next decoded Frame,
// returning FrameNone if nothing arrived within timeout, and drives the
// reader's feedback buzzer/LED.
type KeypadReader interface {
	Poll(ctx context.Context, timeout time.Duration) (Frame, error)
	Beep(ctx context.Context, pattern BeepPattern) error
	Close() error
}

// Board bundles one board variant's concrete drivers, selected at
// startup by the bootstrap config's board.variant / board.use_simulator.
type Board struct {
	Sensors SensorInput
	Outputs OutputDriver
	Power   PowerDetect
	Variant string // "v2", "v3", "sim"
}
