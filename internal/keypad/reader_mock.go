package keypad

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/hal"
)

// mockFrame is the JSON-fixture shape for one queued MockReader frame.
type mockFrame struct {
	Kind        string `json:"kind"` // "card", "function", "digit"
	CardBits    int    `json:"card_bits,omitempty"`
	CardNumber  uint64 `json:"card_number,omitempty"`
	FunctionKey string `json:"function_key,omitempty"`
	Digit       string `json:"digit,omitempty"`
}

// MockReader replays a JSON fixture of frames, one per Poll call, for
// tests and the non-hardware simulator build.
type MockReader struct {
	fs     afero.Fs
	path   string
	logger *log.Logger

	mu     sync.Mutex
	frames []mockFrame
	beeps  []hal.BeepPattern
}

// NewMockReader loads the fixture at path through fs.
func NewMockReader(fs afero.Fs, path string, logger *log.Logger) (*MockReader, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("keypad: read mock fixture: %w", err)
	}
	var frames []mockFrame
	if err := json.Unmarshal(b, &frames); err != nil {
		return nil, fmt.Errorf("keypad: parse mock fixture: %w", err)
	}
	return &MockReader{fs: fs, path: path, logger: logger, frames: frames}, nil
}

// Poll returns the next fixture frame, or FrameNone once exhausted.
func (r *MockReader) Poll(ctx context.Context, timeout time.Duration) (hal.Frame, error) {
	select {
	case <-ctx.Done():
		return hal.Frame{}, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return hal.Frame{Kind: hal.FrameNone}, nil
	}
	next := r.frames[0]
	r.frames = r.frames[1:]

	switch next.Kind {
	case "card":
		return hal.Frame{Kind: hal.FrameCard, CardBits: next.CardBits, CardNumber: next.CardNumber}, nil
	case "function":
		return hal.Frame{Kind: hal.FrameFunctionKey, FunctionKey: next.FunctionKey}, nil
	case "digit":
		if len(next.Digit) != 1 {
			return hal.Frame{}, fmt.Errorf("keypad: mock fixture digit must be one character, got %q", next.Digit)
		}
		return hal.Frame{Kind: hal.FrameDigit, Digit: next.Digit[0]}, nil
	default:
		return hal.Frame{Kind: hal.FrameNone}, nil
	}
}

// Beep records the requested pattern; tests assert against Beeps().
func (r *MockReader) Beep(_ context.Context, pattern hal.BeepPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beeps = append(r.beeps, pattern)
	return nil
}

// Beeps returns every pattern requested so far, for test assertions.
func (r *MockReader) Beeps() []hal.BeepPattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hal.BeepPattern, len(r.beeps))
	copy(out, r.beeps)
	return out
}

// Close is a no-op for the mock reader.
func (r *MockReader) Close() error { return nil }
