package keypad

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/arpi-project/monitord/internal/hal"
)

// dscPort is the subset of *serial.Port the DSC reader depends on.
type dscPort interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// DSCReader decodes the comma-delimited bit-field frames emitted by a
// DSC keybus interface over a serial link, in the field-layout idiom of
// an AD2-style alarm-panel decoder: a fixed bit-field prefix, a zone
// code, raw data, and a bracketed keypad message.
type DSCReader struct {
	port   dscPort
	reader *bufio.Reader
	logger *log.Logger

	mu sync.Mutex
}

// NewDSCReader opens the serial device at portName/baud.
func NewDSCReader(portName string, baud int, logger *log.Logger) (*DSCReader, error) {
	port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud, ReadTimeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("keypad: open dsc port: %w", err)
	}
	return &DSCReader{port: port, reader: bufio.NewReader(port), logger: logger}, nil
}

// Poll reads and decodes the next line from the keybus interface.
func (r *DSCReader) Poll(ctx context.Context, timeout time.Duration) (hal.Frame, error) {
	select {
	case <-ctx.Done():
		return hal.Frame{}, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := r.reader.ReadString('\n')
	if err != nil {
		return hal.Frame{Kind: hal.FrameNone}, nil //nolint:nilerr // read timeout is the normal idle case
	}
	return decodeDSCLine(strings.TrimSpace(line))
}

// decodeDSCLine parses one "bits,zone,raw,[message]" keybus line into a
// Frame. Digit presses surface as the bracketed keypad message being a
// single numeral; function-key presses as "#1"/"#2" in that message;
// card reads are not carried over the DSC keybus and never decode to
// FrameCard here.
func decodeDSCLine(s string) (hal.Frame, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return hal.Frame{}, fmt.Errorf("keypad: dsc frame: expected 4 fields, got %d", len(parts))
	}
	msg := strings.TrimSpace(parts[3])
	msg = strings.Trim(msg, "[]")

	switch {
	case msg == "#1" || msg == "#2":
		return hal.Frame{Kind: hal.FrameFunctionKey, FunctionKey: msg}, nil
	case len(msg) == 1 && msg[0] >= '0' && msg[0] <= '9':
		return hal.Frame{Kind: hal.FrameDigit, Digit: msg[0]}, nil
	default:
		return hal.Frame{Kind: hal.FrameNone}, nil
	}
}

// Beep sends the feedback-beep AT-style command for pattern.
func (r *DSCReader) Beep(_ context.Context, pattern hal.BeepPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := beepCount(pattern)
	if count == 0 {
		return nil
	}
	_, err := r.port.Write([]byte(fmt.Sprintf("BEEP=%d\r\n", count)))
	if err != nil {
		return fmt.Errorf("keypad: dsc beep: %w", err)
	}
	return nil
}

func beepCount(pattern hal.BeepPattern) int {
	switch pattern {
	case hal.BeepNormal:
		return 1
	case hal.BeepLast5Secs:
		return 2
	case hal.BeepNoDelay:
		return 3
	case hal.BeepError:
		return 3
	default:
		return 0
	}
}

// Close closes the underlying serial port.
func (r *DSCReader) Close() error {
	return r.port.Close()
}
