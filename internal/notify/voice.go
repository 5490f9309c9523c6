package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/sysutil"
	"github.com/tarm/serial"
)

const coverageWaitVoice = 30 * time.Second

// VoiceTone is a DTMF sequence dialed out for a test call.
type VoiceTone string

const (
	ToneAlert VoiceTone = "111"
	TonePanic VoiceTone = "00000"
	ToneTest  VoiceTone = "5"
)

// VoiceDialer places a test call and plays a DTMF tone once answered,
// reporting whether the called party acknowledged with DTMF 1.
type VoiceDialer interface {
	Dial(ctx context.Context, number string, tone VoiceTone) (acknowledged bool, err error)
}

// VoiceTransport is the GSM-modem VoiceDialer, sharing the same serial
// session class as SMSTransport but never open at the same time: the
// caller is responsible for not running both against the same device
// concurrently.
type VoiceTransport struct {
	portName     string
	baud         int
	logger       *log.Logger
	coverageWait time.Duration

	open func(cfg *serial.Config) (ModemPort, error)

	mu sync.Mutex
}

// NewVoiceTransport constructs a VoiceTransport.
func NewVoiceTransport(portName string, baud int, logger *log.Logger) (*VoiceTransport, error) {
	if portName == "" || logger == nil {
		return nil, fmt.Errorf("%w: port and logger are required", sysutil.ErrInvalidArgument)
	}
	return &VoiceTransport{
		portName: portName, baud: baud, logger: logger,
		coverageWait: coverageWaitVoice,
		open:         func(cfg *serial.Config) (ModemPort, error) { return serial.OpenPort(cfg) },
	}, nil
}

// Dial opens its own modem session, dials number, plays tone once
// answered, and hangs up. Acknowledged reports whether the callee
// returned DTMF 1.
func (t *VoiceTransport) Dial(ctx context.Context, number string, tone VoiceTone) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	port, err := t.open(&serial.Config{Name: t.portName, Baud: t.baud, ReadTimeout: time.Second})
	if err != nil {
		return false, fmt.Errorf("notify: open modem port: %w", err)
	}
	defer port.Close()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("notify: voice dial: %w", ctx.Err())
	case <-time.After(t.coverageWait):
	}

	if _, err := port.Write([]byte(fmt.Sprintf("ATD%s;\r\n", number))); err != nil {
		return false, fmt.Errorf("notify: dial command: %w", err)
	}
	if _, err := port.Write([]byte(fmt.Sprintf("AT+VTS=%s\r\n", tone))); err != nil {
		return false, fmt.Errorf("notify: dtmf tone: %w", err)
	}

	buf := make([]byte, 64)
	n, _ := port.Read(buf)
	acked := containsDigit(buf[:n], '1')

	if _, err := port.Write([]byte("ATH\r\n")); err != nil {
		return acked, fmt.Errorf("notify: hang up: %w", err)
	}
	return acked, nil
}

func containsDigit(b []byte, d byte) bool {
	for _, c := range b {
		if c == d {
			return true
		}
	}
	return false
}
