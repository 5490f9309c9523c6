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

// coverageWaitSMS is how long the modem is given to report network
// coverage before an SMS send is attempted.
const coverageWaitSMS = 10 * time.Second

// ModemPort is the subset of *serial.Port the SMS transport depends on,
// so tests can substitute an in-memory fake instead of a real device.
type ModemPort interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// SMSTransport sends SMS1/SMS2 notifications over a serial GSM modem
// using text-mode AT commands (AT+CMGF=1), matching the original's
// direct pyserial AT-command dialog.
type SMSTransport struct {
	portName     string
	baud         int
	numbers      map[Channel]string
	logger       *log.Logger
	coverageWait time.Duration

	open func(cfg *serial.Config) (ModemPort, error)

	mu   sync.Mutex
	port ModemPort
}

// NewSMSTransport constructs an SMSTransport dialing portName at baud,
// sending to the number configured per Channel.
func NewSMSTransport(portName string, baud int, numbers map[Channel]string, logger *log.Logger) (*SMSTransport, error) {
	if portName == "" || logger == nil {
		return nil, fmt.Errorf("%w: port and logger are required", sysutil.ErrInvalidArgument)
	}
	return &SMSTransport{
		portName: portName, baud: baud, numbers: numbers, logger: logger,
		coverageWait: coverageWaitSMS,
		open:         func(cfg *serial.Config) (ModemPort, error) { return serial.OpenPort(cfg) },
	}, nil
}

// Send implements Transport for SMS1/SMS2. Any of TimeoutException,
// CommandError, PortNotOpen or InvalidState equivalents tears down the
// session so the next attempt re-initializes the modem from scratch.
func (t *SMSTransport) Send(ctx context.Context, ch Channel, n *Notification) error {
	number, ok := t.numbers[ch]
	if !ok || number == "" {
		return fmt.Errorf("notify: no SMS number configured for channel %d", ch)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		port, err := t.open(&serial.Config{Name: t.portName, Baud: t.baud, ReadTimeout: time.Second})
		if err != nil {
			return fmt.Errorf("notify: open modem port: %w", err)
		}
		t.port = port
	}

	if err := t.sendLocked(ctx, number, smsBody(n)); err != nil {
		_ = t.port.Close()
		t.port = nil
		return err
	}
	return nil
}

func (t *SMSTransport) sendLocked(ctx context.Context, number, body string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("notify: sms send: %w", ctx.Err())
	case <-time.After(t.coverageWait):
	}

	if _, err := t.port.Write([]byte("AT+CMGF=1\r\n")); err != nil {
		return fmt.Errorf("notify: set text mode: %w", err)
	}
	if _, err := t.port.Write([]byte(fmt.Sprintf("AT+CMGS=\"%s\"\r\n", number))); err != nil {
		return fmt.Errorf("notify: issue send: %w", err)
	}
	if _, err := t.port.Write([]byte(body + "\x1a")); err != nil {
		return fmt.Errorf("notify: write body: %w", err)
	}
	return nil
}

func smsBody(n *Notification) string {
	switch n.Type {
	case AlertStarted:
		return fmt.Sprintf("ALERT: %d sensor(s) triggered", len(n.Sensors))
	case AlertStopped:
		return "ALERT cleared"
	case PowerOutageStarted:
		return "POWER OUTAGE"
	case PowerOutageStopped:
		return "POWER restored"
	default:
		return "notification"
	}
}
