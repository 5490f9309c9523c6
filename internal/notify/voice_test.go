package notify

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

type fakeVoicePort struct {
	written  bytes.Buffer
	response []byte
	closed   bool
}

func (p *fakeVoicePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakeVoicePort) Read(b []byte) (int, error)  { return copy(b, p.response), nil }
func (p *fakeVoicePort) Close() error                { p.closed = true; return nil }

func newTestVoiceTransport(t *testing.T, port *fakeVoicePort) *VoiceTransport {
	t.Helper()
	tr, err := NewVoiceTransport("/dev/ttyUSB0", 9600, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	tr.coverageWait = time.Millisecond
	tr.open = func(_ *serial.Config) (ModemPort, error) { return port, nil }
	return tr
}

func TestVoiceDialSendsToneAndHangsUp(t *testing.T) {
	port := &fakeVoicePort{response: []byte("1")}
	tr := newTestVoiceTransport(t, port)

	acked, err := tr.Dial(context.Background(), "+15551234", ToneAlert)
	require.NoError(t, err)
	require.True(t, acked)
	require.Contains(t, port.written.String(), "ATD+15551234;")
	require.Contains(t, port.written.String(), "AT+VTS=111")
	require.Contains(t, port.written.String(), "ATH")
	require.True(t, port.closed)
}

func TestVoiceDialNotAcknowledgedWithoutDigitOne(t *testing.T) {
	port := &fakeVoicePort{response: []byte("0")}
	tr := newTestVoiceTransport(t, port)

	acked, err := tr.Dial(context.Background(), "+15551234", ToneTest)
	require.NoError(t, err)
	require.False(t, acked)
}

func TestVoiceDialClosesPortEachCall(t *testing.T) {
	port := &fakeVoicePort{response: []byte("1")}
	tr := newTestVoiceTransport(t, port)

	_, err := tr.Dial(context.Background(), "+15551234", TonePanic)
	require.NoError(t, err)
	require.True(t, port.closed)
}
