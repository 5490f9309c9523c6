package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriteCloser struct {
	bytes.Buffer
}

func (w *fakeWriteCloser) Close() error { return nil }

type fakeSMTPSession struct {
	failData bool
	body     fakeWriteCloser
	quit     bool
}

func (s *fakeSMTPSession) Mail(string) error { return nil }
func (s *fakeSMTPSession) Rcpt(string) error { return nil }
func (s *fakeSMTPSession) Data() (WriteCloser, error) {
	if s.failData {
		return nil, errors.New("no data")
	}
	return &s.body, nil
}
func (s *fakeSMTPSession) Quit() error  { s.quit = true; return nil }
func (s *fakeSMTPSession) Close() error { return nil }

func TestEmailSendWritesBodyAndQuits(t *testing.T) {
	sess := &fakeSMTPSession{}
	tr, err := NewEmailTransport("smtp.example.com:587", "alarm@example.com",
		nil, map[Channel]string{Email1: "user@example.com"}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	tr.dial = func(string, smtp.Auth, *tls.Config) (SMTPSession, error) { return sess, nil }

	err = tr.Send(context.Background(), Email1, &Notification{Type: AlertStarted})
	require.NoError(t, err)
	require.Contains(t, sess.body.String(), "Subject:")
	require.True(t, sess.quit)
}

func TestEmailSendFailsForUnconfiguredChannel(t *testing.T) {
	tr, err := NewEmailTransport("smtp.example.com:587", "alarm@example.com",
		nil, map[Channel]string{Email1: "user@example.com"}, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	err = tr.Send(context.Background(), Email2, &Notification{Type: AlertStarted})
	require.Error(t, err)
}

func TestEmailSendRetriesOnceOnFailure(t *testing.T) {
	attempts := 0
	failSess := &fakeSMTPSession{failData: true}
	okSess := &fakeSMTPSession{}

	tr, err := NewEmailTransport("smtp.example.com:587", "alarm@example.com",
		nil, map[Channel]string{Email1: "user@example.com"}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	tr.dial = func(string, smtp.Auth, *tls.Config) (SMTPSession, error) {
		attempts++
		if attempts == 1 {
			return failSess, nil
		}
		return okSess, nil
	}

	err = tr.Send(context.Background(), Email1, &Notification{Type: AlertStarted})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestEmailSendFailsAfterExhaustingRetries(t *testing.T) {
	failSess := &fakeSMTPSession{failData: true}

	tr, err := NewEmailTransport("smtp.example.com:587", "alarm@example.com",
		nil, map[Channel]string{Email1: "user@example.com"}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	tr.dial = func(string, smtp.Auth, *tls.Config) (SMTPSession, error) { return failSess, nil }

	err = tr.Send(context.Background(), Email1, &Notification{Type: AlertStarted})
	require.Error(t, err)
}
