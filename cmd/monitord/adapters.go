package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/arpi-project/monitord/internal/ipc"
	"github.com/arpi-project/monitord/internal/notify"
	"github.com/arpi-project/monitord/internal/outputsign"
	"github.com/arpi-project/monitord/internal/statestore"
)

// stateReaderAdapter narrows statestore.Store's typed getters to the
// plain string/bool shape ipc.StateReader exposes over the wire.
type stateReaderAdapter struct {
	store *statestore.Store
}

func (a stateReaderAdapter) Monitoring() string { return string(a.store.Monitoring()) }
func (a stateReaderAdapter) Power() bool        { return a.store.Power() == statestore.PowerOK }

// outputEngineAdapter translates ipc.OutputKey (a button ID) into
// outputsign's own Key shape, keeping internal/ipc from depending on
// internal/outputsign directly.
type outputEngineAdapter struct {
	engine *outputsign.Engine
}

func (a outputEngineAdapter) Start(ctx context.Context, key ipc.OutputKey) {
	a.engine.Start(ctx, outputsign.Key{Kind: outputsign.TriggerButton, ButtonID: key.ButtonID})
}

func (a outputEngineAdapter) Stop(ctx context.Context, key ipc.OutputKey) {
	a.engine.Stop(ctx, outputsign.Key{Kind: outputsign.TriggerButton, ButtonID: key.ButtonID})
}

// testNotifier drives the SMS/email transports directly for
// send_test_sms/send_test_email, bypassing the queue's retry/dispatch
// loop since a test send wants an immediate result, not a ticker wait.
type testNotifier struct {
	sms   *notify.SMSTransport
	email *notify.EmailTransport
}

func (t testNotifier) SendTestSMS(ctx context.Context) (bool, any) {
	if t.sms == nil {
		return false, "SMS transport not configured"
	}
	n := &notify.Notification{Type: notify.AlertStarted, Time: time.Now()}
	if err := t.sms.Send(ctx, notify.SMS1, n); err != nil {
		return false, err.Error()
	}
	return true, nil
}

func (t testNotifier) SendTestEmail(ctx context.Context) (bool, any) {
	if t.email == nil {
		return false, "email transport not configured"
	}
	n := &notify.Notification{Type: notify.AlertStarted, Time: time.Now()}
	if err := t.email.Send(ctx, notify.Email1, n); err != nil {
		return false, err.Error()
	}
	return true, nil
}

// systemClock shells out to host tools for monitor_sync_clock
// ("ntpdate") and monitor_set_clock ("timedatectl set-timezone" and
// "date -s"), the same exec.CommandContext
// idiom desertwitch-sesmon's RetryCommandRunner uses for its device
// probes, simplified here to a single attempt since this is an
// operator-triggered admin action, not a flaky external device poll.
type systemClock struct {
	ntpServer string
}

func (c systemClock) Sync(ctx context.Context) error {
	server := c.ntpServer
	if server == "" {
		server = "pool.ntp.org"
	}
	cmd := exec.CommandContext(ctx, "ntpdate", "-u", server)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemClock: ntpdate: %w: %s", err, out)
	}
	return nil
}

func (c systemClock) Set(ctx context.Context, date, clockTime, zone string) error {
	if zone != "" {
		if err := exec.CommandContext(ctx, "timedatectl", "set-timezone", zone).Run(); err != nil {
			return fmt.Errorf("systemClock: set-timezone: %w", err)
		}
	}
	if date != "" && clockTime != "" {
		cmd := exec.CommandContext(ctx, "date", "-s", date+" "+clockTime)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("systemClock: date -s: %w: %s", err, out)
		}
	}
	return nil
}
