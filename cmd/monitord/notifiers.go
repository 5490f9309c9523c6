package main

import (
	"context"
	"log"
	"net/smtp"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/config"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/notify"
	"github.com/arpi-project/monitord/internal/repo"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// notifyDispatchInterval is how often the queue drains pending
// notifications and retries unresolved channels.
const notifyDispatchInterval = 5 * time.Second

// buildTransports constructs the SMS/email sides of the MultiTransport,
// leaving either nil when its section is not configured, matching
// internal/notify's nil-checked routing in MultiTransport.Send.
func buildTransports(cfg *config.Config, logger *log.Logger) (*notify.MultiTransport, error) {
	mt := &notify.MultiTransport{}

	if cfg.GSM.Port != "" {
		sms, err := notify.NewSMSTransport(cfg.GSM.Port, cfg.GSM.Baud, map[notify.Channel]string{
			notify.SMS1: cfg.GSM.SMS1,
			notify.SMS2: cfg.GSM.SMS2,
		}, logger)
		if err != nil {
			return nil, err
		}
		mt.SMS = sms
	}

	if cfg.SMTP.Addr != "" {
		var auth smtp.Auth
		if cfg.SMTP.Username != "" {
			auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, hostOf(cfg.SMTP.Addr))
		}
		email, err := notify.NewEmailTransport(cfg.SMTP.Addr, cfg.SMTP.From, auth, map[notify.Channel]string{
			notify.Email1: cfg.SMTP.Email1,
			notify.Email2: cfg.SMTP.Email2,
		}, logger)
		if err != nil {
			return nil, err
		}
		mt.Email = email
	}

	return mt, nil
}

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// loadSubscriptions reads the "subscriptions"/"channels" option row, and
// falls back to an all-unconfigured ConfigSubscriptions when the row has
// never been written: OptionRepo.Get returns (nil, nil) on a missing
// row, and a fresh install has no operator-configured channels yet.
func loadSubscriptions(ctx context.Context, options *repo.OptionRepo) (*notify.ConfigSubscriptions, error) {
	opt, err := options.Get(ctx, "subscriptions", "channels")
	if err != nil {
		return nil, err
	}
	if opt == nil {
		return &notify.ConfigSubscriptions{}, nil
	}
	return notify.ParseSubscriptions(opt.Value)
}

// powerNotifyBridge subscribes to "power_state_change" and turns it into
// the matching notify.Kind, since internal/statestore only owns the
// state transition and its own bus fan-out, not the decision to notify
// about it.
func powerNotifyBridge(ctx context.Context, b *bus.Bus, queue *notify.Queue, logger *log.Logger) {
	msgs, subID := b.Subscribe(8, "power_state_change")
	go func() {
		defer sysutil.RecoverGoPanic("power-notify-bridge", logger)
		defer b.Unsubscribe(subID)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				switch msg.Payload {
				case statestore.PowerOutage:
					queue.Enqueue(notify.PowerOutageStarted, nil)
				case statestore.PowerOK:
					queue.Enqueue(notify.PowerOutageStopped, nil)
				}
			}
		}
	}()
}

// voiceDialBridge subscribes to "alert_state_change" and places a call
// playing the alert tone through the GSM voice line on every new, non-silent alert,
// mirroring the way the SMS/email channels each react to the same
// event independently. Each dial runs in its own goroutine so a slow
// or unanswered call never delays the next alert transition.
func voiceDialBridge(ctx context.Context, b *bus.Bus, dialer *notify.VoiceTransport, number string, logger *log.Logger) {
	if dialer == nil || number == "" {
		return
	}

	msgs, subID := b.Subscribe(8, "alert_state_change")
	go func() {
		defer sysutil.RecoverGoPanic("voice-dial-bridge", logger)
		defer b.Unsubscribe(subID)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				alert, ok := msg.Payload.(*model.Alert)
				if !ok || !alert.Open() || model.SirenSilent(alert.Sensors, false) {
					continue
				}
				go func() {
					defer sysutil.RecoverGoPanic("voice-dial", logger)
					if _, err := dialer.Dial(ctx, number, notify.ToneAlert); err != nil {
						logger.Printf("voice: dial %s failed: %v", number, err)
					}
				}()
			}
		}
	}()
}
