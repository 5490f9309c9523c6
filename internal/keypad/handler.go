// Package keypad implements the keypad handler: polls one enabled
// reader, classifies card/function/digit input, resolves it against
// users and cards, and drives the reader's delay-feedback beeper.
package keypad

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// CardRegistrationExpiry bounds how long a card-enrollment window stays
// open once MONITOR_REGISTER_CARD is requested.
const CardRegistrationExpiry = 120 * time.Second

// digitIdleClear is how long unfinished digit entry survives before
// being discarded.
const digitIdleClear = 10 * time.Second

const pollTimeout = 200 * time.Millisecond

// ArmController is the subset of area.Controller the keypad drives.
type ArmController interface {
	Arm(ctx context.Context, armType model.ArmType, userID, keypadID *int) error
	Disarm(ctx context.Context, userID, keypadID *int, alertID *int) error
}

// DelaySource resolves the zone-configured arm/alert delay currently in
// effect, so the keypad's local beep cadence matches the monitoring
// core's own delay window.
type DelaySource interface {
	ArmDelay(armType model.ArmType) time.Duration
	AlertDelay() time.Duration
}

// UserRepo resolves users and cards for access-code/card matching and
// persists a new card-to-user binding made during the registration
// window.
type UserRepo interface {
	Users(ctx context.Context) ([]*model.User, error)
	Cards(ctx context.Context) ([]*model.Card, error)
	BindCard(ctx context.Context, cardNumber string, userID int) error
	ClearCardRegistration(ctx context.Context, userID int) error
}

// Handler drives one enabled Keypad.
type Handler struct {
	keypad *model.Keypad
	reader hal.KeypadReader
	repo   UserRepo
	arm    ArmController
	delays DelaySource
	b      *bus.Bus
	logger *log.Logger

	mu               sync.Mutex
	digits           []byte
	lastPress        time.Time
	registerUntil    time.Time
	armed            bool
	delayTimer       *delayTimer

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs a Handler for one configured Keypad and reader.
func New(kp *model.Keypad, reader hal.KeypadReader, repo UserRepo, arm ArmController, delays DelaySource, b *bus.Bus, logger *log.Logger) (*Handler, error) {
	if kp == nil || reader == nil || repo == nil || arm == nil || delays == nil || b == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Handler{
		keypad: kp, reader: reader, repo: repo, arm: arm, delays: delays, b: b, logger: logger,
		stop: make(chan struct{}), done: make(chan struct{}),
	}, nil
}

// Start runs the poll loop until ctx is canceled or Stop is called.
func (h *Handler) Start(ctx context.Context) {
	msgs, subID := h.b.Subscribe(8, "system_state_change", "monitor_register_card")

	go func() {
		defer sysutil.RecoverGoPanic("keypad-handler", h.logger)
		defer close(h.done)
		defer h.Stop()
		defer h.b.Unsubscribe(subID)

		h.resetLastPress()

		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case msg := <-msgs:
				if msg.Tag == "monitor_register_card" {
					h.OpenRegistration()
				} else {
					h.onStateChange(msg)
				}
			default:
			}

			frame, err := h.reader.Poll(ctx, pollTimeout)
			if err != nil {
				h.logger.Printf("keypad %d: poll: %v", h.keypad.ID, err)
				continue
			}
			h.handleFrame(ctx, frame)
			h.manageDelay(ctx)
			h.expireRegistration()
			h.expireDigits()
		}
	}()
}

// Stop requests the poll loop to exit.
func (h *Handler) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Done reports when the poll loop has exited.
func (h *Handler) Done() <-chan struct{} { return h.done }

func (h *Handler) resetLastPress() {
	h.mu.Lock()
	h.lastPress = time.Now()
	h.mu.Unlock()
}

// OpenRegistration opens the card-enrollment window.
func (h *Handler) OpenRegistration() {
	h.mu.Lock()
	h.registerUntil = time.Now().Add(CardRegistrationExpiry)
	h.mu.Unlock()
}

func (h *Handler) onStateChange(msg bus.Message) {
	state, ok := msg.Payload.(statestore.MonitoringState)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch state {
	case statestore.ArmDelay:
		h.armed = true
		h.delayTimer = newDelayTimer(time.Now(), h.delays.ArmDelay(model.ArmTypeAway))
	case statestore.AlertDelay:
		h.delayTimer = newDelayTimer(time.Now(), h.delays.AlertDelay())
	case statestore.Alert, statestore.Ready:
		h.delayTimer = nil
		if state == statestore.Ready {
			h.armed = false
		}
	}
}

func (h *Handler) manageDelay(ctx context.Context) {
	h.mu.Lock()
	timer := h.delayTimer
	h.mu.Unlock()
	if timer == nil {
		return
	}

	switch timer.phase(time.Now()) {
	case DelayPhaseNormal:
		_ = h.reader.Beep(ctx, hal.BeepNormal)
	case DelayPhaseLast5Secs:
		_ = h.reader.Beep(ctx, hal.BeepLast5Secs)
	case DelayPhaseElapsed:
		_ = h.reader.Beep(ctx, hal.BeepNoDelay)
		h.mu.Lock()
		h.delayTimer = nil
		h.mu.Unlock()
	}
}

func (h *Handler) handleFrame(ctx context.Context, f hal.Frame) {
	switch f.Kind {
	case hal.FrameCard:
		h.handleCard(ctx, f)
	case hal.FrameFunctionKey:
		h.handleFunction(ctx, f)
	case hal.FrameDigit:
		h.handleDigit(ctx, f)
	}
}

func (h *Handler) handleCard(ctx context.Context, f hal.Frame) {
	cardNumber := fmt.Sprintf("%d", f.CardNumber)

	h.mu.Lock()
	registering := !h.registerUntil.IsZero() && h.registerUntil.After(time.Now())
	h.mu.Unlock()

	if registering {
		h.registerCard(ctx, cardNumber)
		return
	}

	h.mu.Lock()
	armed := h.armed
	h.mu.Unlock()
	if !armed {
		return
	}

	cards, err := h.repo.Cards(ctx)
	if err != nil {
		h.logger.Printf("keypad %d: load cards: %v", h.keypad.ID, err)
		return
	}
	for _, c := range cards {
		if c.Deleted || !c.Enabled {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(c.CardNumberHash), []byte(cardNumber)) == nil {
			ownerID := c.OwnerID
			if err := h.arm.Disarm(ctx, &ownerID, &h.keypad.ID, nil); err != nil {
				h.logger.Printf("keypad %d: disarm via card: %v", h.keypad.ID, err)
			}
			return
		}
	}
	_ = h.reader.Beep(ctx, hal.BeepError)
}

func (h *Handler) registerCard(ctx context.Context, cardNumber string) {
	users, err := h.repo.Users(ctx)
	if err != nil {
		h.logger.Printf("keypad %d: load users: %v", h.keypad.ID, err)
		return
	}

	now := time.Now()
	cards, err := h.repo.Cards(ctx)
	if err != nil {
		h.logger.Printf("keypad %d: load cards: %v", h.keypad.ID, err)
		return
	}
	for _, c := range cards {
		if bcrypt.CompareHashAndPassword([]byte(c.CardNumberHash), []byte(cardNumber)) == nil {
			h.b.Publish("card_registration_expired", h.keypad.ID)
			return
		}
	}

	for _, u := range users {
		if u.Deleted || !u.RegistrationOpen(now) {
			continue
		}
		if err := h.repo.BindCard(ctx, cardNumber, u.ID); err != nil {
			h.logger.Printf("keypad %d: bind card: %v", h.keypad.ID, err)
			return
		}
		_ = h.repo.ClearCardRegistration(ctx, u.ID)
		h.mu.Lock()
		h.registerUntil = time.Time{}
		h.mu.Unlock()
		h.b.Publish("card_registered", h.keypad.ID)
		return
	}
	h.b.Publish("card_registration_expired", h.keypad.ID)
}

func (h *Handler) handleFunction(ctx context.Context, f hal.Frame) {
	var armType model.ArmType
	switch f.FunctionKey {
	case "#1":
		armType = model.ArmTypeAway
	case "#2":
		armType = model.ArmTypeStay
	default:
		h.logger.Printf("keypad %d: unknown function key %q", h.keypad.ID, f.FunctionKey)
		return
	}
	if err := h.arm.Arm(ctx, armType, nil, &h.keypad.ID); err != nil {
		h.logger.Printf("keypad %d: arm: %v", h.keypad.ID, err)
	}
}

func (h *Handler) handleDigit(ctx context.Context, f hal.Frame) {
	h.mu.Lock()
	h.digits = append(h.digits, f.Digit)
	h.lastPress = time.Now()
	full := len(h.digits) == 4
	var code string
	if full {
		code = string(h.digits)
		h.digits = nil
	}
	h.mu.Unlock()

	if !full {
		return
	}
	h.handleAccessCode(ctx, code)
}

func (h *Handler) handleAccessCode(ctx context.Context, code string) {
	users, err := h.repo.Users(ctx)
	if err != nil {
		h.logger.Printf("keypad %d: load users: %v", h.keypad.ID, err)
		return
	}
	for _, u := range users {
		if u.Deleted || u.PINHash == nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(*u.PINHash), []byte(code)) == nil {
			userID := u.ID
			if err := h.arm.Disarm(ctx, &userID, &h.keypad.ID, nil); err != nil {
				h.logger.Printf("keypad %d: disarm via code: %v", h.keypad.ID, err)
			}
			return
		}
	}
	_ = h.reader.Beep(ctx, hal.BeepError)
}

func (h *Handler) expireRegistration() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.registerUntil.IsZero() && h.registerUntil.Before(time.Now()) {
		h.registerUntil = time.Time{}
		h.b.Publish("card_registration_expired", h.keypad.ID)
	}
}

func (h *Handler) expireDigits() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.digits) > 0 && time.Since(h.lastPress) > digitIdleClear {
		h.digits = nil
	}
}
