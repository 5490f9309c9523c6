package keypad

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/model"
)

type fakeReader struct {
	mu     sync.Mutex
	frames []hal.Frame
	beeps  []hal.BeepPattern
}

func (r *fakeReader) Poll(_ context.Context, _ time.Duration) (hal.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return hal.Frame{Kind: hal.FrameNone}, nil
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	return f, nil
}

func (r *fakeReader) Beep(_ context.Context, p hal.BeepPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beeps = append(r.beeps, p)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Beeps() []hal.BeepPattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hal.BeepPattern, len(r.beeps))
	copy(out, r.beeps)
	return out
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []*model.User
	cards []*model.Card
	bound []string
}

func (f *fakeUserRepo) Users(context.Context) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeUserRepo) Cards(context.Context) ([]*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cards, nil
}

func (f *fakeUserRepo) BindCard(_ context.Context, cardNumber string, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = append(f.bound, cardNumber)
	h, _ := bcrypt.GenerateFromPassword([]byte(cardNumber), bcrypt.MinCost)
	f.cards = append(f.cards, &model.Card{ID: len(f.cards) + 1, Enabled: true, OwnerID: userID, CardNumberHash: string(h)})
	return nil
}

func (f *fakeUserRepo) ClearCardRegistration(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.CardRegistrationExpiry = nil
		}
	}
	return nil
}

type fakeArm struct {
	mu      sync.Mutex
	armed   []model.ArmType
	disarms int
}

func (a *fakeArm) Arm(_ context.Context, armType model.ArmType, _, _ *int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = append(a.armed, armType)
	return nil
}

func (a *fakeArm) Disarm(context.Context, *int, *int, *int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarms++
	return nil
}

type fakeDelays struct{}

func (fakeDelays) ArmDelay(model.ArmType) time.Duration { return 10 * time.Second }
func (fakeDelays) AlertDelay() time.Duration             { return 10 * time.Second }

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func pinHash(t *testing.T, pin string) *string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(h)
	return &s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestHandler(t *testing.T, reader hal.KeypadReader, repo UserRepo, arm ArmController) *Handler {
	t.Helper()
	kp := &model.Keypad{ID: 1, Enabled: true, Type: model.KeypadMock}
	h, err := New(kp, reader, repo, arm, fakeDelays{}, bus.New(testLogger()), testLogger())
	require.NoError(t, err)
	return h
}

func TestHandlerDisarmsOnCorrectAccessCode(t *testing.T) {
	repo := &fakeUserRepo{users: []*model.User{{ID: 1, PINHash: pinHash(t, "1234")}}}
	arm := &fakeArm{}
	reader := &fakeReader{frames: []hal.Frame{
		{Kind: hal.FrameDigit, Digit: '1'},
		{Kind: hal.FrameDigit, Digit: '2'},
		{Kind: hal.FrameDigit, Digit: '3'},
		{Kind: hal.FrameDigit, Digit: '4'},
	}}
	h := newTestHandler(t, reader, repo, arm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, func() bool {
		arm.mu.Lock()
		defer arm.mu.Unlock()
		return arm.disarms == 1
	})
}

func TestHandlerBeepsErrorOnWrongAccessCode(t *testing.T) {
	repo := &fakeUserRepo{users: []*model.User{{ID: 1, PINHash: pinHash(t, "1234")}}}
	arm := &fakeArm{}
	reader := &fakeReader{frames: []hal.Frame{
		{Kind: hal.FrameDigit, Digit: '9'},
		{Kind: hal.FrameDigit, Digit: '9'},
		{Kind: hal.FrameDigit, Digit: '9'},
		{Kind: hal.FrameDigit, Digit: '9'},
	}}
	h := newTestHandler(t, reader, repo, arm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, func() bool {
		for _, b := range reader.Beeps() {
			if b == hal.BeepError {
				return true
			}
		}
		return false
	})
}

func TestHandlerArmsOnFunctionKey(t *testing.T) {
	repo := &fakeUserRepo{}
	arm := &fakeArm{}
	reader := &fakeReader{frames: []hal.Frame{{Kind: hal.FrameFunctionKey, FunctionKey: "#1"}}}
	h := newTestHandler(t, reader, repo, arm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, func() bool {
		arm.mu.Lock()
		defer arm.mu.Unlock()
		return len(arm.armed) == 1 && arm.armed[0] == model.ArmTypeAway
	})
}

func TestHandlerRegistersCardDuringOpenWindow(t *testing.T) {
	future := time.Now().Add(time.Minute)
	repo := &fakeUserRepo{users: []*model.User{{ID: 7, CardRegistrationExpiry: &future}}}
	arm := &fakeArm{}
	reader := &fakeReader{frames: []hal.Frame{{Kind: hal.FrameCard, CardBits: 26, CardNumber: 123456}}}
	h := newTestHandler(t, reader, repo, arm)
	h.OpenRegistration()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.bound) == 1
	})
}

func TestHandlerDisarmsOnKnownCardWhenArmed(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("555"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeUserRepo{cards: []*model.Card{{ID: 1, Enabled: true, OwnerID: 2, CardNumberHash: string(hash)}}}
	arm := &fakeArm{}
	reader := &fakeReader{frames: []hal.Frame{{Kind: hal.FrameCard, CardBits: 26, CardNumber: 555}}}
	h := newTestHandler(t, reader, repo, arm)
	h.mu.Lock()
	h.armed = true
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, func() bool {
		arm.mu.Lock()
		defer arm.mu.Unlock()
		return arm.disarms == 1
	})
}
