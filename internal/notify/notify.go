// Package notify implements the notifier: an unbounded FIFO queue of
// notifications, per-channel dispatch across SMS1/SMS2/EMAIL1/EMAIL2, and
// the bounded retry policy that ages a notification out after enough
// failed attempts.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Kind enumerates the notification event types.
type Kind int

const (
	AlertStarted Kind = iota
	AlertStopped
	PowerOutageStarted
	PowerOutageStopped
)

// Channel enumerates the four recipient/transport slots a notification
// is dispatched across.
type Channel int

const (
	SMS1 Channel = iota
	SMS2
	Email1
	Email2
	channelCount
)

const (
	// MaxRetry is the number of dispatch attempts before a notification
	// is dropped unprocessed.
	MaxRetry = 5
	// RetryWait is the minimum interval between dispatch attempts.
	RetryWait = 30 * time.Second
)

// sent is a channel's per-notification outcome: true (delivered), false
// (subscribed but not yet delivered, owes an attempt), or nil
// (unsubscribed, no retry owed).
type sent = *bool

// Notification is one queued event with its per-channel delivery state.
type Notification struct {
	ID      int
	Type    Kind
	Sensors []*model.AlertSensor
	Time    time.Time

	Retry   int
	LastTry time.Time

	Status [channelCount]sent
}

// Processed reports whether every channel slot has resolved to
// delivered or unsubscribed.
func (n *Notification) Processed() bool {
	for _, s := range n.Status {
		if s == nil {
			continue
		}
		if !*s {
			return false
		}
	}
	return true
}

// Transport sends one notification over one channel.
type Transport interface {
	Send(ctx context.Context, ch Channel, n *Notification) error
}

// Subscriptions reports whether a given channel is subscribed to a given
// notification Kind, and whether the channel is configured at all.
type Subscriptions interface {
	Subscribed(ch Channel, kind Kind) bool
	Configured(ch Channel) bool
}

// Queue is the unbounded FIFO notification queue and its dispatch loop.
type Queue struct {
	transport Transport
	subs      Subscriptions
	logger    *log.Logger

	mu      sync.Mutex
	pending []*Notification
	nextID  int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs a Queue.
func New(transport Transport, subs Subscriptions, logger *log.Logger) (*Queue, error) {
	if transport == nil || subs == nil || logger == nil {
		return nil, fmt.Errorf("%w: required dependency is nil", sysutil.ErrInvalidArgument)
	}
	return &Queue{
		transport: transport, subs: subs, logger: logger,
		stop: make(chan struct{}), done: make(chan struct{}),
	}, nil
}

// Enqueue appends a new Notification to the FIFO.
func (q *Queue) Enqueue(kind Kind, sensors []*model.AlertSensor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.pending = append(q.pending, &Notification{
		ID: q.nextID, Type: kind, Sensors: sensors, Time: time.Now(),
	})
}

// NotifyAlertStarted implements alert.Notifier.
func (q *Queue) NotifyAlertStarted(_ context.Context, sensors []*model.AlertSensor) {
	q.Enqueue(AlertStarted, sensors)
}

// NotifyAlertStopped implements alert.Notifier.
func (q *Queue) NotifyAlertStopped(_ context.Context, _ int) {
	q.Enqueue(AlertStopped, nil)
}

// Start runs the dispatch loop, polling the queue at interval until ctx
// is canceled or Stop is called.
func (q *Queue) Start(ctx context.Context, interval time.Duration) {
	go func() {
		defer sysutil.RecoverGoPanic("notify-queue", q.logger)
		defer close(q.done)
		defer q.Stop()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stop:
				return
			case <-ticker.C:
				q.drain(ctx)
			}
		}
	}()
}

// Stop requests the dispatch loop to exit.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stop) })
}

// Done reports when the dispatch loop has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// drain processes one pass over the pending queue: dispatch-eligible
// notifications are attempted now, others are requeued unchanged.
func (q *Queue) drain(ctx context.Context) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var keep []*Notification
	now := time.Now()

	for _, n := range batch {
		for ch := Channel(0); ch < channelCount; ch++ {
			if n.Status[ch] != nil {
				continue
			}
			if !q.subs.Subscribed(ch, n.Type) {
				continue // unsubscribed: Status[ch] stays nil, no retry owed
			}
			owed := false
			n.Status[ch] = &owed
		}

		if n.Processed() {
			continue
		}

		if n.Retry >= MaxRetry {
			q.logger.Printf("notify: dropping notification %d after %d retries", n.ID, n.Retry)
			continue
		}

		if !n.LastTry.IsZero() && n.LastTry.Add(RetryWait).After(now) {
			keep = append(keep, n)
			continue
		}

		q.dispatch(ctx, n)
		n.Retry++
		n.LastTry = now

		if !n.Processed() {
			keep = append(keep, n)
		}
	}

	q.mu.Lock()
	q.pending = append(q.pending, keep...)
	q.mu.Unlock()
}

func (q *Queue) dispatch(ctx context.Context, n *Notification) {
	for ch := Channel(0); ch < channelCount; ch++ {
		if n.Status[ch] == nil || *n.Status[ch] {
			continue
		}
		if !q.subs.Configured(ch) {
			continue
		}
		err := q.transport.Send(ctx, ch, n)
		ok := err == nil
		n.Status[ch] = &ok
		if err != nil {
			q.logger.Printf("notify: channel %d send failed for notification %d: %v", ch, n.ID, err)
		}
	}
}

// Len returns the current queue depth, for diagnostics/tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
