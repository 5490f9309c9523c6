package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(4)

	b.Publish("arm_state_change", "AWAY")

	select {
	case msg := <-ch:
		require.Equal(t, "arm_state_change", msg.Tag)
		require.Equal(t, "AWAY", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("did not receive message")
	}
}

func TestPublishFiltersByTag(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(4, "alert_state_change")

	b.Publish("arm_state_change", "AWAY")
	b.Publish("alert_state_change", "ALERT")

	select {
	case msg := <-ch:
		require.Equal(t, "alert_state_change", msg.Tag)
	case <-time.After(time.Second):
		t.Fatal("did not receive message")
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsOldestWhenMailboxFull(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(1)

	b.Publish("tag", 1)
	b.Publish("tag", 2)

	msg := <-ch
	require.Equal(t, 2, msg.Payload)
}

func TestUnsubscribeClosesMailbox(t *testing.T) {
	b := New(nil)
	ch, id := b.Subscribe(1)
	b.Unsubscribe(id)

	_, ok := <-ch
	require.False(t, ok)
}
