package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiTransportRoutesSMSChannels(t *testing.T) {
	m := &MultiTransport{}
	err := m.Send(context.Background(), SMS1, &Notification{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SMS")
}

func TestMultiTransportRoutesEmailChannels(t *testing.T) {
	m := &MultiTransport{}
	err := m.Send(context.Background(), Email1, &Notification{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "email")
}

func TestMultiTransportRejectsUnknownChannel(t *testing.T) {
	m := &MultiTransport{}
	err := m.Send(context.Background(), Channel(99), &Notification{})
	require.Error(t, err)
}
