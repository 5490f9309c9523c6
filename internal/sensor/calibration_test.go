package sensor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	mu      sync.Mutex
	values  map[int]float64
	reads   int
}

func (f *fakeInput) ChannelCount() int { return 8 }

func (f *fakeInput) ReadChannel(_ context.Context, ch int) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.values[ch], nil
}

func TestCalibrateAveragesSamples(t *testing.T) {
	in := &fakeInput{values: map[int]float64{0: 1.0, 1: 2.0}}
	s0 := &model.Sensor{ID: 1, Channel: 0, Enabled: true}
	s1 := &model.Sensor{ID: 2, Channel: 1, Enabled: true}

	err := Calibrate(context.Background(), in, []*model.Sensor{s0, s1}, 3, time.Microsecond)
	require.NoError(t, err)

	require.NotNil(t, s0.ReferenceValue)
	require.InDelta(t, 1.0, *s0.ReferenceValue, 1e-9)
	require.NotNil(t, s1.ReferenceValue)
	require.InDelta(t, 2.0, *s1.ReferenceValue, 1e-9)
	require.Equal(t, 6, in.reads)
}

func TestCalibrateIsIdempotent(t *testing.T) {
	in := &fakeInput{values: map[int]float64{0: 9.0}}
	existing := 1.23
	s0 := &model.Sensor{ID: 1, Channel: 0, Enabled: true, ReferenceValue: &existing}

	err := Calibrate(context.Background(), in, []*model.Sensor{s0}, 2, time.Microsecond)
	require.NoError(t, err)
	require.InDelta(t, 1.23, *s0.ReferenceValue, 1e-9)
	require.Equal(t, 0, in.reads)
}

func TestCalibrateSkipsUnchanneledAndDeleted(t *testing.T) {
	in := &fakeInput{values: map[int]float64{}}
	unassigned := &model.Sensor{ID: 1, Channel: model.UnassignedChannel, Enabled: true}
	deleted := &model.Sensor{ID: 2, Channel: 0, Deleted: true}

	err := Calibrate(context.Background(), in, []*model.Sensor{unassigned, deleted}, 2, time.Microsecond)
	require.NoError(t, err)
	require.Equal(t, 0, in.reads)
}
