package keypad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayTimerNoBeepWithinSameSecond(t *testing.T) {
	start := time.Now()
	d := newDelayTimer(start, 10*time.Second)
	require.Equal(t, DelayPhaseNoBeep, d.phase(start))
}

func TestDelayTimerNormalThenLast5Secs(t *testing.T) {
	start := time.Now()
	d := newDelayTimer(start, 10*time.Second)

	require.Equal(t, DelayPhaseNormal, d.phase(start.Add(1*time.Second)))
	require.Equal(t, DelayPhaseLast5Secs, d.phase(start.Add(6*time.Second)))
}

func TestDelayTimerElapsedAfterDeadline(t *testing.T) {
	start := time.Now()
	d := newDelayTimer(start, 2*time.Second)
	require.Equal(t, DelayPhaseElapsed, d.phase(start.Add(3*time.Second)))
}
