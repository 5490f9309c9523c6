package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/model"
)

// Calibrate takes MeasurementCycles samples at MeasurementInterval for
// every sensor with a channel but no reference value, averages them per
// channel, and writes the result back. Already-calibrated
// sensors are left untouched, making the pass idempotent.
func Calibrate(ctx context.Context, in hal.SensorInput, sensors []*model.Sensor, cycles int, interval time.Duration) error {
	if cycles < 1 {
		return fmt.Errorf("sensor: measurement cycles must be >= 1, got %d", cycles)
	}

	pending := make(map[int]*model.Sensor)
	for _, s := range sensors {
		if s.Deleted || !s.HasChannel() || s.Calibrated() {
			continue
		}
		pending[s.Channel] = s
	}
	if len(pending) == 0 {
		return nil
	}

	sums := make(map[int]float64, len(pending))

	for i := 0; i < cycles; i++ {
		for ch := range pending {
			v, err := in.ReadChannel(ctx, ch)
			if err != nil {
				return fmt.Errorf("sensor: calibration read channel %d: %w", ch, err)
			}
			sums[ch] += v
		}

		if i < cycles-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("sensor: calibration interrupted: %w", ctx.Err())
			case <-time.After(interval):
			}
		}
	}

	for ch, s := range pending {
		avg := sums[ch] / float64(cycles)
		s.ReferenceValue = &avg
	}

	return nil
}
