package main

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/config"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/hal/adcv2"
	"github.com/arpi-project/monitord/internal/hal/adcv3"
	"github.com/arpi-project/monitord/internal/hal/sim"
)

const (
	simInputPath  = "/var/lib/monitord/sim-input.json"
	simOutputPath = "/var/lib/monitord/sim-output.json"
	simChannels   = 32
)

// openBoard opens the sensor input, output driver and power-detect
// drivers for the configured board variant; UseSimulator selects the
// simulator whatever the variant. Board v2 and v3 expose
// three independent open calls, one per concern; the simulator exposes
// one *sim.Board satisfying all three hal interfaces at once.
func openBoard(cfg config.BoardConfig, fsys afero.Fs) (hal.SensorInput, hal.OutputDriver, hal.PowerDetect, error) {
	variant := cfg.Variant
	if cfg.UseSimulator {
		variant = "sim"
	}
	switch variant {
	case "v2":
		in, err := adcv2.Open()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v2 adc: %w", err)
		}
		out, err := adcv2.OpenOutputs()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v2 outputs: %w", err)
		}
		pow, err := adcv2.OpenPower()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v2 power: %w", err)
		}
		return in, out, pow, nil
	case "v3":
		in, err := adcv3.OpenInputs()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v3 inputs: %w", err)
		}
		out, err := adcv3.OpenOutputs()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v3 outputs: %w", err)
		}
		pow, err := adcv3.OpenPower()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hal: open v3 power: %w", err)
		}
		return in, out, pow, nil
	case "sim":
		board := sim.New(fsys, simInputPath, simOutputPath, simChannels)
		return board, board, board, nil
	default:
		return nil, nil, nil, fmt.Errorf("hal: unknown board variant %q", cfg.Variant)
	}
}
