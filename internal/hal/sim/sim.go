// Package sim implements the simulator board used for board variant
// "sim" or use_simulator, and by tests: channel values come from a JSON fixture file
// under an afero.Fs, grounded on the original's
// monitor/adapters/mock/sensor.py CH01..CH15-keyed simulator_input.json.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

const defaultChannelCount = 16

// Board is a simulator-backed hal.SensorInput + hal.OutputDriver +
// hal.PowerDetect, reading input values from one JSON file and recording
// output/power state to another, both under fsys.
type Board struct {
	fsys afero.Fs

	inputPath  string
	outputPath string

	channelCount int

	mu      sync.Mutex
	outputs map[string]bool
}

// New returns a simulator Board reading inputPath (keys "CH01".."CHnn",
// float values) and writing outputPath on every Set call.
func New(fsys afero.Fs, inputPath, outputPath string, channelCount int) *Board {
	if channelCount <= 0 {
		channelCount = defaultChannelCount
	}
	return &Board{
		fsys:         fsys,
		inputPath:    inputPath,
		outputPath:   outputPath,
		channelCount: channelCount,
		outputs:      make(map[string]bool),
	}
}

// ChannelCount returns the configured simulated channel count.
func (b *Board) ChannelCount() int {
	return b.channelCount
}

// ReadChannel reads the simulated value for ch from the input fixture.
// A missing file or key reads as 0.0, matching the original's fallback.
func (b *Board) ReadChannel(_ context.Context, ch int) (float64, error) {
	if ch < 0 || ch >= b.channelCount {
		return 0, fmt.Errorf("sim: channel %d out of range", ch)
	}

	data, err := afero.ReadFile(b.fsys, b.inputPath)
	if err != nil {
		return 0, nil
	}

	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return 0, nil
	}

	key := fmt.Sprintf("CH%02d", ch+1)
	return values[key], nil
}

// Set records channel ch's active state to the output fixture file.
func (b *Board) Set(_ context.Context, ch int, active bool) error {
	if ch < 0 || ch >= b.channelCount {
		return fmt.Errorf("sim: channel %d out of range", ch)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := fmt.Sprintf("CH%02d", ch+1)
	b.outputs[key] = active

	data, err := json.MarshalIndent(b.outputs, "", "  ")
	if err != nil {
		return fmt.Errorf("sim: marshal outputs: %w", err)
	}

	if err := afero.WriteFile(b.fsys, b.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("sim: write outputs: %w", err)
	}

	return nil
}

// ACPresent reads the simulated "POWER" key from the input fixture,
// matching the original's get_input_state("POWER") check.
func (b *Board) ACPresent(_ context.Context) (bool, error) {
	data, err := afero.ReadFile(b.fsys, b.inputPath)
	if err != nil {
		return true, nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return true, nil
	}

	raw, ok := values["POWER"]
	if !ok {
		return true, nil
	}

	var on bool
	if err := json.Unmarshal(raw, &on); err != nil {
		return true, nil
	}
	return on, nil
}
