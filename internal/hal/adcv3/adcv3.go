// Package adcv3 drives the board-v3 digital GPIO sensor and output
// channels via periph.io, the way seedhammer-seedhammer's driver/wshat
// package drives its button/joystick GPIO lines.
package adcv3

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

// inputPins and outputPins map logical channel indices to BCM GPIO
// lines. The board wires a fixed 16 inputs / 16 outputs.
var inputPins = []gpio.PinIO{
	bcm283x.GPIO5, bcm283x.GPIO6, bcm283x.GPIO12, bcm283x.GPIO13,
	bcm283x.GPIO16, bcm283x.GPIO17, bcm283x.GPIO19, bcm283x.GPIO20,
	bcm283x.GPIO21, bcm283x.GPIO22, bcm283x.GPIO23, bcm283x.GPIO24,
	bcm283x.GPIO25, bcm283x.GPIO26, bcm283x.GPIO27, bcm283x.GPIO18,
}

var outputPins = []gpio.PinIO{
	bcm283x.GPIO2, bcm283x.GPIO3, bcm283x.GPIO4, bcm283x.GPIO7,
	bcm283x.GPIO8, bcm283x.GPIO9, bcm283x.GPIO10, bcm283x.GPIO11,
	bcm283x.GPIO14, bcm283x.GPIO15, bcm283x.GPIO28, bcm283x.GPIO29,
	bcm283x.GPIO30, bcm283x.GPIO31, bcm283x.GPIO0, bcm283x.GPIO1,
}

// powerSensePin mirrors the original's MCP3008 AD2-channel-0 power
// sense as a single digital line, simplified from the original's
// analog threshold comparison since board v3's other inputs are
// already digital GPIO in this port.
var powerSensePin = bcm283x.GPIO32

// Inputs is the hal.SensorInput implementation for board v3. Digital
// pins are reported as 0.0 (low) or 3.3 (high) so the sensor engine's
// voltage-comparison strategies apply uniformly across
// board variants.
type Inputs struct{}

// OpenInputs initializes periph's host drivers and configures the board
// v3 input lines with pull-ups, matching the sensor loop's quiescent-high
// wiring.
func OpenInputs() (*Inputs, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv3: host init: %w", err)
	}
	for _, p := range inputPins {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("adcv3: configure %s: %w", p, err)
		}
	}
	return &Inputs{}, nil
}

// ChannelCount returns the number of wired digital inputs.
func (i *Inputs) ChannelCount() int {
	return len(inputPins)
}

// ReadChannel reads the digital level of channel ch as 3.3V (high) or
// 0V (low).
func (i *Inputs) ReadChannel(_ context.Context, ch int) (float64, error) {
	if ch < 0 || ch >= len(inputPins) {
		return 0, fmt.Errorf("adcv3: channel %d out of range", ch)
	}
	if inputPins[ch].Read() == gpio.High {
		return 3.3, nil
	}
	return 0, nil
}

// Outputs is the hal.OutputDriver implementation for board v3.
type Outputs struct{}

// OpenOutputs configures the board v3 output lines as low by default.
func OpenOutputs() (*Outputs, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv3: host init: %w", err)
	}
	for _, p := range outputPins {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("adcv3: configure %s: %w", p, err)
		}
	}
	return &Outputs{}, nil
}

// ChannelCount returns the number of wired digital outputs.
func (o *Outputs) ChannelCount() int {
	return len(outputPins)
}

// Set drives channel ch high or low.
func (o *Outputs) Set(_ context.Context, ch int, active bool) error {
	if ch < 0 || ch >= len(outputPins) {
		return fmt.Errorf("adcv3: channel %d out of range", ch)
	}
	level := gpio.Low
	if active {
		level = gpio.High
	}
	return outputPins[ch].Out(level)
}

// Power is the hal.PowerDetect implementation for board v3.
type Power struct{}

// OpenPower configures the power-sense line as a pulled-up input.
func OpenPower() (*Power, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv3: host init: %w", err)
	}
	if err := powerSensePin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("adcv3: configure power sense: %w", err)
	}
	return &Power{}, nil
}

// ACPresent reports true when the sense line reads low (mains power).
func (p *Power) ACPresent(_ context.Context) (bool, error) {
	return powerSensePin.Read() == gpio.Low, nil
}
