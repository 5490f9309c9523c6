// Package adcv2 drives the board-v2 resistive-divider sensor inputs
// through an MCP3008-style SPI ADC, in the idiom of
// seedhammer-seedhammer's lcd.Open/periph.io SPI usage.
package adcv2

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

const (
	channelCount = 8
	vRef         = 3.3
	resolution   = 1 << 10 // 10-bit ADC
)

// outputPins maps logical output channel indices to BCM GPIO lines for
// board v2, which drives its sensor inputs over SPI but its sirens/
// signs/auxiliary outputs over plain GPIO, same as board v3.
var outputPins = []gpio.PinIO{
	bcm283x.GPIO2, bcm283x.GPIO3, bcm283x.GPIO4, bcm283x.GPIO7,
	bcm283x.GPIO8, bcm283x.GPIO9, bcm283x.GPIO10, bcm283x.GPIO11,
}

// powerSensePin reads low while mains power is present and high on
// battery, matching the original's DigitalInputDevice power sense.
var powerSensePin = bcm283x.GPIO6

// ADC is the hal.SensorInput implementation for board v2.
type ADC struct {
	port spi.PortCloser
	conn spi.Conn
}

// Open initializes periph's host drivers and connects to the first
// available SPI bus for MCP3008-style conversion reads.
func Open() (*ADC, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv2: host init: %w", err)
	}

	p, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("adcv2: open spi: %w", err)
	}

	c, err := p.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("adcv2: connect spi: %w", err)
	}

	return &ADC{port: p, conn: c}, nil
}

// Close releases the underlying SPI port.
func (a *ADC) Close() error {
	return a.port.Close()
}

// ChannelCount is the number of single-ended inputs on an MCP3008.
func (a *ADC) ChannelCount() int {
	return channelCount
}

// ReadChannel issues the MCP3008 single-ended conversion sequence for ch
// and returns the result as a voltage in [0, vRef].
func (a *ADC) ReadChannel(ctx context.Context, ch int) (float64, error) {
	if ch < 0 || ch >= channelCount {
		return 0, fmt.Errorf("adcv2: channel %d out of range", ch)
	}

	start := byte(0x01)
	control := byte((0x08 | ch) << 4)
	tx := []byte{start, control, 0x00}
	rx := make([]byte, len(tx))

	if err := a.conn.Tx(tx, rx); err != nil {
		return 0, fmt.Errorf("adcv2: spi transfer: %w", err)
	}

	raw := int(rx[1]&0x03)<<8 | int(rx[2])
	return float64(raw) / float64(resolution) * vRef, nil
}

// Outputs is the hal.OutputDriver implementation for board v2.
type Outputs struct{}

// OpenOutputs configures the board v2 output lines as low by default.
func OpenOutputs() (*Outputs, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv2: host init: %w", err)
	}
	for _, p := range outputPins {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("adcv2: configure %s: %w", p, err)
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
		return fmt.Errorf("adcv2: channel %d out of range", ch)
	}
	level := gpio.Low
	if active {
		level = gpio.High
	}
	return outputPins[ch].Out(level)
}

// Power is the hal.PowerDetect implementation for board v2.
type Power struct{}

// OpenPower configures the power-sense line as a pulled-up input.
func OpenPower() (*Power, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adcv2: host init: %w", err)
	}
	if err := powerSensePin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("adcv2: configure power sense: %w", err)
	}
	return &Power{}, nil
}

// ACPresent reports true when the sense line reads low (mains power).
func (p *Power) ACPresent(_ context.Context) (bool, error) {
	return powerSensePin.Read() == gpio.Low, nil
}
