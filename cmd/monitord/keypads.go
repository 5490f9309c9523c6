package main

import (
	"fmt"
	"log"

	"github.com/spf13/afero"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/arpi-project/monitord/internal/config"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/keypad"
	"github.com/arpi-project/monitord/internal/model"
)

// openKeypadReader constructs the hal.KeypadReader variant the YAML
// entry's Type selects: DSC over the GSM-style serial AT dialog,
// Wiegand over a pair of GPIO edge-interrupt lines, or a filesystem
// fixture for testing/simulation.
func openKeypadReader(kind model.KeypadType, y config.KeypadYAML, fsys afero.Fs, logger *log.Logger) (hal.KeypadReader, error) {
	switch kind {
	case model.KeypadDSC:
		return keypad.NewDSCReader(y.Port, y.Baud, logger)
	case model.KeypadWiegand:
		d0 := resolvePin(y.WiegandD0)
		d1 := resolvePin(y.WiegandD1)
		if d0 == nil || d1 == nil {
			return nil, fmt.Errorf("keypad: wiegand pins %q/%q not found", y.WiegandD0, y.WiegandD1)
		}
		return keypad.NewWiegandReader(d0, d1, logger)
	case model.KeypadMock:
		return keypad.NewMockReader(fsys, y.Path, logger)
	default:
		return nil, fmt.Errorf("keypad: unknown reader type %q", kind)
	}
}

func resolvePin(name string) gpio.PinIn {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil
	}
	return pin
}
