// Package sensor implements the sensor engine:
// wiring-strategy voltage levels, the per-sensor sliding window, reference
// calibration, and the sampling loop that drives alert/error classification.
package sensor

import "github.com/arpi-project/monitord/internal/model"

// PullUpConfig derives the seven wiring-strategy voltage constants from a
// pull-up resistor and two EOL resistors (RA, RB), the way the original's
// monitor/sensor/wirings.py PullUpConfig does. Voltages are expressed as a
// fraction of vRef in [0,1]; callers scale by the board's actual reference
// voltage before comparing against sampled readings.
type PullUpConfig struct {
	RPullUp float64
	RA      float64
	RB      float64
}

// SingleEOL returns the default/active levels for a single sensor wired
// with one EOL resistor, NC or NO.
func (c PullUpConfig) SingleEOL(contact model.ContactType) (deflt, active float64) {
	deflt = c.RA / (c.RA + c.RPullUp)
	if contact == model.ContactNC {
		return deflt, 1.0
	}
	return deflt, 0.0
}

// SingleTwoEOL returns the default/active levels for a single sensor wired
// with two EOL resistors, NC or NO.
func (c PullUpConfig) SingleTwoEOL(contact model.ContactType) (deflt, active float64) {
	if contact == model.ContactNC {
		deflt = c.RA / (c.RA + c.RPullUp)
		active = (c.RA + c.RB) / (c.RA + c.RB + c.RPullUp)
		return deflt, active
	}
	deflt = (c.RA + c.RB) / (c.RA + c.RB + c.RPullUp)
	active = c.RA / (c.RA + c.RPullUp)
	return deflt, active
}

// DualLevels holds the four voltage points a dual-sensor (CHANNEL_A /
// CHANNEL_B) wiring strategy can settle at.
type DualLevels struct {
	Default    float64
	AActive    float64
	BActive    float64
	BothActive float64
}

// Dual returns the dual-sensor voltage levels for contact, NC or NO.
func (c PullUpConfig) Dual(contact model.ContactType) DualLevels {
	aActive := c.RB / (c.RB + c.RPullUp)
	bActive := c.RA / (c.RA + c.RPullUp)

	if contact == model.ContactNC {
		rAB := 1 / (1/c.RA + 1/c.RB)
		return DualLevels{
			Default:    rAB / (rAB + c.RPullUp),
			AActive:    aActive,
			BActive:    bActive,
			BothActive: 1.0,
		}
	}
	return DualLevels{
		Default:    (c.RA + c.RB) / (c.RA + c.RB + c.RPullUp),
		AActive:    aActive,
		BActive:    bActive,
		BothActive: 0.0,
	}
}

// Strategy is the resolved, board-scaled set of voltage constants a single
// sensor's channel configuration is checked against.
type Strategy struct {
	VRef float64

	// Basic/Normal channels.
	Default float64
	Active  float64

	// Channel_A/Channel_B dual-sensor channels.
	Dual DualLevels
}

// Resolve scales a PullUpConfig's fractional levels by vRef and picks the
// formula appropriate to s's channel type, EOL count and contact type.
func Resolve(cfg PullUpConfig, vRef float64, s *model.Sensor) Strategy {
	switch s.ChannelType {
	case model.ChannelA, model.ChannelB:
		d := cfg.Dual(s.ContactType)
		return Strategy{
			VRef: vRef,
			Dual: DualLevels{
				Default:    d.Default * vRef,
				AActive:    d.AActive * vRef,
				BActive:    d.BActive * vRef,
				BothActive: d.BothActive * vRef,
			},
		}
	default:
		var deflt, active float64
		if s.EOLCount == model.EOLDouble {
			deflt, active = cfg.SingleTwoEOL(s.ContactType)
		} else {
			deflt, active = cfg.SingleEOL(s.ContactType)
		}
		return Strategy{VRef: vRef, Default: deflt * vRef, Active: active * vRef}
	}
}
