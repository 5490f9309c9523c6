package coordinator

import (
	"time"

	"github.com/arpi-project/monitord/internal/model"
)

// AreaGlobalSource reports the system's reconciled arm state, consumed
// by DelayResolver to pick which zone delay field AlertDelay applies.
type AreaGlobalSource interface {
	Global() model.ArmState
}

// DelayResolver implements internal/keypad's DelaySource by taking the
// max configured delay across every non-deleted zone that still has an
// enabled sensor.
type DelayResolver struct {
	zones        []*model.Zone
	zoneHasArmed map[int]bool
	areas        AreaGlobalSource
}

// NewDelayResolver builds a DelayResolver over the given static
// sensor/zone set.
func NewDelayResolver(sensors []*model.Sensor, zones []*model.Zone, areas AreaGlobalSource) *DelayResolver {
	has := make(map[int]bool)
	for _, s := range sensors {
		if !s.Deleted && s.Enabled {
			has[s.ZoneID] = true
		}
	}
	return &DelayResolver{zones: zones, zoneHasArmed: has, areas: areas}
}

// ArmDelay returns the longest away/stay arm-delay among participating
// zones, or 0 if none defines one.
func (d *DelayResolver) ArmDelay(armType model.ArmType) time.Duration {
	return d.maxDelay(func(z *model.Zone) *int {
		if armType == model.ArmTypeStay {
			return z.StayArmDelay
		}
		return z.AwayArmDelay
	})
}

// AlertDelay returns the longest alert-delay for whichever arm type is
// currently in effect system-wide.
func (d *DelayResolver) AlertDelay() time.Duration {
	armType := model.ArmTypeAway
	if d.areas.Global() == model.ArmStay {
		armType = model.ArmTypeStay
	}
	return d.maxDelay(func(z *model.Zone) *int {
		if armType == model.ArmTypeStay {
			return z.StayAlertDelay
		}
		return z.AwayAlertDelay
	})
}

func (d *DelayResolver) maxDelay(pick func(*model.Zone) *int) time.Duration {
	max := -1
	for _, z := range d.zones {
		if z.Deleted || !d.zoneHasArmed[z.ID] {
			continue
		}
		if v := pick(z); v != nil && *v > max {
			max = *v
		}
	}
	if max < 0 {
		return 0
	}
	return time.Duration(max) * time.Second
}
