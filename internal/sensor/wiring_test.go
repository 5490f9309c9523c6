package sensor

import (
	"testing"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/stretchr/testify/require"
)

func TestSingleEOLLevels(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700}

	deflt, active := cfg.SingleEOL(model.ContactNC)
	require.InDelta(t, 4700.0/14700.0, deflt, 1e-9)
	require.Equal(t, 1.0, active)

	deflt, active = cfg.SingleEOL(model.ContactNO)
	require.InDelta(t, 4700.0/14700.0, deflt, 1e-9)
	require.Equal(t, 0.0, active)
}

func TestSingleTwoEOLLevels(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700, RB: 2200}

	deflt, active := cfg.SingleTwoEOL(model.ContactNC)
	require.InDelta(t, 4700.0/14700.0, deflt, 1e-9)
	require.InDelta(t, 6900.0/16900.0, active, 1e-9)

	deflt, active = cfg.SingleTwoEOL(model.ContactNO)
	require.InDelta(t, 6900.0/16900.0, deflt, 1e-9)
	require.InDelta(t, 4700.0/14700.0, active, 1e-9)
}

func TestDualLevelsNC(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700, RB: 2200}
	d := cfg.Dual(model.ContactNC)

	rAB := 1 / (1/4700.0 + 1/2200.0)
	require.InDelta(t, rAB/(rAB+10000.0), d.Default, 1e-9)
	require.InDelta(t, 2200.0/12200.0, d.AActive, 1e-9)
	require.InDelta(t, 4700.0/14700.0, d.BActive, 1e-9)
	require.Equal(t, 1.0, d.BothActive)
}

func TestDualLevelsNO(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700, RB: 2200}
	d := cfg.Dual(model.ContactNO)

	require.InDelta(t, 6900.0/16900.0, d.Default, 1e-9)
	require.Equal(t, 0.0, d.BothActive)
}

func TestResolveScalesByVRef(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700}
	s := &model.Sensor{ChannelType: model.ChannelBasic, ContactType: model.ContactNC, EOLCount: model.EOLSingle}

	strat := Resolve(cfg, 3.3, s)
	require.InDelta(t, 3.3, strat.Active, 1e-9)
	require.InDelta(t, (4700.0/14700.0)*3.3, strat.Default, 1e-9)
}

func TestResolveDualChannel(t *testing.T) {
	cfg := PullUpConfig{RPullUp: 10000, RA: 4700, RB: 2200}
	s := &model.Sensor{ChannelType: model.ChannelA, ContactType: model.ContactNC, EOLCount: model.EOLDouble}

	strat := Resolve(cfg, 3.3, s)
	require.InDelta(t, 3.3, strat.Dual.BothActive, 1e-9)
}
