package model

import "testing"

import "github.com/stretchr/testify/require"

func TestGlobalArmStateAllAway(t *testing.T) {
	areas := []*Area{
		{ID: 1, State: ArmAway},
		{ID: 2, State: ArmAway},
		{ID: 3, State: ArmAway},
	}
	require.Equal(t, ArmAway, GlobalArmState(areas))
}

func TestGlobalArmStateMixed(t *testing.T) {
	areas := []*Area{
		{ID: 1, State: ArmAway},
		{ID: 2, State: ArmAway},
		{ID: 3, State: ArmAway},
		{ID: 4, State: ArmStay},
	}
	require.Equal(t, ArmMixed, GlobalArmState(areas))
}

func TestGlobalArmStateIgnoresDeleted(t *testing.T) {
	areas := []*Area{
		{ID: 1, State: ArmAway},
		{ID: 2, State: ArmStay, Deleted: true},
	}
	require.Equal(t, ArmAway, GlobalArmState(areas))
}

func TestGlobalArmStateNoAreas(t *testing.T) {
	require.Equal(t, ArmDisarm, GlobalArmState(nil))
}
