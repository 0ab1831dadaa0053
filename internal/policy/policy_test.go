package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultEngine() *Engine {
	return NewEngine(Config{ExcuseDays: 2, FinePerDay: 5, AlertThreshold: 5})
}

func TestApplyConsumesExcuseDaysBeforeFining(t *testing.T) {
	engine := defaultEngine()

	state := State{}

	state, classification, delta := engine.Apply(state)
	require.Equal(t, ClassificationExcused, classification)
	require.Zero(t, delta)
	require.Equal(t, 1, state.LateDays)
	require.Equal(t, 1, state.ExcuseDaysUsed)
	require.Equal(t, StatusExcused, state.Status)
	require.Zero(t, state.Fines)

	state, classification, delta = engine.Apply(state)
	require.Equal(t, ClassificationExcused, classification)
	require.Zero(t, delta)
	require.Equal(t, 2, state.ExcuseDaysUsed)
	require.Zero(t, engine.ExcuseDaysRemaining(state))
}

func TestThirdLateDayIsFirstFine(t *testing.T) {
	engine := defaultEngine()

	state := State{}
	for i := 0; i < 2; i++ {
		state, _, _ = engine.Apply(state)
	}

	state, classification, delta := engine.Apply(state)
	require.Equal(t, ClassificationFined, classification)
	require.Equal(t, 5, delta)
	require.Equal(t, 3, state.LateDays)
	require.Equal(t, 5, state.Fines)
	require.Equal(t, StatusFined, state.Status)
	require.Equal(t, 1, state.ConsecutiveLateDays)
	require.False(t, state.AlertFaculty, "three late days should not alert faculty")
}

func TestAlertFacultyFlipsAboveThreshold(t *testing.T) {
	engine := defaultEngine()

	state := State{}
	for i := 0; i < 5; i++ {
		state, _, _ = engine.Apply(state)
	}
	require.False(t, state.AlertFaculty)

	state, _, _ = engine.Apply(state)
	require.Equal(t, 6, state.LateDays)
	require.True(t, state.AlertFaculty)
}

func TestFineInvariantHoldsForAllReachableStates(t *testing.T) {
	engine := defaultEngine()
	cfg := engine.Config()

	state := State{}
	for day := 1; day <= 20; day++ {
		state, _, _ = engine.Apply(state)

		expected := 0
		if over := state.LateDays - cfg.ExcuseDays; over > 0 {
			expected = cfg.FinePerDay * over
		}
		require.Equal(t, expected, state.Fines, "day %d", day)

		expectedUsed := state.LateDays
		if expectedUsed > cfg.ExcuseDays {
			expectedUsed = cfg.ExcuseDays
		}
		require.Equal(t, expectedUsed, state.ExcuseDaysUsed, "day %d", day)
	}
}

func TestRevertRestoresPriorState(t *testing.T) {
	engine := defaultEngine()

	state := State{}
	var history []State
	for i := 0; i < 8; i++ {
		history = append(history, state)
		state, _, _ = engine.Apply(state)
	}

	for i := len(history) - 1; i >= 0; i-- {
		wasFined := state.LateDays > engine.Config().ExcuseDays
		state = engine.Revert(state, wasFined)
		require.Equal(t, history[i], state, "revert step %d", i)
	}

	require.Equal(t, StatusNormal, state.Status)
	require.Zero(t, state.LateDays)
}

func TestRevertCrossingBackClearsFineState(t *testing.T) {
	engine := defaultEngine()

	state := State{}
	for i := 0; i < 3; i++ {
		state, _, _ = engine.Apply(state)
	}
	require.Equal(t, StatusFined, state.Status)

	state = engine.Revert(state, true)
	require.Equal(t, StatusExcused, state.Status)
	require.Zero(t, state.Fines)
	require.Zero(t, state.ConsecutiveLateDays)
	require.False(t, state.AlertFaculty)
	require.Equal(t, 2, state.ExcuseDaysUsed)
}

func TestRevertAtZeroStaysAtZero(t *testing.T) {
	engine := defaultEngine()

	state := engine.Revert(State{}, false)
	require.Zero(t, state.LateDays)
	require.Equal(t, StatusNormal, state.Status)
}

func TestCustomConstantsAreRespected(t *testing.T) {
	engine := NewEngine(Config{ExcuseDays: 1, FinePerDay: 10, AlertThreshold: 2})

	state := State{}
	state, classification, delta := engine.Apply(state)
	require.Equal(t, ClassificationExcused, classification)
	require.Zero(t, delta)

	state, classification, delta = engine.Apply(state)
	require.Equal(t, ClassificationFined, classification)
	require.Equal(t, 10, delta)
	require.Equal(t, 10, state.Fines)

	state, _, _ = engine.Apply(state)
	require.True(t, state.AlertFaculty)
}
