package planner

import (
	"testing"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// abortFixture prepares a running, approved lane change towards the left lane.
func abortFixture(gen *fakeGenerator) *Module {
	current, left, route := twoLaneWorld()
	m := newTestModule(route, gen)
	m.params.LaneChange.EnableCancelLaneChange = true
	m.params.LaneChange.EnableAbortLaneChange = true
	m.status = entity.ModuleRunning
	m.waitingApproval = false
	m.direction = entity.LEFT
	m.gate.Approve(m.gate.ID(entity.LEFT))
	m.lcStatus.CurrentLanelets = []entity.ILanelet{current}
	m.lcStatus.LaneChangeLanelets = []entity.ILanelet{left}
	m.lcStatus.LaneChangePath = leftShiftPath(0, 3.5, 10, 40, 100, true, 2)
	m.snap = egoSnapshot(15)
	return m
}

func TestAbortStillSafeKeepsNormal(t *testing.T) {
	gen := &fakeGenerator{approvedSafe: true, withinLane: true}
	m := abortFixture(gen)

	assert.False(t, m.isAbortConditionSatisfied())
	assert.Equal(t, entity.LaneChangeNormal, m.State())
}

func TestAbortCancelWhileWithinOriginalLane(t *testing.T) {
	gen := &fakeGenerator{approvedSafe: false, withinLane: true}
	m := abortFixture(gen)

	assert.True(t, m.isAbortConditionSatisfied())
	assert.Equal(t, entity.LaneChangeCancel, m.State())
}

func TestAbortDisabledHoldsWithStop(t *testing.T) {
	gen := &fakeGenerator{approvedSafe: false, withinLane: false}
	m := abortFixture(gen)
	m.params.LaneChange.EnableAbortLaneChange = false

	// returns false: the hold must not re-trigger cancellation every cycle
	assert.False(t, m.isAbortConditionSatisfied())
	assert.Equal(t, entity.LaneChangeStop, m.State())
}

func TestAbortPathNotFoundForcesStop(t *testing.T) {
	gen := &fakeGenerator{approvedSafe: false, withinLane: false, abortFound: false}
	m := abortFixture(gen)

	assert.True(t, m.isAbortConditionSatisfied())
	assert.Equal(t, entity.LaneChangeStop, m.State())
}

func TestAbortPathIdempotence(t *testing.T) {
	abortPath := leftShiftPath(3.5, 0, 5, 30, 80, true, 1)
	gen := &fakeGenerator{
		approvedSafe: false,
		withinLane:   false,
		abortPath:    &abortPath,
		abortFound:   true,
	}
	m := abortFixture(gen)

	require.True(t, m.isAbortConditionSatisfied())
	require.Equal(t, entity.LaneChangeAbort, m.State())
	first := m.abortPath

	// a second evaluation before approval must reuse the cached path
	require.True(t, m.isAbortConditionSatisfied())
	assert.Same(t, first, m.abortPath)
	assert.Equal(t, 1, gen.abortCalls, "abort geometry must be computed exactly once before approval")
}

func TestAbortRegeneratesManeuverID(t *testing.T) {
	// abort of a leftward lane change shifts rightward (negative shift)
	abortPath := leftShiftPath(2.0, 0, 5, 30, 80, true, 1)
	gen := &fakeGenerator{
		approvedSafe: false,
		withinLane:   false,
		abortPath:    &abortPath,
		abortFound:   true,
	}
	m := abortFixture(gen)
	oldID := m.gate.ID(entity.LEFT)

	require.True(t, m.isAbortConditionSatisfied())
	require.Equal(t, entity.LaneChangeAbort, m.State())

	m.resetPathIfAbort()
	assert.NotEqual(t, oldID, m.gate.ID(entity.LEFT), "stale approval must not apply to the abort geometry")
	assert.True(t, m.waitingApproval, "abort geometry needs a fresh approval")
	assert.False(t, m.isAbortPathApproved)

	// approving the new id commits the abort path
	m.Approve(m.gate.ID(entity.LEFT))
	m.resetPathIfAbort()
	assert.True(t, m.isAbortPathApproved)
	assert.False(t, m.waitingApproval)
}
