package planner

import (
	"testing"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func safetyFixture(paths []entity.LaneChangePath, foundSafe bool) (*Module, []entity.ILanelet) {
	current := &fakeLanelet{id: 1, length: 500, width: 3.5, y: 0}
	target := &fakeLanelet{id: 2, length: 500, width: 3.5, y: 3.5}
	current.left = target
	target.right = current
	route := &fakeRoute{lanelets: []entity.ILanelet{current, target}}
	gen := &fakeGenerator{paths: paths, foundSafe: foundSafe}
	m := newTestModule(route, gen)
	m.data.CurrentLanelets = []entity.ILanelet{current}
	return m, []entity.ILanelet{target}
}

func TestGetSafePathSelectsLastSafe(t *testing.T) {
	// candidates tagged by acceleration so the selection is observable
	paths := []entity.LaneChangePath{
		{Acceleration: -1.0, IsSafe: false},
		{Acceleration: -0.5, IsSafe: true},
		{Acceleration: 0, IsSafe: false},
	}
	m, corridor := safetyFixture(paths, true)

	selected, foundValid, foundSafe := m.getSafePath(corridor, entity.LEFT, entity.Snapshot{})
	require.True(t, foundValid)
	require.True(t, foundSafe)
	// the last safe candidate wins, not the first or the overall last
	assert.Equal(t, -0.5, selected.Acceleration)
}

func TestGetSafePathEmptyCandidates(t *testing.T) {
	m, corridor := safetyFixture(nil, false)

	_, foundValid, foundSafe := m.getSafePath(corridor, entity.LEFT, entity.Snapshot{})
	assert.False(t, foundValid)
	assert.False(t, foundSafe)
}

func TestGetSafePathEmptyCorridor(t *testing.T) {
	m, _ := safetyFixture(nil, false)
	gen := m.generator.(*fakeGenerator)

	_, foundValid, foundSafe := m.getSafePath(nil, entity.LEFT, entity.Snapshot{})
	assert.False(t, foundValid)
	assert.False(t, foundSafe)
	// empty corridor short-circuits before the generator is invoked
	assert.Equal(t, 0, gen.pathCalls)
}

func TestGetSafePathForcedFallback(t *testing.T) {
	paths := []entity.LaneChangePath{
		{Acceleration: -1.0, IsSafe: false},
		{Acceleration: 0, IsSafe: false},
	}
	m, corridor := safetyFixture(paths, false)

	selected, foundValid, foundSafe := m.getSafePath(corridor, entity.LEFT, entity.Snapshot{})
	require.True(t, foundValid)
	assert.False(t, foundSafe)
	// without a safe candidate the first one is returned as advisory fallback
	assert.Equal(t, -1.0, selected.Acceleration)
}

func TestGetSafePathCachesDiagnostics(t *testing.T) {
	paths := []entity.LaneChangePath{{Acceleration: 0, IsSafe: true}}
	m, corridor := safetyFixture(paths, true)
	gen := m.generator.(*fakeGenerator)
	gen.objectDebug = map[string]entity.CollisionCheckDebug{
		"obj-1": {AllowLaneChange: false, FailedReason: "collision at t=1.0s"},
	}

	m.getSafePath(corridor, entity.LEFT, entity.Snapshot{})
	assert.Len(t, m.debug.CandidatePaths, 1)
	assert.Contains(t, m.debug.ObjectDebug, "obj-1")
}
