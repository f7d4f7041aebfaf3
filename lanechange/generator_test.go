package lanechange_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/lanechange"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightLanelet is a straight lanelet along +X at a fixed Y offset.
type straightLanelet struct {
	id     int32
	length float64
	width  float64
	y      float64
}

func (l *straightLanelet) String() string  { return fmt.Sprintf("lanelet %d", l.id) }
func (l *straightLanelet) ID() int32       { return l.id }
func (l *straightLanelet) Length() float64 { return l.length }
func (l *straightLanelet) Width() float64  { return l.width }
func (l *straightLanelet) MaxV() float64   { return 60 / 3.6 }
func (l *straightLanelet) CenterLine() []geometry.Point {
	return []geometry.Point{{X: 0, Y: l.y}, {X: l.length, Y: l.y}}
}
func (l *straightLanelet) CenterLineLengths() []float64             { return []float64{0, l.length} }
func (l *straightLanelet) Predecessors() []entity.ILanelet          { return nil }
func (l *straightLanelet) Successors() []entity.ILanelet            { return nil }
func (l *straightLanelet) LeftLanelet() entity.ILanelet             { return nil }
func (l *straightLanelet) RightLanelet() entity.ILanelet            { return nil }
func (l *straightLanelet) NeighborLanelet(side int) entity.ILanelet { return nil }
func (l *straightLanelet) GetPositionByS(s float64) geometry.Point {
	return geometry.Point{X: lo.Clamp(s, 0, l.length), Y: l.y}
}
func (l *straightLanelet) GetOffsetPositionByS(s, offset float64) geometry.Point {
	return geometry.Point{X: lo.Clamp(s, 0, l.length), Y: l.y - offset}
}
func (l *straightLanelet) GetDirectionByS(s float64) float64 { return 0 }
func (l *straightLanelet) ProjectToLanelet(pos geometry.Point) float64 {
	return lo.Clamp(pos.X, 0, l.length)
}
func (l *straightLanelet) LateralOffset(pos geometry.Point) float64 { return pos.Y - l.y }
func (l *straightLanelet) ContainsPoint(pos geometry.Point, lateralMargin float64) bool {
	return math.Abs(pos.Y-l.y) <= l.width/2+lateralMargin
}

type flatRoute struct {
	lanelets []entity.ILanelet
}

func (r *flatRoute) Get(id int32) entity.ILanelet {
	l, err := r.GetOrError(id)
	if err != nil {
		panic(err)
	}
	return l
}

func (r *flatRoute) GetOrError(id int32) (entity.ILanelet, error) {
	for _, l := range r.lanelets {
		if l.ID() == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("no id %d", id)
}

func (r *flatRoute) GetLanelets(ids []int32) []entity.ILanelet {
	return lo.Map(ids, func(id int32, _ int) entity.ILanelet { return r.Get(id) })
}

func (r *flatRoute) GetClosestLanelet(lanelets []entity.ILanelet, pose entity.Pose) (entity.ILanelet, bool) {
	var best entity.ILanelet
	bestDist := math.Inf(1)
	for _, l := range lanelets {
		if d := math.Abs(l.LateralOffset(pose.Position)); d < bestDist {
			bestDist = d
			best = l
		}
	}
	return best, best != nil
}

func (r *flatRoute) GetClosestLaneletFromMap(pose entity.Pose) (entity.ILanelet, bool) {
	return r.GetClosestLanelet(r.lanelets, pose)
}

func (r *flatRoute) GetLaneletSequence(lanelet entity.ILanelet, pose entity.Pose, backward, forward float64) []entity.ILanelet {
	return []entity.ILanelet{lanelet}
}

func (r *flatRoute) GetArcCoordinates(lanelets []entity.ILanelet, pose entity.Pose) entity.ArcCoordinates {
	closest, _ := r.GetClosestLanelet(lanelets, pose)
	return entity.ArcCoordinates{
		Length:   closest.ProjectToLanelet(pose.Position),
		Distance: closest.LateralOffset(pose.Position),
	}
}

func (r *flatRoute) GetDistanceToEnd(lanelets []entity.ILanelet, pose entity.Pose) float64 {
	total := .0
	for _, l := range lanelets {
		total += l.Length()
	}
	return total - r.GetArcCoordinates(lanelets, pose).Length
}

func newTestGenerator(laneLength float64) (*lanechange.Generator, []entity.ILanelet, []entity.ILanelet) {
	c, err := config.Load([]byte("control:\n  step:\n    interval: 0.1\n    total: 1000\n"))
	if err != nil {
		panic(err)
	}
	current := &straightLanelet{id: 1, length: laneLength, width: 3.5, y: 0}
	target := &straightLanelet{id: 2, length: laneLength, width: 3.5, y: 3.5}
	route := &flatRoute{lanelets: []entity.ILanelet{current, target}}
	g := lanechange.NewGenerator(c.Planner.Common, c.Planner.LaneChange, route)
	return g, []entity.ILanelet{current}, []entity.ILanelet{target}
}

func egoAt(x, y float64) entity.Pose {
	return entity.Pose{Position: geometry.Point{X: x, Y: y}, Yaw: 0}
}

func TestCandidatesOrderedByCompleteness(t *testing.T) {
	g, current, target := newTestGenerator(500)

	paths, foundSafe, _ := g.GetLaneChangePaths(nil, current, target, egoAt(0, 0), 10, nil, 100, entity.LEFT)
	// deceleration grid: -1.0 to 0 at 0.25 resolution
	require.Len(t, paths, 5)
	assert.True(t, foundSafe, "no objects means every candidate is safe")
	for i := 1; i < len(paths); i++ {
		assert.Greater(t, paths[i].Length, paths[i-1].Length, "candidates must be ordered by maneuver completeness")
		assert.Greater(t, paths[i].Acceleration, paths[i-1].Acceleration)
	}
	assert.InDelta(t, -1.0, paths[0].Acceleration, 1e-9)
	assert.InDelta(t, 0, paths[len(paths)-1].Acceleration, 1e-9)
}

func TestCandidateGeometry(t *testing.T) {
	g, current, target := newTestGenerator(500)

	paths, _, _ := g.GetLaneChangePaths(nil, current, target, egoAt(0, 0), 10, nil, 100, entity.LEFT)
	require.NotEmpty(t, paths)
	full := paths[len(paths)-1] // no deceleration: 40m prepare + 80m shift

	first := full.Path.Points[0]
	assert.InDelta(t, 0, first.Pose.Position.X, 1e-9)
	assert.InDelta(t, 0, first.Pose.Position.Y, 1e-9)

	last := full.Path.Points[len(full.Path.Points)-1]
	assert.InDelta(t, 3.5, last.Pose.Position.Y, 1e-9, "trailing segment follows the target centerline")
	assert.Equal(t, []int32{2}, last.LaneIDs)

	assert.InDelta(t, 40, full.ShiftLine.Start.Position.X, 1e-9)
	assert.InDelta(t, 120, full.ShiftLine.End.Position.X, 1e-9)
	assert.InDelta(t, 120, full.Length, 1e-9)
	assert.Positive(t, full.LateralShift(), "leftward maneuver has positive shift")
}

func TestCandidateSkippedNearLaneEnd(t *testing.T) {
	// the lane is too short to fit prepare + shift segments
	g, current, target := newTestGenerator(60)

	paths, foundSafe, _ := g.GetLaneChangePaths(nil, current, target, egoAt(0, 0), 10, nil, 100, entity.LEFT)
	assert.Empty(t, paths)
	assert.False(t, foundSafe)
}

func TestCollisionDuringPrepareBlocksAllCandidates(t *testing.T) {
	g, current, target := newTestGenerator(500)
	// stopped car directly ahead in the ego lane
	blocker := &entity.PerceivedObject{
		TrackID: "blocker",
		Class:   entity.ObjectClassCar,
		Pose:    egoAt(20, 0),
		V:       0,
		Length:  4.5,
		Width:   1.8,
	}

	paths, foundSafe, debug := g.GetLaneChangePaths(nil, current, target,
		egoAt(0, 0), 10, []*entity.PerceivedObject{blocker}, 100, entity.LEFT)
	require.NotEmpty(t, paths)
	assert.False(t, foundSafe)
	for _, p := range paths {
		assert.False(t, p.IsSafe)
	}
	d, ok := debug["blocker"]
	require.True(t, ok)
	assert.False(t, d.AllowLaneChange)
	assert.Contains(t, d.FailedReason, "collision at t=")
	assert.True(t, d.IsFront)
}

func TestObjectBeyondCheckDistanceIgnored(t *testing.T) {
	g, current, target := newTestGenerator(500)
	far := &entity.PerceivedObject{
		TrackID: "far",
		Class:   entity.ObjectClassCar,
		Pose:    egoAt(300, 0),
		V:       0,
		Length:  4.5,
		Width:   1.8,
	}

	_, foundSafe, debug := g.GetLaneChangePaths(nil, current, target,
		egoAt(0, 0), 10, []*entity.PerceivedObject{far}, 100, entity.LEFT)
	assert.True(t, foundSafe)
	d, ok := debug["far"]
	require.True(t, ok)
	assert.True(t, d.AllowLaneChange)
}

func TestIsEgoWithinOriginalLane(t *testing.T) {
	g, current, _ := newTestGenerator(500)

	// vehicle outer edge (half width 0.9m) against the 1.75m lane boundary
	assert.True(t, g.IsEgoWithinOriginalLane(current, egoAt(50, 0.5)))
	assert.False(t, g.IsEgoWithinOriginalLane(current, egoAt(50, 1.2)))
}

func TestGetAbortPaths(t *testing.T) {
	g, current, _ := newTestGenerator(500)

	// ego partway through a leftward shift, 2m off the original centerline
	abort, ok := g.GetAbortPaths(entity.LaneChangePath{}, current, egoAt(45, 1.5), egoAt(50, 2.0), 10)
	require.True(t, ok)
	require.NotNil(t, abort)

	first := abort.Path.Points[0]
	assert.InDelta(t, 50, first.Pose.Position.X, 1e-9)
	assert.InDelta(t, 2.0, first.Pose.Position.Y, 1e-9)
	// abort distance: max(10m/s * 5s, minimum lane changing length)
	assert.InDelta(t, 50, abort.Length, 1e-9)
	last := abort.Path.Points[len(abort.Path.Points)-1]
	assert.InDelta(t, 0, last.Pose.Position.Y, 1e-9, "geometry converges back to the original centerline")
	assert.Negative(t, abort.LateralShift(), "abort of a leftward maneuver shifts rightward")
}

func TestGetAbortPathsFailsNearLaneEnd(t *testing.T) {
	g, current, _ := newTestGenerator(100)

	abort, ok := g.GetAbortPaths(entity.LaneChangePath{}, current, egoAt(45, 1.5), egoAt(50, 2.0), 10)
	assert.False(t, ok)
	assert.Nil(t, abort)
}

func TestIsApprovedPathSafe(t *testing.T) {
	g, current, target := newTestGenerator(500)
	paths, _, _ := g.GetLaneChangePaths(nil, current, target, egoAt(0, 0), 10, nil, 100, entity.LEFT)
	require.NotEmpty(t, paths)
	approved := paths[len(paths)-1]

	safe, _ := g.IsApprovedPathSafe(approved, current, egoAt(0, 0), 10, nil, 100)
	assert.True(t, safe)

	// stopped car ahead on the committed path: the enlarged abort margin trips early
	blocker := &entity.PerceivedObject{
		TrackID: "blocker",
		Class:   entity.ObjectClassCar,
		Pose:    egoAt(30, 0),
		V:       0,
		Length:  4.5,
		Width:   1.8,
	}
	safe, before := g.IsApprovedPathSafe(approved, current, egoAt(0, 0), 10, []*entity.PerceivedObject{blocker}, 100)
	assert.False(t, safe)
	assert.Less(t, before.Position.X, 30.0, "returned pose lies before the collision point")
}
