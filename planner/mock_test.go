package planner

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/clock"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
)

// fakeLanelet is a straight lanelet along +X at a fixed Y offset.
type fakeLanelet struct {
	id     int32
	length float64
	width  float64
	y      float64
	left   entity.ILanelet
	right  entity.ILanelet
}

func (l *fakeLanelet) String() string   { return fmt.Sprintf("fake lanelet %d", l.id) }
func (l *fakeLanelet) ID() int32        { return l.id }
func (l *fakeLanelet) Length() float64  { return l.length }
func (l *fakeLanelet) Width() float64   { return l.width }
func (l *fakeLanelet) MaxV() float64    { return 60 / 3.6 }
func (l *fakeLanelet) CenterLine() []geometry.Point {
	return []geometry.Point{{X: 0, Y: l.y}, {X: l.length, Y: l.y}}
}
func (l *fakeLanelet) CenterLineLengths() []float64    { return []float64{0, l.length} }
func (l *fakeLanelet) Predecessors() []entity.ILanelet { return nil }
func (l *fakeLanelet) Successors() []entity.ILanelet   { return nil }
func (l *fakeLanelet) LeftLanelet() entity.ILanelet    { return l.left }
func (l *fakeLanelet) RightLanelet() entity.ILanelet   { return l.right }
func (l *fakeLanelet) NeighborLanelet(side int) entity.ILanelet {
	if side == entity.LEFT {
		return l.left
	}
	return l.right
}
func (l *fakeLanelet) GetPositionByS(s float64) geometry.Point {
	return geometry.Point{X: lo.Clamp(s, 0, l.length), Y: l.y}
}
func (l *fakeLanelet) GetOffsetPositionByS(s, offset float64) geometry.Point {
	return geometry.Point{X: lo.Clamp(s, 0, l.length), Y: l.y - offset}
}
func (l *fakeLanelet) GetDirectionByS(s float64) float64 { return 0 }
func (l *fakeLanelet) ProjectToLanelet(pos geometry.Point) float64 {
	return lo.Clamp(pos.X, 0, l.length)
}
func (l *fakeLanelet) LateralOffset(pos geometry.Point) float64 { return pos.Y - l.y }
func (l *fakeLanelet) ContainsPoint(pos geometry.Point, lateralMargin float64) bool {
	return math.Abs(pos.Y-l.y) <= l.width/2+lateralMargin
}

// fakeRoute answers topology queries over a flat set of fake lanelets.
type fakeRoute struct {
	lanelets []entity.ILanelet
}

func (r *fakeRoute) Get(id int32) entity.ILanelet {
	l, err := r.GetOrError(id)
	if err != nil {
		panic(err)
	}
	return l
}

func (r *fakeRoute) GetOrError(id int32) (entity.ILanelet, error) {
	for _, l := range r.lanelets {
		if l.ID() == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("no id %d", id)
}

func (r *fakeRoute) GetLanelets(ids []int32) []entity.ILanelet {
	return lo.Map(ids, func(id int32, _ int) entity.ILanelet { return r.Get(id) })
}

func (r *fakeRoute) GetClosestLanelet(lanelets []entity.ILanelet, pose entity.Pose) (entity.ILanelet, bool) {
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

func (r *fakeRoute) GetClosestLaneletFromMap(pose entity.Pose) (entity.ILanelet, bool) {
	return r.GetClosestLanelet(r.lanelets, pose)
}

func (r *fakeRoute) GetLaneletSequence(lanelet entity.ILanelet, pose entity.Pose, backward, forward float64) []entity.ILanelet {
	return []entity.ILanelet{lanelet}
}

func (r *fakeRoute) GetArcCoordinates(lanelets []entity.ILanelet, pose entity.Pose) entity.ArcCoordinates {
	closest, _ := r.GetClosestLanelet(lanelets, pose)
	return entity.ArcCoordinates{
		Length:   closest.ProjectToLanelet(pose.Position),
		Distance: closest.LateralOffset(pose.Position),
	}
}

func (r *fakeRoute) GetDistanceToEnd(lanelets []entity.ILanelet, pose entity.Pose) float64 {
	total := .0
	for _, l := range lanelets {
		total += l.Length()
	}
	return total - r.GetArcCoordinates(lanelets, pose).Length
}

// fakeGenerator returns scripted candidates and safety verdicts.
type fakeGenerator struct {
	paths         []entity.LaneChangePath
	foundSafe     bool
	objectDebug   map[string]entity.CollisionCheckDebug
	approvedSafe  bool
	withinLane    bool
	abortPath     *entity.LaneChangePath
	abortFound    bool
	abortCalls    int
	pathCalls     int
}

func (g *fakeGenerator) GetLaneChangePaths(
	prevPath *entity.PathWithLaneIDs,
	currentLanelets, targetLanelets []entity.ILanelet,
	egoPose entity.Pose, egoV float64,
	objects []*entity.PerceivedObject,
	checkDistance float64,
	direction int,
) ([]entity.LaneChangePath, bool, map[string]entity.CollisionCheckDebug) {
	g.pathCalls++
	return g.paths, g.foundSafe, g.objectDebug
}

func (g *fakeGenerator) IsApprovedPathSafe(
	path entity.LaneChangePath,
	currentLanelets []entity.ILanelet,
	egoPose entity.Pose, egoV float64,
	objects []*entity.PerceivedObject,
	checkDistance float64,
) (bool, entity.Pose) {
	return g.approvedSafe, egoPose
}

func (g *fakeGenerator) GetAbortPaths(
	path entity.LaneChangePath,
	currentLanelets []entity.ILanelet,
	egoPoseBeforeCollision, egoPose entity.Pose, egoV float64,
) (*entity.LaneChangePath, bool) {
	g.abortCalls++
	return g.abortPath, g.abortFound
}

func (g *fakeGenerator) IsEgoWithinOriginalLane(currentLanelets []entity.ILanelet, egoPose entity.Pose) bool {
	return g.withinLane
}

// testConfig builds a config with defaults applied.
func testConfig() config.Config {
	c, err := config.Load([]byte("control:\n  step:\n    interval: 0.1\n    total: 1000\n"))
	if err != nil {
		panic(err)
	}
	return c
}

func newTestModule(route entity.IRouteHandler, gen entity.IPathGenerator) *Module {
	c := testConfig()
	return New(c.Planner, route, gen, clock.New(c.Control.Step))
}

// straightPath builds a lane-follow path along +X at the given Y offset.
func straightPath(y, length, v float64, laneID int32) entity.PathWithLaneIDs {
	points := make([]entity.PathPoint, 0, int(length)+1)
	for x := .0; x <= length; x += 1.0 {
		points = append(points, entity.PathPoint{
			Pose:    entity.Pose{Position: geometry.Point{X: x, Y: y}, Yaw: 0},
			V:       v,
			LaneIDs: []int32{laneID},
		})
	}
	return entity.PathWithLaneIDs{Points: points}
}

// leftShiftPath builds a lane change path shifting from y0 to y1 between startX and endX.
func leftShiftPath(y0, y1, startX, endX, totalLength float64, safe bool, laneID int32) entity.LaneChangePath {
	points := make([]entity.PathPoint, 0)
	for x := .0; x <= totalLength; x += 1.0 {
		y := y0
		if x >= endX {
			y = y1
		} else if x > startX {
			y = y0 + (y1-y0)*(x-startX)/(endX-startX)
		}
		points = append(points, entity.PathPoint{
			Pose:    entity.Pose{Position: geometry.Point{X: x, Y: y}, Yaw: 0},
			V:       10,
			LaneIDs: []int32{laneID},
		})
	}
	return entity.LaneChangePath{
		Path: entity.PathWithLaneIDs{Points: points},
		ShiftLine: entity.ShiftLine{
			Start: entity.Pose{Position: geometry.Point{X: startX, Y: y0}},
			End:   entity.Pose{Position: geometry.Point{X: endX, Y: y1}},
		},
		Length: endX,
		IsSafe: safe,
	}
}

// stoppedCar places a stopped car at (x, y).
func stoppedCar(trackID string, x, y float64) *entity.PerceivedObject {
	return &entity.PerceivedObject{
		TrackID: trackID,
		Class:   entity.ObjectClassCar,
		Pose:    entity.Pose{Position: geometry.Point{X: x, Y: y}, Yaw: 0},
		V:       0,
		Length:  4.5,
		Width:   1.8,
	}
}
