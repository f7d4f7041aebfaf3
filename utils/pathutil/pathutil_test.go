package pathutil_test

import (
	"math"
	"testing"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightPath builds points along +X spaced 1m apart.
func straightPath(n int, v float64) entity.PathWithLaneIDs {
	points := make([]entity.PathPoint, n)
	for i := range points {
		points[i] = entity.PathPoint{
			Pose:    entity.Pose{Position: geometry.Point{X: float64(i)}, Yaw: 0},
			V:       v,
			LaneIDs: []int32{1},
		}
	}
	return entity.PathWithLaneIDs{Points: points}
}

func TestCalcArcLengths(t *testing.T) {
	lengths := pathutil.CalcArcLengths(straightPath(5, 10).Points)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, lengths)
}

func TestFindNearestIndex(t *testing.T) {
	points := straightPath(10, 10).Points
	assert.Equal(t, 3, pathutil.FindNearestIndex(points, geometry.Point{X: 3.2, Y: 1}))
	assert.Equal(t, 0, pathutil.FindNearestIndex(points, geometry.Point{X: -5}))
	assert.Equal(t, 9, pathutil.FindNearestIndex(points, geometry.Point{X: 100}))
}

func TestCalcSignedArcLength(t *testing.T) {
	points := straightPath(20, 10).Points
	assert.InDelta(t, 7.5, pathutil.CalcSignedArcLength(points, geometry.Point{X: 2.5}, geometry.Point{X: 10}), 1e-9)
	// negative when the target lies behind
	assert.InDelta(t, -7.5, pathutil.CalcSignedArcLength(points, geometry.Point{X: 10}, geometry.Point{X: 2.5}), 1e-9)
	// laterally displaced points project onto the path first
	assert.InDelta(t, 5, pathutil.CalcSignedArcLength(points, geometry.Point{X: 5, Y: 2}, geometry.Point{X: 10, Y: -1}), 1e-9)
}

func TestResamplePath(t *testing.T) {
	path := straightPath(11, 10) // 10m long
	resampled := pathutil.ResamplePath(path, 0.5)

	require.Equal(t, 21, len(resampled.Points))
	assert.InDelta(t, 2.5, resampled.Points[5].Pose.Position.X, 1e-9)
	assert.InDelta(t, 10, resampled.Points[5].V, 1e-9)
	// endpoints preserved
	assert.InDelta(t, 0, resampled.Points[0].Pose.Position.X, 1e-9)
	assert.InDelta(t, 10, resampled.Points[len(resampled.Points)-1].Pose.Position.X, 1e-9)
	assert.Equal(t, []int32{1}, resampled.Points[5].LaneIDs)

	// degenerate inputs pass through untouched
	short := straightPath(1, 10)
	assert.Equal(t, short, pathutil.ResamplePath(short, 0.5))
	assert.Equal(t, path, pathutil.ResamplePath(path, 0))
}

func TestCheckPathRelativeAngle(t *testing.T) {
	path := straightPath(5, 10)
	assert.True(t, pathutil.CheckPathRelativeAngle(path, math.Pi/4))

	path.Points[2].Pose.Yaw = math.Pi // folded back
	assert.False(t, pathutil.CheckPathRelativeAngle(path, math.Pi/4))
}

func TestInsertDecelPoint(t *testing.T) {
	path := straightPath(20, 10)
	pose, ok := pathutil.InsertDecelPoint(&path, geometry.Point{X: 2}, 5, 3)
	require.True(t, ok)
	assert.InDelta(t, 7, pose.Position.X, 1e-9)

	for _, p := range path.Points {
		if p.Pose.Position.X < 7 {
			assert.InDelta(t, 10, p.V, 1e-9)
		} else {
			assert.InDelta(t, 3, p.V, 1e-9)
		}
	}
}

func TestInsertStopPoint(t *testing.T) {
	path := straightPath(20, 10)
	pose, ok := pathutil.InsertStopPoint(&path, 12)
	require.True(t, ok)
	assert.InDelta(t, 12, pose.Position.X, 1e-9)
	assert.Zero(t, path.Points[len(path.Points)-1].V)
	assert.InDelta(t, 10, path.Points[11].V, 1e-9)

	// beyond the path end the last point becomes the stop point
	tail := straightPath(5, 10)
	pose, ok = pathutil.InsertStopPoint(&tail, 100)
	require.True(t, ok)
	assert.InDelta(t, 4, pose.Position.X, 1e-9)
	assert.Zero(t, tail.Points[4].V)
}
