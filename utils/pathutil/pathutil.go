// Package pathutil 路径几何工具
// 功能：提供带车道标注路径的最近点查找、弧长计算、重采样与速度修饰等通用操作
package pathutil

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
)

// CalcArcLengths 计算路径各点的累计弧长
// 返回：与路径点等长的弧长表，首元素为0
func CalcArcLengths(points []entity.PathPoint) []float64 {
	lengths := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		lengths[i] = lengths[i-1] + distance2D(points[i-1].Pose.Position, points[i].Pose.Position)
	}
	return lengths
}

// FindNearestIndex 查找距离给定点最近的路径点索引
func FindNearestIndex(points []entity.PathPoint, pos geometry.Point) int {
	best, bestDist := 0, mathutil.INF
	for i, p := range points {
		if d := distance2D(p.Pose.Position, pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// FindNearestSegmentIndex 查找给定点所在路径段的起点索引
// 说明：若最近点在首段起点之前返回0，在末段终点之后返回len-2
func FindNearestSegmentIndex(points []entity.PathPoint, pos geometry.Point) int {
	if len(points) < 2 {
		return 0
	}
	i := FindNearestIndex(points, pos)
	if i == 0 {
		return 0
	}
	if i == len(points)-1 {
		return len(points) - 2
	}
	if points[i].Pose.LongitudinalDeviation(pos) >= 0 {
		return i
	}
	return i - 1
}

// CalcSignedArcLength 计算路径上两点之间的有符号弧长
// 功能：分别将from/to匹配到最近路径段，按弧长差计算（to在from前方为正）
func CalcSignedArcLength(points []entity.PathPoint, from, to geometry.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	lengths := CalcArcLengths(points)
	return projectedArcLength(points, lengths, to) - projectedArcLength(points, lengths, from)
}

// projectedArcLength 计算点在路径上投影处的弧长
func projectedArcLength(points []entity.PathPoint, lengths []float64, pos geometry.Point) float64 {
	i := FindNearestSegmentIndex(points, pos)
	return lengths[i] + points[i].Pose.LongitudinalDeviation(pos)
}

// ResamplePath 按固定间隔对路径做线性重采样
// 功能：保持首末点不变，中间点按interval等距插值，车道标注沿用所在段起点
// 说明：点数不足或间隔非法时原样返回
func ResamplePath(path entity.PathWithLaneIDs, interval float64) entity.PathWithLaneIDs {
	if len(path.Points) < 2 || interval <= 0 {
		return path
	}
	lengths := CalcArcLengths(path.Points)
	total := lengths[len(lengths)-1]
	if total <= interval {
		return path
	}
	points := make([]entity.PathPoint, 0, int(total/interval)+2)
	seg := 0
	for s := .0; s < total; s += interval {
		for seg < len(lengths)-2 && lengths[seg+1] < s {
			seg++
		}
		k := (s - lengths[seg]) / (lengths[seg+1] - lengths[seg])
		a, b := path.Points[seg], path.Points[seg+1]
		points = append(points, entity.PathPoint{
			Pose: entity.Pose{
				Position: geometry.Blend(a.Pose.Position, b.Pose.Position, k),
				Yaw:      a.Pose.Yaw + k*normalizeAngle(b.Pose.Yaw-a.Pose.Yaw),
			},
			V:       a.V + k*(b.V-a.V),
			LaneIDs: a.LaneIDs,
		})
	}
	points = append(points, path.Points[len(path.Points)-1])
	return entity.PathWithLaneIDs{Points: points}
}

// CheckPathRelativeAngle 检查路径相邻朝向变化是否全部不超过阈值
// 功能：检测重采样或拼接产生的折返路径
func CheckPathRelativeAngle(path entity.PathWithLaneIDs, threshold float64) bool {
	for i := 1; i < len(path.Points); i++ {
		diff := math.Abs(normalizeAngle(path.Points[i].Pose.Yaw - path.Points[i-1].Pose.Yaw))
		if diff > threshold {
			return false
		}
	}
	return true
}

// InsertDecelPoint 在路径上插入减速约束
// 功能：从from点前方buffer距离起，将后续点速度限制在不超过v
// 返回：减速起点的路径位姿与是否成功
func InsertDecelPoint(path *entity.PathWithLaneIDs, from geometry.Point, buffer, v float64) (entity.Pose, bool) {
	if len(path.Points) < 2 {
		return entity.Pose{}, false
	}
	lengths := CalcArcLengths(path.Points)
	start := projectedArcLength(path.Points, lengths, from) + buffer
	for i := range path.Points {
		if lengths[i] >= start {
			for j := i; j < len(path.Points); j++ {
				path.Points[j].V = math.Min(path.Points[j].V, v)
			}
			return path.Points[i].Pose, true
		}
	}
	return entity.Pose{}, false
}

// InsertStopPoint 在路径上插入停车点
// 功能：从路径起点沿弧长distance处起，将后续点速度置零
// 返回：停车点的路径位姿与是否成功
func InsertStopPoint(path *entity.PathWithLaneIDs, distance float64) (entity.Pose, bool) {
	if len(path.Points) < 2 {
		return entity.Pose{}, false
	}
	lengths := CalcArcLengths(path.Points)
	for i := range path.Points {
		if lengths[i] >= distance {
			for j := i; j < len(path.Points); j++ {
				path.Points[j].V = 0
			}
			return path.Points[i].Pose, true
		}
	}
	// 超出路径末端时在末点停车
	last := len(path.Points) - 1
	path.Points[last].V = 0
	return path.Points[last].Pose, true
}

func distance2D(a, b geometry.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
