package lanechange

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"

	"git.fiblab.net/general/common/v2/geometry"
)

// checkCandidateSafety 对单个候选路径做时域碰撞检查
// 功能：在预测时域内逐时刻推算自车沿候选路径的位姿与各目标的预测位姿，判定是否冲突
// 参数：path-候选路径，egoPose/egoV-自车状态，acc-候选减速档位，objects-感知目标，checkDistance-检查距离
// 返回：是否安全、单目标诊断数据
// 算法说明：
// 1. 自车纵向按v(t)=max(egoV+acc*t,0)积分弧长，沿路径取位姿
// 2. 目标位姿取置信度最高的预测轨迹插值，无预测轨迹时按当前朝向匀速外推
// 3. 以自车路径位姿为参考系，横向/纵向间距均小于裕度+半尺寸和时判定冲突
func (g *Generator) checkCandidateSafety(
	path entity.LaneChangePath,
	egoPose entity.Pose, egoV, acc float64,
	objects []*entity.PerceivedObject,
	checkDistance float64,
) (bool, map[string]entity.CollisionCheckDebug) {
	debug := make(map[string]entity.CollisionCheckDebug, len(objects))
	lengths := pathutil.CalcArcLengths(path.Path.Points)
	safe := true

	for _, obj := range objects {
		relative := math.Hypot(obj.Pose.Position.X-egoPose.Position.X, obj.Pose.Position.Y-egoPose.Position.Y)
		d := entity.CollisionCheckDebug{
			AllowLaneChange:  true,
			IsFront:          egoPose.LongitudinalDeviation(obj.Pose.Position) > 0,
			RelativeDistance: relative,
			V:                obj.V,
		}
		if relative > checkDistance {
			d.FailedReason = ""
			debug[obj.TrackID] = d
			continue
		}
		if t, collided := g.sweepCollision(path.Path.Points, lengths, egoV, acc, obj, g.params.LateralCollisionMargin, g.params.LongitudinalCollisionMargin); collided {
			d.AllowLaneChange = false
			d.FailedReason = fmt.Sprintf("collision at t=%.1fs", t)
			safe = false
		}
		debug[obj.TrackID] = d
	}
	return safe, debug
}

// IsApprovedPathSafe 以中止裕度重新校验已批准路径的安全性
// 功能：沿已批准路径剩余部分做时域碰撞检查，纵向裕度按中止预期减速度放大
// 返回：是否安全、碰撞前最后的自车位姿（不安全时有效）
func (g *Generator) IsApprovedPathSafe(
	path entity.LaneChangePath,
	currentLanelets []entity.ILanelet,
	egoPose entity.Pose, egoV float64,
	objects []*entity.PerceivedObject,
	checkDistance float64,
) (bool, entity.Pose) {
	points := path.Path.Points
	if len(points) < 2 {
		return false, egoPose
	}
	// 从自车最近点起校验剩余路径
	start := pathutil.FindNearestIndex(points, egoPose.Position)
	points = points[start:]
	if len(points) < 2 {
		return true, egoPose
	}
	lengths := pathutil.CalcArcLengths(points)

	lastSafe := egoPose
	for _, obj := range objects {
		relative := math.Hypot(obj.Pose.Position.X-egoPose.Position.X, obj.Pose.Position.Y-egoPose.Position.Y)
		if relative > checkDistance {
			continue
		}
		lonMargin := g.abortLongitudinalMargin(egoV, obj.V)
		if t, collided := g.sweepCollision(points, lengths, egoV, 0, obj, g.params.LateralCollisionMargin, lonMargin); collided {
			// 碰撞前最后的安全位姿
			sBefore := egoV * math.Max(t-g.params.PredictionTimeResolution, 0)
			lastSafe = poseAtArc(points, lengths, sBefore)
			return false, lastSafe
		}
	}
	return true, lastSafe
}

// abortLongitudinalMargin 计算中止校验的纵向安全裕度
// 说明：前车按中止预期减速度制动、自车按后车预期减速度跟随制动时的制动距离差，
// 不低于常规纵向裕度
func (g *Generator) abortLongitudinalMargin(egoV, objV float64) float64 {
	front := math.Abs(g.common.ExpectedFrontDecelerationForAbort)
	rear := math.Abs(g.common.ExpectedRearDecelerationForAbort)
	if front <= 0 || rear <= 0 {
		return g.params.LongitudinalCollisionMargin
	}
	margin := egoV*egoV/(2*rear) - objV*objV/(2*front)
	return math.Max(margin, g.params.LongitudinalCollisionMargin)
}

// sweepCollision 时域扫描碰撞检查
// 返回：首次冲突时刻与是否冲突
func (g *Generator) sweepCollision(
	points []entity.PathPoint, lengths []float64,
	egoV, acc float64,
	obj *entity.PerceivedObject,
	latMargin, lonMargin float64,
) (float64, bool) {
	latThreshold := latMargin + (g.common.Vehicle.Width+obj.Width)/2
	lonThreshold := lonMargin + (g.common.Vehicle.Length+obj.Length)/2
	predicted, hasPrediction := obj.MaxConfidencePath()

	for t := .0; t <= g.params.PredictionTimeHorizon; t += g.params.PredictionTimeResolution {
		var s float64
		if acc < 0 && egoV > 0 && t > egoV/-acc {
			// 已减速到停止
			s = egoV * egoV / (2 * -acc)
		} else {
			s = egoV*t + 0.5*acc*t*t
		}
		egoAt := poseAtArc(points, lengths, s)

		objPose := obj.Pose
		if hasPrediction {
			if p, ok := predicted.PoseAt(t); ok {
				objPose = p
			}
		} else {
			// 无预测轨迹时按当前朝向匀速外推
			objPose.Position = offsetAlongYaw(obj.Pose, obj.V*t)
		}

		lon := egoAt.LongitudinalDeviation(objPose.Position)
		lat := egoAt.LateralDeviation(objPose.Position)
		if math.Abs(lon) < lonThreshold && math.Abs(lat) < latThreshold {
			return t, true
		}
	}
	return 0, false
}

// poseAtArc 按弧长在路径上取位姿（线性插值）
func poseAtArc(points []entity.PathPoint, lengths []float64, s float64) entity.Pose {
	if s <= 0 {
		return points[0].Pose
	}
	last := len(lengths) - 1
	if s >= lengths[last] {
		return points[last].Pose
	}
	for i := 1; i <= last; i++ {
		if lengths[i] >= s {
			k := (s - lengths[i-1]) / (lengths[i] - lengths[i-1])
			a, b := points[i-1].Pose, points[i].Pose
			return entity.Pose{
				Position: geometry.Blend(a.Position, b.Position, k),
				Yaw:      a.Yaw + k*normalizeAngle(b.Yaw-a.Yaw),
			}
		}
	}
	return points[last].Pose
}

// offsetAlongYaw 沿位姿朝向前移distance后的位置
func offsetAlongYaw(pose entity.Pose, distance float64) geometry.Point {
	return geometry.Point{
		X: pose.Position.X + math.Cos(pose.Yaw)*distance,
		Y: pose.Position.Y + math.Sin(pose.Yaw)*distance,
		Z: pose.Position.Z,
	}
}
