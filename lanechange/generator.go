package lanechange

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"

	"git.fiblab.net/general/common/v2/geometry"
)

// 路径点采样间隔（米）
const sampleInterval = 2.0

// Generator 变道路径生成器
// 功能：生成候选变道路径、执行碰撞安全判定、计算返回原车道的中止几何
// 说明：候选按机动完成度升序排列（减速越少的候选准备+横移距离越长）
type Generator struct {
	common config.CommonParams
	params config.LaneChangeParams
	route  entity.IRouteHandler
}

// NewGenerator 创建变道路径生成器
func NewGenerator(common config.CommonParams, params config.LaneChangeParams, route entity.IRouteHandler) *Generator {
	return &Generator{
		common: common,
		params: params,
		route:  route,
	}
}

// GetLaneChangePaths 生成候选变道路径并逐一进行碰撞安全判定
// 功能：按纵向减速档位采样候选，构造准备段+横移段+收尾段的路径几何
// 参数：prevPath-上游路径（可为nil），currentLanelets/targetLanelets-原/目标车道序列，
// egoPose/egoV-自车状态，objects-感知目标，checkDistance-碰撞检查距离，direction-变道方向
// 返回：候选列表（完成度升序，IsSafe已填写）、是否存在安全候选、单目标诊断数据
// 算法说明：
// 1. 减速档位从-maximum_deceleration到0按分辨率递增采样
// 2. 每档计算准备距离与横移距离，不足最小变道长度的候选跳过
// 3. 几何构造：准备段沿原车道中心线，横移段在原/目标中心线间线性过渡，
//    收尾段沿目标车道中心线延伸forward_path_length
// 4. 对每个候选做时域碰撞检查，全部目标通过则IsSafe=true
func (g *Generator) GetLaneChangePaths(
	prevPath *entity.PathWithLaneIDs,
	currentLanelets, targetLanelets []entity.ILanelet,
	egoPose entity.Pose, egoV float64,
	objects []*entity.PerceivedObject,
	checkDistance float64,
	direction int,
) ([]entity.LaneChangePath, bool, map[string]entity.CollisionCheckDebug) {
	if len(currentLanelets) == 0 || len(targetLanelets) == 0 {
		return nil, false, nil
	}

	paths := make([]entity.LaneChangePath, 0)
	foundSafe := false
	objectDebug := make(map[string]entity.CollisionCheckDebug)

	for acc := -g.params.MaximumDeceleration; acc <= 1e-9; acc += g.params.AccelerationResolution {
		path, ok := g.buildCandidate(currentLanelets, targetLanelets, egoPose, egoV, acc)
		if !ok {
			continue
		}
		safe, debug := g.checkCandidateSafety(path, egoPose, egoV, acc, objects, checkDistance)
		path.IsSafe = safe
		if safe {
			foundSafe = true
		}
		// 诊断数据保留最后一个候选的结论
		for id, d := range debug {
			objectDebug[id] = d
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		log.Debugf("no lane change candidate from v=%.1f towards %s", egoV, entity.SideName(direction))
	}
	return paths, foundSafe, objectDebug
}

// buildCandidate 构造单个减速档位的候选变道路径
// 返回：候选路径与是否构造成功
func (g *Generator) buildCandidate(
	currentLanelets, targetLanelets []entity.ILanelet,
	egoPose entity.Pose, egoV, acc float64,
) (entity.LaneChangePath, bool) {
	pd := g.params.PrepareDuration
	v1 := math.Max(egoV+acc*pd, 0)
	prepareDistance := math.Max(egoV*pd+0.5*acc*pd*pd, 0)
	changingDistance := v1 * g.params.LaneChangingDuration
	if changingDistance < g.common.MinimumLaneChangingLength {
		changingDistance = g.common.MinimumLaneChangingLength
	}

	currentArc := g.route.GetArcCoordinates(currentLanelets, egoPose)
	targetArc := g.route.GetArcCoordinates(targetLanelets, egoPose)
	currentTotal := sequenceLength(currentLanelets)
	targetTotal := sequenceLength(targetLanelets)

	// 原车道剩余长度必须容纳准备段，目标车道剩余长度必须容纳横移段+收尾
	if currentArc.Length+prepareDistance > currentTotal {
		return entity.LaneChangePath{}, false
	}
	shiftStartTarget := targetArc.Length + prepareDistance
	if shiftStartTarget+changingDistance > targetTotal {
		return entity.LaneChangePath{}, false
	}

	points := make([]entity.PathPoint, 0, 64)

	// 准备段：沿原车道中心线，速度从egoV过渡到v1
	for s := .0; s < prepareDistance; s += sampleInterval {
		pose, ids := poseAtSequence(currentLanelets, currentArc.Length+s)
		k := s / math.Max(prepareDistance, sampleInterval)
		points = append(points, entity.PathPoint{Pose: pose, V: egoV + k*(v1-egoV), LaneIDs: ids})
	}

	// 横移段：原/目标中心线间线性过渡
	shiftStart, _ := poseAtSequence(currentLanelets, currentArc.Length+prepareDistance)
	for s := .0; s < changingDistance; s += sampleInterval {
		k := s / changingDistance
		curPose, curIDs := poseAtSequence(currentLanelets, currentArc.Length+prepareDistance+s)
		tgtPose, tgtIDs := poseAtSequence(targetLanelets, shiftStartTarget+s)
		ids := curIDs
		if k >= 0.5 {
			ids = tgtIDs
		}
		points = append(points, entity.PathPoint{
			Pose: entity.Pose{
				Position: geometry.Blend(curPose.Position, tgtPose.Position, k),
				Yaw:      curPose.Yaw + k*normalizeAngle(tgtPose.Yaw-curPose.Yaw),
			},
			V:       v1,
			LaneIDs: ids,
		})
	}
	shiftEnd, _ := poseAtSequence(targetLanelets, shiftStartTarget+changingDistance)

	// 收尾段：沿目标车道中心线延伸
	trailingEnd := math.Min(shiftStartTarget+changingDistance+g.common.ForwardPathLength, targetTotal)
	for s := shiftStartTarget + changingDistance; s < trailingEnd; s += sampleInterval {
		pose, ids := poseAtSequence(targetLanelets, s)
		points = append(points, entity.PathPoint{Pose: pose, V: v1, LaneIDs: ids})
	}

	if len(points) < 2 {
		return entity.LaneChangePath{}, false
	}
	return entity.LaneChangePath{
		Path:           entity.PathWithLaneIDs{Points: points},
		ShiftLine:      entity.ShiftLine{Start: shiftStart, End: shiftEnd},
		TargetLanelets: targetLanelets,
		Length:         prepareDistance + changingDistance,
		Acceleration:   acc,
	}, true
}

// IsEgoWithinOriginalLane 判断自车是否仍在原车道边界内
// 说明：自车外缘（半车宽）不越过车道边界视为仍在原车道
func (g *Generator) IsEgoWithinOriginalLane(currentLanelets []entity.ILanelet, egoPose entity.Pose) bool {
	closest, ok := g.route.GetClosestLanelet(currentLanelets, egoPose)
	if !ok {
		return false
	}
	return closest.ContainsPoint(egoPose.Position, -g.common.Vehicle.Width/2)
}

// GetAbortPaths 从碰撞前位姿出发计算返回原车道的中止几何
// 功能：从自车当前位置开始，在abort_lane_change_duration内将横向偏移收敛回原车道中心线
// 返回：中止路径与是否成功
// 说明：原车道剩余长度不足以容纳中止几何时返回失败
func (g *Generator) GetAbortPaths(
	path entity.LaneChangePath,
	currentLanelets []entity.ILanelet,
	egoPoseBeforeCollision, egoPose entity.Pose, egoV float64,
) (*entity.LaneChangePath, bool) {
	if len(currentLanelets) == 0 {
		return nil, false
	}
	abortDistance := math.Max(egoV*g.params.AbortLaneChangeDuration, g.common.MinimumLaneChangingLength)
	arc := g.route.GetArcCoordinates(currentLanelets, egoPose)
	total := sequenceLength(currentLanelets)
	if arc.Length+abortDistance+g.common.MinimumLaneChangingLength > total {
		return nil, false
	}

	points := make([]entity.PathPoint, 0, 64)
	lateral := arc.Distance
	for s := .0; s < abortDistance; s += sampleInterval {
		k := s / abortDistance
		pose, ids := poseAtSequence(currentLanelets, arc.Length+s)
		// 横向偏移线性收敛回中心线
		offset := lateral * (1 - k)
		points = append(points, entity.PathPoint{
			Pose: entity.Pose{
				Position: offsetPosition(pose, offset),
				Yaw:      pose.Yaw,
			},
			V:       egoV,
			LaneIDs: ids,
		})
	}
	// 收尾段：回到中心线后沿原车道延伸
	trailingEnd := math.Min(arc.Length+abortDistance+g.common.ForwardPathLength, total)
	for s := arc.Length + abortDistance; s < trailingEnd; s += sampleInterval {
		pose, ids := poseAtSequence(currentLanelets, s)
		points = append(points, entity.PathPoint{Pose: pose, V: egoV, LaneIDs: ids})
	}
	if len(points) < 2 {
		return nil, false
	}
	start := points[0].Pose
	endPose, _ := poseAtSequence(currentLanelets, arc.Length+abortDistance)
	return &entity.LaneChangePath{
		Path:           entity.PathWithLaneIDs{Points: points},
		ShiftLine:      entity.ShiftLine{Start: start, End: endPose},
		TargetLanelets: currentLanelets,
		Length:         abortDistance,
		Acceleration:   0,
	}, true
}

// poseAtSequence 计算车道序列上弧长s处的位姿与车道标注
func poseAtSequence(lanelets []entity.ILanelet, s float64) (entity.Pose, []int32) {
	rest := s
	for _, l := range lanelets {
		if rest <= l.Length() {
			return entity.Pose{
				Position: l.GetPositionByS(rest),
				Yaw:      l.GetDirectionByS(rest),
			}, []int32{l.ID()}
		}
		rest -= l.Length()
	}
	last := lanelets[len(lanelets)-1]
	return entity.Pose{
		Position: last.GetPositionByS(last.Length()),
		Yaw:      last.GetDirectionByS(last.Length()),
	}, []int32{last.ID()}
}

// offsetPosition 沿位姿朝向的左侧法向平移（offset左正右负）
func offsetPosition(pose entity.Pose, offset float64) geometry.Point {
	return geometry.Point{
		X: pose.Position.X - math.Sin(pose.Yaw)*offset,
		Y: pose.Position.Y + math.Cos(pose.Yaw)*offset,
		Z: pose.Position.Z,
	}
}

func sequenceLength(lanelets []entity.ILanelet) float64 {
	total := .0
	for _, l := range lanelets {
		total += l.Length()
	}
	return total
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
