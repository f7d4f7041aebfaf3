package planner

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"

	"git.fiblab.net/general/common/v2/geometry"
	"golang.org/x/exp/slices"
)

// 排除原因
const (
	reasonNotTargetType       = "NotTargetType"
	reasonOutOfTargetArea     = "OutOfTargetArea"
	reasonMovingObject        = "MovingObject"
	reasonEnoughLateralMargin = "EnoughLateralMargin"
)

// calcAvoidancePlanningData 计算单周期避让规划数据
// 功能：重采样参考路径、解析当前车道序列、更新目标登记表并完成目标分类
// 返回：本周期的避让规划数据（target_objects按纵向距离升序）
// 算法说明：
// 1. 参考路径按resample_interval_for_planning重采样，建立以自车为原点的弧长表
// 2. 当前车道序列按lane_source策略解析（route：地图最近车道扩展；path：上游路径车道ID）
// 3. 登记表更新后做检测丢失补偿，补偿目标与感知目标一并分类
// 4. 逐目标计算包络几何并判定avoid_required，最终按纵向距离升序排序
func (m *Module) calcAvoidancePlanningData(snap entity.Snapshot) entity.AvoidancePlanningData {
	data := entity.AvoidancePlanningData{
		ReferencePose: snap.EgoPose,
	}
	if snap.ReferencePath != nil {
		data.ReferencePath = pathutil.ResamplePath(*snap.ReferencePath, m.params.Avoidance.ResampleIntervalForPlanning)
	}
	if len(data.ReferencePath.Points) > 0 {
		data.EgoClosestPathIndex = pathutil.FindNearestIndex(data.ReferencePath.Points, snap.EgoPose.Position)
		lengths := pathutil.CalcArcLengths(data.ReferencePath.Points)
		egoLength := lengths[data.EgoClosestPathIndex]
		data.ArclengthFromEgo = make([]float64, len(lengths))
		for i, l := range lengths {
			data.ArclengthFromEgo[i] = l - egoLength
		}
	}
	data.CurrentLanelets = m.resolveCurrentLanelets(snap)

	// 登记表更新与检测丢失补偿
	m.history.update(snap.Objects, snap.T, m.clk.DT)
	seen := make(map[string]bool, len(snap.Objects))
	for _, obj := range snap.Objects {
		seen[obj.TrackID] = true
	}
	allObjects := append(append([]*entity.PerceivedObject{}, snap.Objects...), m.history.compensate(seen, snap.T)...)

	for _, obj := range allObjects {
		od := m.createObjectData(obj, &data)
		if !isVehicleType(obj.Class) {
			od.Reason = reasonNotTargetType
			data.OtherObjects = append(data.OtherObjects, od)
			continue
		}
		if !m.isInsideDetectionCorridor(data.CurrentLanelets, od.Centroid) {
			od.Reason = reasonOutOfTargetArea
			data.OtherObjects = append(data.OtherObjects, od)
			continue
		}
		if od.MoveTime > m.params.Avoidance.MovingTimeThreshold {
			od.Reason = reasonMovingObject
			data.OtherObjects = append(data.OtherObjects, od)
			continue
		}
		if !od.AvoidRequired {
			od.Reason = reasonEnoughLateralMargin
			data.OtherObjects = append(data.OtherObjects, od)
			continue
		}
		data.TargetObjects = append(data.TargetObjects, od)
	}
	slices.SortStableFunc(data.TargetObjects, func(a, b entity.ObjectData) int {
		switch {
		case a.Longitudinal < b.Longitudinal:
			return -1
		case a.Longitudinal > b.Longitudinal:
			return 1
		default:
			return 0
		}
	})
	return data
}

// resolveCurrentLanelets 按配置的车道来源策略解析当前车道序列
func (m *Module) resolveCurrentLanelets(snap entity.Snapshot) []entity.ILanelet {
	if m.laneSource == laneSourcePathStrategy {
		return m.laneletsFromPath(snap.PreviousPath)
	}
	closest, ok := m.route.GetClosestLaneletFromMap(snap.EgoPose)
	if !ok {
		return nil
	}
	return m.route.GetLaneletSequence(closest, snap.EgoPose,
		m.params.Common.BackwardPathLength, m.params.Common.ForwardPathLength)
}

// laneletsFromPath 从上游路径的车道ID标注推导当前车道序列
func (m *Module) laneletsFromPath(path *entity.PathWithLaneIDs) []entity.ILanelet {
	if path == nil {
		return nil
	}
	lanelets := make([]entity.ILanelet, 0)
	seen := make(map[int32]bool)
	for _, p := range path.Points {
		for _, id := range p.LaneIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if l, err := m.route.GetOrError(id); err == nil {
				lanelets = append(lanelets, l)
			}
		}
	}
	return lanelets
}

// createObjectData 计算单目标的避让几何数据
// 功能：从登记表取稳定化包络，计算质心、纵向/横向距离、外伸距离与avoid_required
// 算法说明：
// 1. 纵向距离取包络各顶点沿参考路径弧长的最小值
// 2. 外伸距离：右侧目标取包络各顶点横向偏差的最大值，左侧取最小值
// 3. avoid_required：右侧目标|外伸|<半车宽+安全缓冲，左侧目标外伸（带符号）<同阈值
func (m *Module) createObjectData(obj *entity.PerceivedObject, data *entity.AvoidancePlanningData) entity.ObjectData {
	od := entity.ObjectData{Object: obj}
	if r, ok := m.history.get(obj.TrackID); ok {
		od.Envelope = r.envelope
		od.MoveTime = r.moveTime
		od.StopTime = r.stopTime
		od.LastSeen = r.lastSeen
	} else {
		od.Envelope = createEnvelope(obj, m.params.Avoidance.EnvelopeBufferMargin)
	}
	od.Centroid = geometry.GetPolygonCentroid2D(od.Envelope)

	points := data.ReferencePath.Points
	if len(points) < 2 {
		return od
	}
	od.Longitudinal = math.Inf(1)
	for _, p := range od.Envelope {
		if l := pathutil.CalcSignedArcLength(points, data.ReferencePose.Position, p); l < od.Longitudinal {
			od.Longitudinal = l
		}
	}
	od.Lateral = points[pathutil.FindNearestIndex(points, od.Centroid)].Pose.LateralDeviation(od.Centroid)

	onRight := od.Lateral < 0
	od.OverhangDist = math.Inf(1)
	if onRight {
		od.OverhangDist = math.Inf(-1)
	}
	for _, p := range od.Envelope {
		pose := points[pathutil.FindNearestIndex(points, p)].Pose
		dev := pose.LateralDeviation(p)
		if onRight && dev > od.OverhangDist {
			od.OverhangDist = dev
			od.OverhangPose = pose
		} else if !onRight && dev < od.OverhangDist {
			od.OverhangDist = dev
			od.OverhangPose = pose
		}
	}

	margin := m.params.Common.Vehicle.Width/2 + m.params.Avoidance.LateralPassableSafetyBuffer
	if onRight {
		od.AvoidRequired = math.Abs(od.OverhangDist) < margin
	} else {
		od.AvoidRequired = od.OverhangDist < margin
	}
	return od
}

// isInsideDetectionCorridor 判断点是否在检测走廊内
// 说明：走廊为当前车道序列向左/右各扩展配置距离后的区域
func (m *Module) isInsideDetectionCorridor(currentLanelets []entity.ILanelet, pos geometry.Point) bool {
	closest, ok := m.route.GetClosestLanelet(currentLanelets, entity.Pose{Position: pos})
	if !ok {
		return false
	}
	offset := closest.LateralOffset(pos)
	half := closest.Width() / 2
	return offset <= half+m.params.Avoidance.DetectionAreaLeftExpandDist &&
		offset >= -(half+m.params.Avoidance.DetectionAreaRightExpandDist)
}

// isVehicleType 判断目标分类是否为避让目标车型
func isVehicleType(class string) bool {
	switch class {
	case entity.ObjectClassCar, entity.ObjectClassTruck, entity.ObjectClassBus, entity.ObjectClassMotorcycle:
		return true
	default:
		return false
	}
}
