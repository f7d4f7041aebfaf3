package planner

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
)

// getLaneChangeLanelets 选择避让方向并构建目标车道走廊
// 功能：方向取最近避让目标的对侧；沿当前车道序列在准备距离内寻找该侧首个相邻车道，
// 以其为锚点前后扩展lane_change_lane_length得到目标车道走廊
// 参数：data-本周期规划数据，egoPose/egoV-自车状态
// 返回：目标车道走廊（可能为空）、避让方向
// 说明：走廊为空表示当前无法执行，不是错误
func (m *Module) getLaneChangeLanelets(data *entity.AvoidancePlanningData, egoPose entity.Pose, egoV float64) ([]entity.ILanelet, int) {
	if len(data.CurrentLanelets) == 0 || len(data.TargetObjects) == 0 {
		return nil, entity.LEFT
	}
	nearest := data.TargetObjects[0]
	direction := entity.LEFT
	if !nearest.IsOnRight() {
		direction = entity.RIGHT
	}

	prepareDistance := math.Max(egoV*m.params.LaneChange.PrepareDuration, m.params.Common.MinimumLaneChangingLength)
	arc := m.route.GetArcCoordinates(data.CurrentLanelets, egoPose)

	// 从自车所在车道起向前遍历，寻找该侧首个相邻车道
	walked := -arc.Length
	for _, l := range data.CurrentLanelets {
		walked += l.Length()
		if walked < 0 {
			continue
		}
		if neighbor := l.NeighborLanelet(direction); neighbor != nil {
			corridor := m.route.GetLaneletSequence(neighbor, egoPose,
				m.params.LaneChange.LaneChangeLaneLength, m.params.LaneChange.LaneChangeLaneLength)
			return corridor, direction
		}
		if walked > prepareDistance {
			break
		}
	}
	log.Debugf("no %s neighbor lanelet within prepare distance %.1f", entity.SideName(direction), prepareDistance)
	return nil, direction
}
