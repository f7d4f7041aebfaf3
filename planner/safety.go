package planner

import (
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
)

// getSafePath 调用路径生成例程并应用路径选择策略
// 功能：生成候选变道路径，从中选出安全候选
// 参数：laneChangeLanelets-目标车道走廊，direction-避让方向，snap-本周期快照
// 返回：选中路径、是否存在几何有效候选、是否存在碰撞安全候选
// 算法说明：
// 1. 走廊为空或候选列表为空时返回(false,false)，不做任何选择
// 2. 存在安全候选时选取生成顺序中最后一个安全候选（最完整的安全机动）
// 3. 无安全候选但列表非空时选取首个候选作为强制兜底，found_safe=false，
//    兜底路径仅供展示，未经后续就绪检查不得执行
// 说明：每次调用都会缓存完整候选集与单目标诊断数据供外部可视化
func (m *Module) getSafePath(laneChangeLanelets []entity.ILanelet, direction int, snap entity.Snapshot) (entity.LaneChangePath, bool, bool) {
	if len(laneChangeLanelets) == 0 {
		return entity.LaneChangePath{}, false, false
	}
	paths, foundSafe, objectDebug := m.generator.GetLaneChangePaths(
		snap.PreviousPath,
		m.data.CurrentLanelets, laneChangeLanelets,
		snap.EgoPose, snap.EgoV,
		snap.Objects,
		m.params.LaneChange.CheckDistance,
		direction,
	)
	m.debug.CandidatePaths = paths
	m.debug.ObjectDebug = objectDebug
	if len(paths) == 0 {
		return entity.LaneChangePath{}, false, false
	}
	if foundSafe {
		for i := len(paths) - 1; i >= 0; i-- {
			if paths[i].IsSafe {
				return paths[i], true, true
			}
		}
	}
	// 强制兜底：无安全候选时取首个候选，仅供展示
	return paths[0], true, false
}
