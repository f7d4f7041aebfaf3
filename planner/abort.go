package planner

import (
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
)

// isAbortConditionSatisfied 中止条件判定与子状态推进
// 功能：以中止裕度重新校验已提交路径，按自车位置与配置决定取消/停车保持/中止
// 返回：true表示需要脱离当前机动（取消、强制保持或执行中止几何）
// 算法说明：
// 1. 未启用取消或未获批准时不评估，子状态保持
// 2. 路径仍安全⇒Normal，返回false
// 3. 不安全且自车仍在原车道内⇒Cancel，返回true（取消免费，上游回退沿道行驶）
// 4. 不安全且已离开原车道：
//    - 未启用中止⇒Stop，返回false（保持，不逐周期重触发取消逻辑）
//    - 中止几何计算失败且尚无已批准中止路径⇒Stop，返回true（强制保持）
//    - 其余⇒Abort；中止路径仅在尚未批准时计算并缓存一次，批准前复用缓存
// 说明：本逻辑绝不选择已判定不安全的路径，也绝不在未尝试取消或中止前放弃机动
func (m *Module) isAbortConditionSatisfied() bool {
	if !m.params.LaneChange.EnableCancelLaneChange {
		return false
	}
	if !m.isActivated() {
		return false
	}

	safe, poseBeforeCollision := m.generator.IsApprovedPathSafe(
		m.lcStatus.LaneChangePath,
		m.lcStatus.CurrentLanelets,
		m.snap.EgoPose, m.snap.EgoV,
		m.snap.Objects,
		m.params.LaneChange.CheckDistance,
	)
	if safe {
		m.current = entity.LaneChangeNormal
		return false
	}
	m.egoPoseBeforeCollision = poseBeforeCollision

	if m.generator.IsEgoWithinOriginalLane(m.lcStatus.CurrentLanelets, m.snap.EgoPose) {
		m.current = entity.LaneChangeCancel
		return true
	}

	if !m.params.LaneChange.EnableAbortLaneChange {
		m.current = entity.LaneChangeStop
		m.warnThrottled("lane change is unsafe but abort is disabled, holding until the path clears")
		return false
	}

	if !m.isAbortPathApproved && m.abortPath == nil {
		if path, found := m.generator.GetAbortPaths(
			m.lcStatus.LaneChangePath,
			m.lcStatus.CurrentLanelets,
			m.egoPoseBeforeCollision, m.snap.EgoPose, m.snap.EgoV,
		); found {
			m.abortPath = path
		}
	}
	if m.abortPath == nil && !m.isAbortPathApproved {
		m.current = entity.LaneChangeStop
		m.warnThrottled("abort geometry not found, holding")
		return true
	}

	m.current = entity.LaneChangeAbort
	return true
}

// resetPathIfAbort 中止路径的批准握手
// 功能：首次进入中止时重新生成机动标识并重新请求批准；
// 批准到达前保持等待，到达后提交中止路径
// 说明：机动含义从变道变为中止，旧标识的批准不得复用
func (m *Module) resetPathIfAbort() {
	if m.abortPath == nil {
		return
	}
	side := entity.LEFT
	if m.abortPath.LateralShift() > 0 {
		// 中止几何向左横移，说明原变道朝右
		side = entity.RIGHT
	}
	if !m.isAbortApprovalRequested {
		m.gate.Regenerate(side)
		m.direction = side
		m.isAbortApprovalRequested = true
		log.Infof("abort maneuver requires new approval (id %s)", m.gate.ID(side))
	}
	if m.gate.IsApproved(side) {
		m.isAbortPathApproved = true
		m.waitingApproval = false
	} else {
		m.isAbortPathApproved = false
		m.waitingApproval = true
	}
}
