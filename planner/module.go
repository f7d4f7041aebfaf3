package planner

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/clock"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"

	"github.com/google/uuid"
)

// 车道来源策略
const (
	laneSourceRouteStrategy = iota // 从地图最近车道扩展
	laneSourcePathStrategy         // 从上游路径车道ID推导
)

const (
	lowVelocityThreshold = 10.0 / 3.6 // 低速判定阈值（m/s）
	warnInterval         = 1.0        // 限频告警间隔（秒）
)

// Module 避让变道行为决策模块
// 功能：判定是否需要通过变道避让前方障碍，生成并筛选候选变道路径，
// 管理批准/提交/中止的完整生命周期
// 说明：单实例单线程，每周期由调用方串行触发一次Tick；
// 快照为只读输入，模块自身状态（登记表、生命周期、缓存路径）与之分离
type Module struct {
	params     config.Planner
	laneSource int
	route      entity.IRouteHandler
	generator  entity.IPathGenerator
	clk        *clock.Clock
	history    *objectHistory
	gate       *approvalGate
	observer   Observer

	status          entity.ModuleStatus
	current         entity.LaneChangeState
	lcStatus        entity.LaneChangeStatus
	data            entity.AvoidancePlanningData
	snap            entity.Snapshot
	direction       int
	waitingApproval bool

	abortPath                *entity.LaneChangePath
	isAbortPathApproved      bool
	isAbortApprovalRequested bool
	egoPoseBeforeCollision   entity.Pose

	debug     DebugData
	lastWarnT float64
}

// New 创建避让变道行为决策模块
// 参数：params-模块参数，route-车道拓扑查询，generator-路径生成例程，clk-规划时钟
func New(params config.Planner, route entity.IRouteHandler, generator entity.IPathGenerator, clk *clock.Clock) *Module {
	m := &Module{
		params:    params,
		route:     route,
		generator: generator,
		clk:       clk,
		history:   newObjectHistory(params.Avoidance),
		gate:      newApprovalGate(),
	}
	if params.LaneSource == config.LaneSourcePath {
		m.laneSource = laneSourcePathStrategy
	}
	m.Reset()
	return m
}

// Reset 重置模块到初始状态
// 功能：外层状态回到Idle，子状态回到Normal，清空目标登记表与缓存路径，
// 重新生成机动标识
func (m *Module) Reset() {
	m.status = entity.ModuleIdle
	m.current = entity.LaneChangeNormal
	m.lcStatus = entity.LaneChangeStatus{}
	m.history.clear()
	m.gate = newApprovalGate()
	m.waitingApproval = false
	m.abortPath = nil
	m.isAbortPathApproved = false
	m.isAbortApprovalRequested = false
	m.lastWarnT = -warnInterval
}

// Approve 外部批准指定标识的机动
// 说明：标识过期（机动含义已变化）时批准被忽略
func (m *Module) Approve(id uuid.UUID) {
	m.gate.Approve(id)
}

// Status 获取外层生命周期状态
func (m *Module) Status() entity.ModuleStatus {
	return m.status
}

// State 获取机动子状态
func (m *Module) State() entity.LaneChangeState {
	return m.current
}

// SetObserver 设置诊断观察者
func (m *Module) SetObserver(observer Observer) {
	m.observer = observer
}

// Tick 执行一个规划周期
// 功能：依据快照完成目标分类、门限判定、状态机推进与输出合成
// 参数：snap-本周期只读环境快照
// 返回：本周期输出（提交路径或候选发布）
// 说明：Success/Failure为终态，需显式Reset后方可重新进入
func (m *Module) Tick(snap entity.Snapshot) Output {
	m.snap = snap
	m.debug = DebugData{}
	m.data = m.calcAvoidancePlanningData(snap)
	m.debug.TargetObjects = m.data.TargetObjects
	m.debug.OtherObjects = m.data.OtherObjects

	var out Output
	switch m.status {
	case entity.ModuleSuccess, entity.ModuleFailure:
		out = m.inactiveOutput()
	case entity.ModuleIdle:
		if !m.isExecutionRequested() {
			out = m.inactiveOutput()
		} else {
			m.onEntry()
			out = m.runCycle()
		}
	default:
		out = m.runCycle()
	}
	out.Status = m.status
	out.State = m.current

	m.debug.Status = m.status
	m.debug.State = m.current
	m.debug.WaitingApproval = m.waitingApproval
	if m.observer != nil {
		m.observer.OnTick(m.debug)
	}
	return out
}

// onEntry 进入运行状态
// 说明：进入时立即发起批准请求，几何未获批准前不提交
func (m *Module) onEntry() {
	m.status = entity.ModuleRunning
	m.current = entity.LaneChangeNormal
	m.waitingApproval = true
	m.updateLaneChangeStatus()
	log.Infof("avoidance lane change requested towards %s (id %s)",
		entity.SideName(m.direction), m.gate.ID(m.direction))
}

// runCycle 运行态的单周期推进
func (m *Module) runCycle() Output {
	// 未提交前每周期刷新候选；中止流程中路径已提交，不再刷新
	if m.waitingApproval && m.current == entity.LaneChangeNormal {
		m.updateLaneChangeStatus()
	}
	m.status = m.updateState()
	if m.status != entity.ModuleRunning {
		log.Infof("avoidance lane change resolved with %s", m.status)
		return m.inactiveOutput()
	}
	if m.waitingApproval {
		if m.isActivated() && (m.isExecutionReady() || m.current == entity.LaneChangeAbort) {
			m.waitingApproval = false
			return m.plan()
		}
		return m.planWaitingApproval()
	}
	return m.plan()
}

// isExecutionRequested 执行请求判定
// 功能：存在几何有效候选、目标数达到门限、最近目标纵向距离满足裕度，
// 且（如配置）变道能在最近目标前完成时为真
func (m *Module) isExecutionRequested() bool {
	if m.status == entity.ModuleRunning {
		return true
	}
	if len(m.data.CurrentLanelets) == 0 {
		return false
	}
	p := m.params.AvoidanceByLC
	if len(m.data.TargetObjects) < int(p.ExecuteObjectNum) {
		return false
	}
	nearest := m.data.TargetObjects[0]
	if nearest.Longitudinal < p.ExecuteObjectLongitudinalMargin {
		return false
	}
	lanelets, direction := m.getLaneChangeLanelets(&m.data, m.snap.EgoPose, m.snap.EgoV)
	path, foundValid, _ := m.getSafePath(lanelets, direction, m.snap)
	if !foundValid {
		return false
	}
	if p.ExecuteOnlyWhenLaneChangeFinishBeforeObject &&
		path.Length+m.params.LaneChange.LaneChangeFinishJudgeBuffer > nearest.Longitudinal {
		return false
	}
	return true
}

// isExecutionReady 执行就绪判定：存在碰撞安全候选
// 说明：运行态下直接读取本周期安全评估的结论
func (m *Module) isExecutionReady() bool {
	if m.status == entity.ModuleRunning {
		return m.lcStatus.IsSafe
	}
	lanelets, direction := m.getLaneChangeLanelets(&m.data, m.snap.EgoPose, m.snap.EgoV)
	_, _, foundSafe := m.getSafePath(lanelets, direction, m.snap)
	return foundSafe
}

// updateLaneChangeStatus 更新机动状态
// 功能：重新选择避让方向与目标走廊，执行安全评估并缓存选中路径
func (m *Module) updateLaneChangeStatus() {
	lanelets, direction := m.getLaneChangeLanelets(&m.data, m.snap.EgoPose, m.snap.EgoV)
	path, foundValid, foundSafe := m.getSafePath(lanelets, direction, m.snap)
	m.direction = direction
	m.lcStatus.CurrentLanelets = m.data.CurrentLanelets
	m.lcStatus.LaneChangeLanelets = lanelets
	m.lcStatus.LaneChangePath = path
	m.lcStatus.IsSafe = foundSafe
	m.lcStatus.IsValidPath = foundValid
	m.lcStatus.LaneFollowLaneIDs = laneletIDs(m.data.CurrentLanelets)
	m.lcStatus.LaneChangeLaneIDs = laneletIDs(lanelets)
	if foundValid && len(lanelets) > 0 {
		m.lcStatus.StartDistance = m.route.GetArcCoordinates(lanelets, m.snap.EgoPose).Length
	}
}

// updateState 按优先级推进外层状态
// 算法说明（优先级从高到低）：
// 1. 缓存路径失效（越界或折返）⇒ Success（静默放弃）
// 2. 等待批准期间：目标数低于门限⇒Success；纵向裕度或完成时机不满足⇒Failure
// 3. 子状态为Abort且自车已离开原车道⇒继续Running（必须完成中止）
// 4. 中止条件满足：（接近车道末端且低速）或自车已离开原车道⇒Running，否则⇒Failure
// 5. 机动完成⇒Success
// 6. 其余⇒Running
func (m *Module) updateState() entity.ModuleStatus {
	if !m.isValidPath(m.lcStatus.LaneChangePath.Path) {
		return entity.ModuleSuccess
	}
	if m.waitingApproval {
		p := m.params.AvoidanceByLC
		if len(m.data.TargetObjects) < int(p.ExecuteObjectNum) {
			return entity.ModuleSuccess
		}
		nearest := m.data.TargetObjects[0]
		if nearest.Longitudinal < p.ExecuteObjectLongitudinalMargin {
			return entity.ModuleFailure
		}
		if p.ExecuteOnlyWhenLaneChangeFinishBeforeObject &&
			m.lcStatus.LaneChangePath.Length+m.params.LaneChange.LaneChangeFinishJudgeBuffer > nearest.Longitudinal {
			return entity.ModuleFailure
		}
	}
	withinOriginal := m.generator.IsEgoWithinOriginalLane(m.lcStatus.CurrentLanelets, m.snap.EgoPose)
	if m.current == entity.LaneChangeAbort && !withinOriginal {
		return entity.ModuleRunning
	}
	if m.isAbortConditionSatisfied() {
		if (m.isNearEndOfLane() && m.isCurrentVelocityLow()) || !withinOriginal {
			return entity.ModuleRunning
		}
		return entity.ModuleFailure
	}
	if m.hasFinishedLaneChange() {
		return entity.ModuleSuccess
	}
	return entity.ModuleRunning
}

// isValidPath 校验缓存路径的几何有效性
// 说明：全部路径点须位于原/目标车道扩展边界内，且相邻朝向变化不得折返
func (m *Module) isValidPath(path entity.PathWithLaneIDs) bool {
	if path.Empty() {
		return false
	}
	lanelets := append(append([]entity.ILanelet{}, m.lcStatus.CurrentLanelets...), m.lcStatus.LaneChangeLanelets...)
	if len(lanelets) == 0 {
		return false
	}
	margin := 1.0 + math.Max(m.params.LaneChange.DrivableAreaLeftBoundOffset, m.params.LaneChange.DrivableAreaRightBoundOffset)
	for _, p := range path.Points {
		inside := false
		for _, l := range lanelets {
			if l.ContainsPoint(p.Pose.Position, margin) {
				inside = true
				break
			}
		}
		if !inside {
			m.warnThrottled("path is out of lanes")
			return false
		}
	}
	if !pathutil.CheckPathRelativeAngle(path, math.Pi) {
		m.warnThrottled("path relative angle is invalid")
		return false
	}
	return true
}

// isNearEndOfLane 判断自车是否接近当前车道序列末端
func (m *Module) isNearEndOfLane() bool {
	threshold := m.params.Common.MinimumLaneChangingLength + m.params.LaneChange.LaneChangeFinishJudgeBuffer
	return m.route.GetDistanceToEnd(m.lcStatus.CurrentLanelets, m.snap.EgoPose) < threshold
}

// isCurrentVelocityLow 判断当前车速是否低于低速阈值
func (m *Module) isCurrentVelocityLow() bool {
	return m.snap.EgoV < lowVelocityThreshold
}

// hasFinishedLaneChange 判断变道机动是否完成
// 说明：目标车道内行驶距离须严格大于路径长度+完成判定缓冲，等于不算完成
func (m *Module) hasFinishedLaneChange() bool {
	if len(m.lcStatus.LaneChangeLanelets) == 0 {
		return false
	}
	arc := m.route.GetArcCoordinates(m.lcStatus.LaneChangeLanelets, m.snap.EgoPose)
	travelDistance := arc.Length - m.lcStatus.StartDistance
	finishDistance := m.lcStatus.LaneChangePath.Length + m.params.LaneChange.LaneChangeFinishJudgeBuffer
	return travelDistance > finishDistance
}

// isActivated 判断当前方向的机动是否已被外部批准
func (m *Module) isActivated() bool {
	return m.gate.IsApproved(m.direction)
}

// warnThrottled 限频告警
func (m *Module) warnThrottled(msg string) {
	if m.clk.T-m.lastWarnT >= warnInterval {
		log.Warn(msg)
		m.lastWarnT = m.clk.T
	}
}

func laneletIDs(lanelets []entity.ILanelet) []int32 {
	ids := make([]int32, 0, len(lanelets))
	for _, l := range lanelets {
		ids = append(ids, l.ID())
	}
	return ids
}
