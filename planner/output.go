package planner

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"

	"github.com/google/uuid"
)

// 转向意图阶段
const (
	PhaseApproaching = "approaching" // 接近横移起点
	PhaseTurning     = "turning"     // 执行横移
)

// 转向灯判定的最小横移量（米）
const turnSignalShiftThreshold = 0.1

// SteeringIntent 转向意图报告
type SteeringIntent struct {
	Direction      int     // 机动方向
	StartDistance  float64 // 自车到横移起点的弧长
	FinishDistance float64 // 自车到横移终点的弧长
	Phase          string  // 阶段
}

// CandidateOutput 发布给批准前端的候选机动
type CandidateOutput struct {
	ID             uuid.UUID              // 机动标识
	Path           entity.PathWithLaneIDs // 候选路径
	LateralShift   float64                // 横移量（左正右负）
	StartDistance  float64                // 自车到横移起点的弧长
	FinishDistance float64                // 自车到横移终点的弧长
}

// Output 单周期输出
// 功能：提交路径或候选发布，以及转向灯、可行驶区域与转向意图
type Output struct {
	Active           bool                   // 机动几何是否已提交
	Path             entity.PathWithLaneIDs // 输出路径
	TurnSignal       entity.TurnSignal      // 转向灯指令
	DrivableLanelets []entity.ILanelet      // 可行驶区域覆盖的车道（原+目标）
	Candidate        *CandidateOutput       // 等待批准期间发布的候选
	SteeringIntent   *SteeringIntent        // 转向意图报告
	Status           entity.ModuleStatus    // 外层生命周期状态
	State            entity.LaneChangeState // 机动子状态
}

// inactiveOutput 非活动输出：原样转发上游路径
func (m *Module) inactiveOutput() Output {
	out := Output{}
	if m.snap.PreviousPath != nil {
		out.Path = m.snap.PreviousPath.Clone()
	}
	return out
}

// plan 提交已批准的机动路径
// 功能：输出选中的变道路径（子状态为Abort时输出中止路径），
// 可行驶区域扩展覆盖原/目标车道，按横移几何推导转向灯
// 说明：子状态为Stop时在车道末端前插入停车点
func (m *Module) plan() Output {
	path := m.lcStatus.LaneChangePath
	if m.current == entity.LaneChangeAbort {
		m.resetPathIfAbort()
		if m.abortPath != nil {
			path = *m.abortPath
		}
	}
	out := Output{
		Active: true,
		Path:   path.Path.Clone(),
	}
	if m.current == entity.LaneChangeStop {
		stopDistance := m.route.GetDistanceToEnd(m.lcStatus.CurrentLanelets, m.snap.EgoPose) -
			m.params.Common.MinimumLaneChangingLength
		pathutil.InsertStopPoint(&out.Path, math.Max(stopDistance, 0))
	}
	out.DrivableLanelets = append(append([]entity.ILanelet{}, m.lcStatus.CurrentLanelets...), m.lcStatus.LaneChangeLanelets...)
	out.TurnSignal = turnSignalFromShift(path.LateralShift())
	start, finish := m.shiftDistances(path)
	out.SteeringIntent = &SteeringIntent{
		Direction:      m.direction,
		StartDistance:  start,
		FinishDistance: finish,
		Phase:          PhaseTurning,
	}
	return out
}

// planWaitingApproval 等待批准期间的输出合成
// 功能：原样转发上游路径（不向下游泄露未提交几何），在最近目标前插入减速目标，
// 将候选路径与横移量/起止距离发布给批准前端，并给出方向标注的转向意图
func (m *Module) planWaitingApproval() Output {
	out := m.inactiveOutput()
	if len(m.data.TargetObjects) > 0 && !out.Path.Empty() {
		nearest := m.data.TargetObjects[0]
		decelDistance := nearest.Longitudinal - m.params.Common.MinimumLaneChangingLength
		pathutil.InsertDecelPoint(&out.Path, m.snap.EgoPose.Position, decelDistance, 0)
	}
	if candidate := m.planCandidate(); candidate != nil {
		out.Candidate = candidate
		out.TurnSignal = turnSignalFromShift(candidate.LateralShift)
		out.SteeringIntent = &SteeringIntent{
			Direction:      m.direction,
			StartDistance:  candidate.StartDistance,
			FinishDistance: candidate.FinishDistance,
			Phase:          PhaseApproaching,
		}
	}
	return out
}

// planCandidate 构造发布给批准前端的候选
// 说明：子状态为Abort时发布中止路径，否则发布当前选中的变道路径
func (m *Module) planCandidate() *CandidateOutput {
	path := m.lcStatus.LaneChangePath
	if m.current == entity.LaneChangeAbort && m.abortPath != nil {
		path = *m.abortPath
	}
	if path.Path.Empty() {
		return nil
	}
	start, finish := m.shiftDistances(path)
	return &CandidateOutput{
		ID:             m.gate.ID(m.direction),
		Path:           path.Path,
		LateralShift:   path.LateralShift(),
		StartDistance:  start,
		FinishDistance: finish,
	}
}

// shiftDistances 计算自车到横移起点/终点的弧长
func (m *Module) shiftDistances(path entity.LaneChangePath) (float64, float64) {
	if path.Path.Empty() {
		return 0, 0
	}
	start := pathutil.CalcSignedArcLength(path.Path.Points, m.snap.EgoPose.Position, path.ShiftLine.Start.Position)
	finish := pathutil.CalcSignedArcLength(path.Path.Points, m.snap.EgoPose.Position, path.ShiftLine.End.Position)
	return start, finish
}

// turnSignalFromShift 按横移量推导转向灯指令
func turnSignalFromShift(shift float64) entity.TurnSignal {
	switch {
	case shift > turnSignalShiftThreshold:
		return entity.TurnSignalLeft
	case shift < -turnSignalShiftThreshold:
		return entity.TurnSignalRight
	default:
		return entity.TurnSignalNone
	}
}
