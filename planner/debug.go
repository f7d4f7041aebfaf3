package planner

import (
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
)

// DebugData 单周期诊断数据
// 功能：汇总候选集与单目标碰撞检查结论，仅用于外部可视化
// 说明：决策逻辑不读取诊断数据，每周期结束后整体重建
type DebugData struct {
	Status          entity.ModuleStatus                   // 外层生命周期状态
	State           entity.LaneChangeState                // 机动子状态
	CandidatePaths  []entity.LaneChangePath               // 最近一次安全评估的全部候选
	ObjectDebug     map[string]entity.CollisionCheckDebug // 单目标碰撞检查结论
	TargetObjects   []entity.ObjectData                   // 避让目标
	OtherObjects    []entity.ObjectData                   // 被排除的目标
	WaitingApproval bool                                  // 是否等待批准
}

// Observer 诊断观察者
// 功能：在每个周期决策完成后接收诊断数据
// 说明：观察者在周期结束时被调用一次，期间不得回调模块
type Observer interface {
	OnTick(debug DebugData)
}
