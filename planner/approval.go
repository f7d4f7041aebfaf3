package planner

import (
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"github.com/google/uuid"
)

// approvalGate 机动批准门
// 功能：管理左右两个方向的机动标识与外部批准状态
// 说明：机动含义发生变化（如变道转为中止）时必须重新生成标识，
// 使过期的批准无法作用于新几何
type approvalGate struct {
	ids      [2]uuid.UUID       // 左/右方向的机动标识
	approved map[uuid.UUID]bool // 外部批准状态
}

func newApprovalGate() *approvalGate {
	g := &approvalGate{
		approved: make(map[uuid.UUID]bool),
	}
	g.Regenerate(entity.LEFT)
	g.Regenerate(entity.RIGHT)
	return g
}

// ID 获取指定方向当前的机动标识
func (g *approvalGate) ID(side int) uuid.UUID {
	return g.ids[side]
}

// Approve 外部批准指定标识的机动
// 说明：标识已失效（被重新生成）时批准被忽略
func (g *approvalGate) Approve(id uuid.UUID) {
	if id == g.ids[entity.LEFT] || id == g.ids[entity.RIGHT] {
		g.approved[id] = true
	} else {
		log.Warnf("ignore approval for stale maneuver id %s", id)
	}
}

// IsApproved 查询指定方向的机动是否已被批准
func (g *approvalGate) IsApproved(side int) bool {
	return g.approved[g.ids[side]]
}

// Regenerate 重新生成指定方向的机动标识
// 说明：旧标识对应的批准状态一并失效
func (g *approvalGate) Regenerate(side int) {
	delete(g.approved, g.ids[side])
	g.ids[side] = uuid.New()
}
