package lanelet

import (
	"fmt"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"git.fiblab.net/general/common/v2/mathutil"
	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
)

// Manager Lanelet管理器
// 功能：管理所有Lanelet实体，提供查找、最近车道匹配、车道序列扩展、弧长坐标换算等功能
type Manager struct {
	data     map[int32]*Lanelet
	lanelets []*Lanelet
}

// NewManager 创建Lanelet管理器实例
func NewManager() *Manager {
	return &Manager{
		data:     make(map[int32]*Lanelet),
		lanelets: make([]*Lanelet, 0),
	}
}

// Init 初始化所有Lanelet
// 功能：根据protobuf数据初始化所有Lanelet对象，建立ID映射关系和连接关系
// 参数：pbs-Lane的protobuf数据列表
// 说明：只保留行车车道；使用并行处理提高初始化效率，分两阶段：创建对象和建立连接关系
func (m *Manager) Init(pbs []*mapv2.Lane) {
	drivingPbs := lo.Filter(pbs, func(pb *mapv2.Lane, _ int) bool {
		return pb.Type == mapv2.LaneType_LANE_TYPE_DRIVING
	})
	m.lanelets = parallel.GoMap(drivingPbs, func(pb *mapv2.Lane) *Lanelet {
		return newLanelet(pb)
	})
	m.data = lo.SliceToMap(m.lanelets, func(l *Lanelet) (int32, *Lanelet) {
		return l.id, l
	})
	parallel.GoFor(m.lanelets, func(l *Lanelet) { l.initWithManager(m) })
}

// Get 根据ID获取Lanelet实例，如果不存在则panic
func (m *Manager) Get(id int32) entity.ILanelet {
	if l, ok := m.data[id]; !ok {
		log.Panicf("no id %d in lanelet data", id)
		return nil
	} else {
		return l
	}
}

// GetOrError 根据ID获取Lanelet实例（带错误处理）
func (m *Manager) GetOrError(id int32) (entity.ILanelet, error) {
	if l, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in lanelet data", id)
	} else {
		return l, nil
	}
}

// GetLanelets 根据ID列表批量获取Lanelet实例
func (m *Manager) GetLanelets(ids []int32) []entity.ILanelet {
	return lo.Map(ids, func(id int32, _ int) entity.ILanelet {
		return m.Get(id)
	})
}

// GetClosestLanelet 从候选集中选出距离位姿最近的Lanelet
// 功能：综合投影距离与朝向差选择与位姿最匹配的车道
// 返回：最匹配的车道与是否找到
func (m *Manager) GetClosestLanelet(lanelets []entity.ILanelet, pose entity.Pose) (entity.ILanelet, bool) {
	var best entity.ILanelet
	bestScore := mathutil.INF
	for _, l := range lanelets {
		if score := laneletMatchScore(l, pose); score < bestScore {
			bestScore = score
			best = l
		}
	}
	return best, best != nil
}

// GetClosestLaneletFromMap 从整张地图中选出距离位姿最近的Lanelet
func (m *Manager) GetClosestLaneletFromMap(pose entity.Pose) (entity.ILanelet, bool) {
	lanelets := lo.Map(m.lanelets, func(l *Lanelet, _ int) entity.ILanelet { return l })
	return m.GetClosestLanelet(lanelets, pose)
}

// GetLaneletSequence 以lanelet为锚点扩展车道序列
// 功能：从位姿在锚点车道上的投影出发，向后扩展backward、向前扩展forward得到连续车道序列
// 参数：lanelet-锚点车道，pose-自车位姿，backward/forward-扩展距离（米）
// 返回：按行进方向排列的车道序列（含锚点）
// 说明：多前驱/多后继时取首个连接；检测到环路时停止扩展
func (m *Manager) GetLaneletSequence(lanelet entity.ILanelet, pose entity.Pose, backward, forward float64) []entity.ILanelet {
	if lanelet == nil {
		return nil
	}
	visited := map[int32]bool{lanelet.ID(): true}
	s := lanelet.ProjectToLanelet(pose.Position)

	backs := make([]entity.ILanelet, 0)
	rest := backward - s
	for cur := lanelet; rest > 0; {
		preds := cur.Predecessors()
		if len(preds) == 0 || visited[preds[0].ID()] {
			break
		}
		cur = preds[0]
		visited[cur.ID()] = true
		backs = append(backs, cur)
		rest -= cur.Length()
	}

	fronts := make([]entity.ILanelet, 0)
	rest = forward - (lanelet.Length() - s)
	for cur := lanelet; rest > 0; {
		succs := cur.Successors()
		if len(succs) == 0 || visited[succs[0].ID()] {
			break
		}
		cur = succs[0]
		visited[cur.ID()] = true
		fronts = append(fronts, cur)
		rest -= cur.Length()
	}

	sequence := make([]entity.ILanelet, 0, len(backs)+1+len(fronts))
	for i := len(backs) - 1; i >= 0; i-- {
		sequence = append(sequence, backs[i])
	}
	sequence = append(sequence, lanelet)
	sequence = append(sequence, fronts...)
	return sequence
}

// GetArcCoordinates 计算位姿在车道序列中的弧长坐标
// 功能：选出序列中与位姿最匹配的车道，换算为沿序列的累计弧长与横向偏移
func (m *Manager) GetArcCoordinates(lanelets []entity.ILanelet, pose entity.Pose) entity.ArcCoordinates {
	closest, ok := m.GetClosestLanelet(lanelets, pose)
	if !ok {
		log.Panic("GetArcCoordinates with empty lanelet sequence")
	}
	accumulated := .0
	for _, l := range lanelets {
		if l.ID() == closest.ID() {
			break
		}
		accumulated += l.Length()
	}
	return entity.ArcCoordinates{
		Length:   accumulated + closest.ProjectToLanelet(pose.Position),
		Distance: closest.LateralOffset(pose.Position),
	}
}

// GetDistanceToEnd 计算位姿到车道序列末端的剩余距离
func (m *Manager) GetDistanceToEnd(lanelets []entity.ILanelet, pose entity.Pose) float64 {
	total := .0
	for _, l := range lanelets {
		total += l.Length()
	}
	return total - m.GetArcCoordinates(lanelets, pose).Length
}
