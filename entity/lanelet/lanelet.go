package lanelet

import (
	"fmt"
	"math"
	"sort"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
)

// Lanelet 车道实体
// 功能：表示地图中的一条车道，包含中心线几何与拓扑连接关系
type Lanelet struct {
	id int32

	// 初始化临时变量

	initPredecessors []*mapv2.LaneConnection
	initSuccessors   []*mapv2.LaneConnection
	initLeftLaneIDs  []int32
	initRightLaneIDs []int32

	typ            mapv2.LaneType               // 车道类型
	maxV           float64                      // 车道限速
	width          float64                      // 车道宽度
	length         float64                      // 以中心线的长度为车道长度
	predecessors   []entity.ILanelet            // 前驱车道
	successors     []entity.ILanelet            // 后继车道
	sideLanelets   [2][]entity.ILanelet         // 左/右侧车道（按距离从近到远排序）
	line           []geometry.Point             // 转成Point的中心线折线
	lineLengths    []float64                    // 中心线折线点对应的长度列表
	lineDirections []geometry.PolylineDirection // 中心线折线段每一段的方向（atan2）
}

// newLanelet 创建并初始化一个新的Lanelet实例
// 功能：根据基础数据创建Lanelet对象，初始化几何信息
// 参数：base-基础Lane数据
// 返回：初始化完成的Lanelet实例
// 说明：拓扑连接关系需要在管理器初始化后通过initWithManager建立
func newLanelet(base *mapv2.Lane) *Lanelet {
	l := &Lanelet{
		id:               base.Id,
		initPredecessors: base.Predecessors,
		initSuccessors:   base.Successors,
		initLeftLaneIDs:  base.LeftLaneIds,
		initRightLaneIDs: base.RightLaneIds,
		typ:              base.Type,
		maxV:             base.MaxSpeed,
		width:            base.Width,
		sideLanelets:     [2][]entity.ILanelet{},
	}
	l.line = lo.Map(base.CenterLine.Nodes, func(node *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(node)
	})
	l.lineLengths = geometry.GetPolylineLengths2D(l.line)
	l.length = l.lineLengths[len(l.lineLengths)-1]
	l.lineDirections = geometry.GetPolylineDirections(l.line)
	if l.width <= 0 {
		log.Panicf("bad width %v for lanelet %d", l.width, l.id)
	}
	return l
}

// initWithManager 在管理器初始化后建立Lanelet的连接关系
// 功能：根据初始化数据建立前驱、后继、侧车道连接关系
// 参数：manager-车道管理器
func (l *Lanelet) initWithManager(manager *Manager) {
	for _, conn := range l.initPredecessors {
		l.predecessors = append(l.predecessors, manager.Get(conn.Id))
	}
	for _, conn := range l.initSuccessors {
		l.successors = append(l.successors, manager.Get(conn.Id))
	}
	for _, id := range l.initLeftLaneIDs {
		l.sideLanelets[entity.LEFT] = append(l.sideLanelets[entity.LEFT], manager.Get(id))
	}
	for _, id := range l.initRightLaneIDs {
		l.sideLanelets[entity.RIGHT] = append(l.sideLanelets[entity.RIGHT], manager.Get(id))
	}
	l.initPredecessors = nil
	l.initSuccessors = nil
	l.initLeftLaneIDs = nil
	l.initRightLaneIDs = nil
}

func (l *Lanelet) String() string {
	return fmt.Sprintf("Lanelet{id=%d, len=%.1f}", l.id, l.length)
}

// ID 获取Lanelet ID
func (l *Lanelet) ID() int32 {
	return l.id
}

// Length 获取Lanelet长度
func (l *Lanelet) Length() float64 {
	return l.length
}

// Width 获取Lanelet宽度
func (l *Lanelet) Width() float64 {
	return l.width
}

// MaxV 获取Lanelet限速
func (l *Lanelet) MaxV() float64 {
	return l.maxV
}

// CenterLine 获取Lanelet的中心线
func (l *Lanelet) CenterLine() []geometry.Point {
	return l.line
}

// CenterLineLengths 获取Lanelet的中心线长度列表
func (l *Lanelet) CenterLineLengths() []float64 {
	return l.lineLengths
}

// Predecessors 获取所有前驱Lanelet
func (l *Lanelet) Predecessors() []entity.ILanelet {
	return l.predecessors
}

// Successors 获取所有后继Lanelet
func (l *Lanelet) Successors() []entity.ILanelet {
	return l.successors
}

// LeftLanelet 获取左侧相邻Lanelet，不存在则返回nil
func (l *Lanelet) LeftLanelet() entity.ILanelet {
	return l.NeighborLanelet(entity.LEFT)
}

// RightLanelet 获取右侧相邻Lanelet，不存在则返回nil
func (l *Lanelet) RightLanelet() entity.ILanelet {
	return l.NeighborLanelet(entity.RIGHT)
}

// NeighborLanelet 根据side获取左/右侧相邻Lanelet
// 说明：侧车道按距离从近到远排序，取最近的一条；不存在则返回nil
func (l *Lanelet) NeighborLanelet(side int) entity.ILanelet {
	if len(l.sideLanelets[side]) == 0 {
		return nil
	}
	return l.sideLanelets[side][0]
}

// GetDirectionByS 根据本车道s坐标计算切向角度
func (l *Lanelet) GetDirectionByS(s float64) float64 {
	if s < l.lineLengths[0] || s > l.lineLengths[len(l.lineLengths)-1] {
		log.Debugf("get direction with s %v out of range{%v,%v}",
			s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
		s = lo.Clamp(s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
	}
	if i := sort.SearchFloat64s(l.lineLengths, s); i == 0 {
		return l.lineDirections[0].Direction
	} else {
		return l.lineDirections[i-1].Direction
	}
}

// GetPositionByS 将当前车道s坐标转换为xy(z)坐标
func (l *Lanelet) GetPositionByS(s float64) (pos geometry.Point) {
	if s < l.lineLengths[0] || s > l.lineLengths[len(l.lineLengths)-1] {
		log.Debugf("get position with s %v out of range{%v,%v}",
			s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
		s = lo.Clamp(s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
	}
	if i := sort.SearchFloat64s(l.lineLengths, s); i == 0 {
		pos = l.line[0]
	} else {
		sHigh, sLow := l.lineLengths[i], l.lineLengths[i-1]
		k := (s - sLow) / (sHigh - sLow)
		if k < 0 || k > 1 {
			log.Panicf("lanelet: GetPositionByS(), bad k %v due to pos %v. sHigh=%f, sLow=%f, s=%f", k, pos, sHigh, sLow, s)
		}
		pos = geometry.Blend(l.line[i-1], l.line[i], k)
	}
	return
}

// GetOffsetPositionByS 将当前车道s坐标沿行进方向右侧平移offset后的坐标转换为xy(z)坐标
// 说明：offset为正时向右偏移，为负时向左偏移
func (l *Lanelet) GetOffsetPositionByS(s, offset float64) geometry.Point {
	originalPos := l.GetPositionByS(s)
	direction := l.GetDirectionByS(s)
	unitNormal := geometry.Point{X: math.Cos(direction - math.Pi/2), Y: math.Sin(direction - math.Pi/2)}
	return geometry.Point{X: originalPos.X + unitNormal.X*offset, Y: originalPos.Y + unitNormal.Y*offset, Z: originalPos.Z}
}

// ProjectToLanelet 将xy坐标投影到车道折线上，计算出对应的s坐标
func (l *Lanelet) ProjectToLanelet(pos geometry.Point) float64 {
	s := geometry.GetClosestPolylineSToPoint2D(l.line, l.lineLengths, pos)
	return lo.Clamp(s, 0, l.length)
}

// LateralOffset 计算点到中心线的横向偏移（左正右负）
func (l *Lanelet) LateralOffset(pos geometry.Point) float64 {
	s := l.ProjectToLanelet(pos)
	onLine := l.GetPositionByS(s)
	direction := l.GetDirectionByS(s)
	dx, dy := pos.X-onLine.X, pos.Y-onLine.Y
	return -math.Sin(direction)*dx + math.Cos(direction)*dy
}

// ContainsPoint 判断点是否在车道范围内
// 参数：pos-待判定的点，lateralMargin-允许的额外横向扩展（米）
// 说明：以中心线横向偏移不超过半车宽+扩展量为准
func (l *Lanelet) ContainsPoint(pos geometry.Point, lateralMargin float64) bool {
	return math.Abs(l.LateralOffset(pos)) <= l.width/2+lateralMargin
}
