package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
)

// Manager依赖倒置

// entity/lanelet/lanelet.go的依赖倒置
type ILanelet interface {
	// Print

	String() string

	// getter

	ID() int32                    // 获取Lanelet ID
	Length() float64              // 获取Lanelet长度
	Width() float64               // 获取Lanelet宽度
	MaxV() float64                // 获取Lanelet限速
	CenterLine() []geometry.Point // 获取Lanelet的中心线
	CenterLineLengths() []float64 // 获取Lanelet的中心线长度

	// 拓扑

	Predecessors() []ILanelet    // 获取所有前驱Lanelet
	Successors() []ILanelet      // 获取所有后继Lanelet
	LeftLanelet() ILanelet       // 获取左侧相邻Lanelet
	RightLanelet() ILanelet      // 获取右侧相邻Lanelet
	NeighborLanelet(side int) ILanelet // 根据side获取左(side=0)/右(side=1)侧相邻Lanelet

	// 几何

	GetPositionByS(s float64) geometry.Point               // 将当前车道s坐标转换为xy坐标
	GetOffsetPositionByS(s, offset float64) geometry.Point // 将当前车道s坐标，沿行进方向平移offset后的坐标转换为xy坐标
	GetDirectionByS(s float64) float64                     // 根据本车道s坐标计算切向角度
	ProjectToLanelet(pos geometry.Point) float64           // 将xy坐标投影到车道上，返回s坐标
	LateralOffset(pos geometry.Point) float64              // 计算点到中心线的横向偏移（左正右负）
	ContainsPoint(pos geometry.Point, lateralMargin float64) bool // 判断点是否在车道范围内（可带横向扩展）
}

// ArcCoordinates 车道序列弧长坐标
type ArcCoordinates struct {
	Length   float64 // 沿序列中心线的弧长
	Distance float64 // 横向偏移（左正右负）
}

// entity/lanelet/manager.go的依赖倒置
// 地图拓扑查询能力（车道查找、左右相邻、弧长/坐标转换）
type IRouteHandler interface {
	// 输入Lanelet ID，查找Lanelet，如果不存在则panic
	Get(id int32) ILanelet
	// 输入Lanelet ID，查找Lanelet，如果不存在则返回error
	GetOrError(id int32) (ILanelet, error)
	// 输入Lanelet ID列表，查找Lanelet列表
	GetLanelets(ids []int32) []ILanelet

	// 从候选集中选出距离位姿最近的Lanelet
	GetClosestLanelet(lanelets []ILanelet, pose Pose) (ILanelet, bool)
	// 从整张地图中选出距离位姿最近的Lanelet
	GetClosestLaneletFromMap(pose Pose) (ILanelet, bool)
	// 以lanelet为锚点，向后backward、向前forward扩展得到车道序列
	GetLaneletSequence(lanelet ILanelet, pose Pose, backward, forward float64) []ILanelet
	// 计算位姿在车道序列中的弧长坐标
	GetArcCoordinates(lanelets []ILanelet, pose Pose) ArcCoordinates
	// 计算位姿到车道序列末端的剩余距离
	GetDistanceToEnd(lanelets []ILanelet, pose Pose) float64
}

// lanechange包的依赖倒置：候选路径生成/碰撞检查例程的契约
//
// GetLaneChangePaths返回的候选按机动完成度升序排列（越靠后的候选准备+横移
// 距离越长），调用方的"取最后一个安全候选"策略依赖该顺序。
type IPathGenerator interface {
	// 生成候选变道路径并逐一进行碰撞安全判定
	// 返回：候选列表（有序，IsSafe已填写）、是否存在安全候选、单目标诊断数据
	GetLaneChangePaths(
		prevPath *PathWithLaneIDs,
		currentLanelets, targetLanelets []ILanelet,
		egoPose Pose, egoV float64,
		objects []*PerceivedObject,
		checkDistance float64,
		direction int,
	) (paths []LaneChangePath, foundSafePath bool, objectDebug map[string]CollisionCheckDebug)

	// 以中止裕度（基于减速的预期裕度）重新校验已批准路径的安全性
	// 返回：是否安全、碰撞前最后的自车位姿（不安全时有效）
	IsApprovedPathSafe(
		path LaneChangePath,
		currentLanelets []ILanelet,
		egoPose Pose, egoV float64,
		objects []*PerceivedObject,
		checkDistance float64,
	) (bool, Pose)

	// 从碰撞前位姿出发计算返回原车道的中止几何
	GetAbortPaths(
		path LaneChangePath,
		currentLanelets []ILanelet,
		egoPoseBeforeCollision Pose, egoPose Pose, egoV float64,
	) (*LaneChangePath, bool)

	// 判断自车是否仍在原车道边界内
	IsEgoWithinOriginalLane(currentLanelets []ILanelet, egoPose Pose) bool
}
