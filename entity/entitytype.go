package entity

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
)

// 方位常量
const (
	LEFT  = 0 // 左侧
	RIGHT = 1 // 右侧
)

// SideName 获取方位名称
// 功能：将LEFT/RIGHT常量转换为可读字符串
func SideName(side int) string {
	if side == LEFT {
		return "left"
	}
	return "right"
}

// OppositeSide 获取相反方位
func OppositeSide(side int) int {
	return 1 - side
}

// Pose 位姿：平面位置+朝向角
type Pose struct {
	Position geometry.Point // 位置坐标
	Yaw      float64        // 朝向角（atan2，弧度）
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{(%.2f,%.2f), yaw=%.3f}", p.Position.X, p.Position.Y, p.Yaw)
}

// LateralDeviation 计算点相对于位姿的横向偏差（左正右负）
// 功能：以位姿朝向为纵轴，计算目标点的横向投影
func (p Pose) LateralDeviation(target geometry.Point) float64 {
	dx := target.X - p.Position.X
	dy := target.Y - p.Position.Y
	return -math.Sin(p.Yaw)*dx + math.Cos(p.Yaw)*dy
}

// LongitudinalDeviation 计算点相对于位姿的纵向偏差（前正后负）
func (p Pose) LongitudinalDeviation(target geometry.Point) float64 {
	dx := target.X - p.Position.X
	dy := target.Y - p.Position.Y
	return math.Cos(p.Yaw)*dx + math.Sin(p.Yaw)*dy
}

// PredictedPath 感知模块给出的目标预测轨迹
// 功能：按固定时间间隔采样的位姿序列，用于碰撞检查
type PredictedPath struct {
	Points     []Pose  // 预测位姿序列
	DT         float64 // 采样时间间隔（秒）
	Confidence float64 // 置信度
}

// PoseAt 获取t时刻的预测位姿（线性插值）
// 说明：超出预测时域时返回最后一个位姿与false
func (p PredictedPath) PoseAt(t float64) (Pose, bool) {
	if len(p.Points) == 0 || p.DT <= 0 {
		return Pose{}, false
	}
	idx := t / p.DT
	i := int(idx)
	if i >= len(p.Points)-1 {
		return p.Points[len(p.Points)-1], i == len(p.Points)-1
	}
	k := idx - float64(i)
	a, b := p.Points[i], p.Points[i+1]
	return Pose{
		Position: geometry.Blend(a.Position, b.Position, k),
		Yaw:      a.Yaw + k*normalizeAngle(b.Yaw-a.Yaw),
	}, true
}

// 目标分类
const (
	ObjectClassCar        = "car"
	ObjectClassTruck      = "truck"
	ObjectClassBus        = "bus"
	ObjectClassMotorcycle = "motorcycle"
	ObjectClassBicycle    = "bicycle"
	ObjectClassPedestrian = "pedestrian"
	ObjectClassUnknown    = "unknown"
)

// PerceivedObject 感知到的动态目标
// 功能：上游感知/跟踪输出的单个目标，带稳定的跟踪ID与预测轨迹
type PerceivedObject struct {
	TrackID        string          // 稳定跟踪ID
	Class          string          // 分类
	Pose           Pose            // 当前位姿
	V              float64         // 速度（m/s）
	Length         float64         // 目标长度（米）
	Width          float64         // 目标宽度（米）
	PredictedPaths []PredictedPath // 预测轨迹列表
}

// Footprint 计算目标的占据多边形（矩形足迹）
// 功能：根据位姿与长宽生成四角多边形，用于包络多边形计算
func (o *PerceivedObject) Footprint() []geometry.Point {
	hl, hw := o.Length/2, o.Width/2
	cosY, sinY := math.Cos(o.Pose.Yaw), math.Sin(o.Pose.Yaw)
	corners := [4][2]float64{{hl, hw}, {hl, -hw}, {-hl, -hw}, {-hl, hw}}
	poly := make([]geometry.Point, 0, 4)
	for _, c := range corners {
		poly = append(poly, geometry.Point{
			X: o.Pose.Position.X + c[0]*cosY - c[1]*sinY,
			Y: o.Pose.Position.Y + c[0]*sinY + c[1]*cosY,
		})
	}
	return poly
}

// MaxConfidencePath 获取置信度最高的预测轨迹
func (o *PerceivedObject) MaxConfidencePath() (PredictedPath, bool) {
	best := -1
	for i, p := range o.PredictedPaths {
		if best < 0 || p.Confidence > o.PredictedPaths[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return PredictedPath{}, false
	}
	return o.PredictedPaths[best], true
}

// ObjectData 单周期内目标的避让几何数据
// 功能：记录目标相对参考路径的几何量与避让判定结果，每周期重新推导
type ObjectData struct {
	Object *PerceivedObject // 源目标引用

	Envelope     []geometry.Point // 包络多边形（跨周期稳定的足迹）
	Centroid     geometry.Point   // 包络质心
	Longitudinal float64          // 自车沿参考路径到最近包络点的弧长
	Lateral      float64          // 相对参考路径的横向偏差（左正右负）
	OverhangDist float64          // 最近包络点到参考路径中心线的横向距离
	OverhangPose Pose             // 最近包络点对应的路径位姿

	MoveTime float64 // 持续运动时间估计（秒）
	StopTime float64 // 持续静止时间估计（秒）
	LastSeen float64 // 最近一次被感知到的时刻（秒）

	AvoidRequired bool   // 是否需要避让
	Reason        string // 被排除的原因（仅other_objects使用）
}

// IsOnRight 判断目标是否在参考路径右侧
func (o ObjectData) IsOnRight() bool {
	return o.Lateral < 0
}

// PathPoint 带车道ID标注的路径点
type PathPoint struct {
	Pose    Pose    // 位姿
	V       float64 // 期望速度（m/s）
	LaneIDs []int32 // 所属车道ID列表
}

// PathWithLaneIDs 带车道ID标注的路径
type PathWithLaneIDs struct {
	Points []PathPoint
}

// Empty 判断路径是否为空
func (p PathWithLaneIDs) Empty() bool {
	return len(p.Points) == 0
}

// Clone 深拷贝路径
// 说明：输出合成时需要在不污染缓存路径的前提下修改速度
func (p PathWithLaneIDs) Clone() PathWithLaneIDs {
	points := make([]PathPoint, len(p.Points))
	copy(points, p.Points)
	for i := range points {
		ids := make([]int32, len(p.Points[i].LaneIDs))
		copy(ids, p.Points[i].LaneIDs)
		points[i].LaneIDs = ids
	}
	return PathWithLaneIDs{Points: points}
}

// ShiftLine 横向变换描述
// 功能：标记变道路径中横向偏移的起止位姿
type ShiftLine struct {
	Start Pose // 横移起点
	End   Pose // 横移终点
}

// LaneChangePath 变道路径
// 功能：一次变道机动的完整几何描述，选定后在周期内不可变
type LaneChangePath struct {
	Path           PathWithLaneIDs // 路径几何
	ShiftLine      ShiftLine       // 横移描述
	TargetLanelets []ILanelet      // 目标车道序列
	Length         float64         // 路径累计长度（准备段+横移段）
	Acceleration   float64         // 纵向加速度档位
	IsSafe         bool            // 碰撞安全判定结果（由路径生成器填写）
}

// LateralShift 计算变道的横向偏移量（左正右负）
func (p LaneChangePath) LateralShift() float64 {
	return p.ShiftLine.Start.LateralDeviation(p.ShiftLine.End.Position)
}

// AvoidancePlanningData 单周期避让规划数据快照
// 功能：汇总参考路径、当前车道与目标分类结果，供本周期各阶段使用
// 不变式：TargetObjects始终按纵向距离升序排列
type AvoidancePlanningData struct {
	ReferencePose       Pose            // 参考位姿（自车）
	ReferencePath       PathWithLaneIDs // 重采样后的参考路径
	EgoClosestPathIndex int             // 自车最近路径点索引
	ArclengthFromEgo    []float64       // 以自车为原点的弧长表
	CurrentLanelets     []ILanelet      // 当前车道序列
	TargetObjects       []ObjectData    // 避让目标（纵向距离升序）
	OtherObjects        []ObjectData    // 被排除的目标（带原因）
}

// LaneChangeStatus 变道模块状态
// 功能：跨周期保持的机动状态，每周期由决策状态机更新一次
type LaneChangeStatus struct {
	CurrentLanelets    []ILanelet     // 当前车道序列
	LaneChangeLanelets []ILanelet     // 目标车道序列
	LaneChangePath     LaneChangePath // 选定的变道路径
	IsSafe             bool           // 路径是否碰撞安全
	IsValidPath        bool           // 路径是否几何有效
	StartDistance      float64        // 机动起始时目标车道弧长
	LaneFollowLaneIDs  []int32        // 沿车道行驶的车道ID列表
	LaneChangeLaneIDs  []int32        // 变道目标车道ID列表
}

// ModuleStatus 外层生命周期状态
type ModuleStatus int

const (
	ModuleIdle    ModuleStatus = iota // 空闲
	ModuleRunning                     // 运行中
	ModuleSuccess                     // 成功结束
	ModuleFailure                     // 失败结束
)

func (s ModuleStatus) String() string {
	switch s {
	case ModuleIdle:
		return "IDLE"
	case ModuleRunning:
		return "RUNNING"
	case ModuleSuccess:
		return "SUCCESS"
	case ModuleFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// LaneChangeState 机动子状态
type LaneChangeState int

const (
	LaneChangeNormal LaneChangeState = iota // 正常执行
	LaneChangeCancel                        // 取消（仍在原车道内，可免费回退）
	LaneChangeStop                          // 停车保持（无法取消也无法中止）
	LaneChangeAbort                         // 中止（执行返回原车道的几何）
)

func (s LaneChangeState) String() string {
	switch s {
	case LaneChangeNormal:
		return "NORMAL"
	case LaneChangeCancel:
		return "CANCEL"
	case LaneChangeStop:
		return "STOP"
	case LaneChangeAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// TurnSignal 转向灯指令
type TurnSignal int

const (
	TurnSignalNone  TurnSignal = iota // 无
	TurnSignalLeft                    // 左转向灯
	TurnSignalRight                   // 右转向灯
)

func (s TurnSignal) String() string {
	switch s {
	case TurnSignalLeft:
		return "LEFT"
	case TurnSignalRight:
		return "RIGHT"
	default:
		return "NONE"
	}
}

// CollisionCheckDebug 单目标碰撞检查诊断数据
// 功能：路径生成器对每个目标的检查结论，仅用于外部可视化
type CollisionCheckDebug struct {
	AllowLaneChange  bool    // 是否允许变道
	IsFront          bool    // 目标是否在自车前方
	RelativeDistance float64 // 与自车的相对距离
	FailedReason     string  // 不允许变道的原因
	V                float64 // 目标速度
}

// Snapshot 单周期规划输入快照
// 功能：调用方在每个周期传入的只读环境快照，模块自身状态与之分离
type Snapshot struct {
	EgoPose       Pose               // 自车位姿
	EgoV          float64            // 自车纵向速度（m/s）
	Objects       []*PerceivedObject // 感知目标列表
	PreviousPath  *PathWithLaneIDs   // 上游规划路径
	ReferencePath *PathWithLaneIDs   // 上游参考路径
	T             float64            // 快照时刻（秒）
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
