package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 说明：如果指定了缓存路径则直接返回，否则使用默认命名规则{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 指定所有输入数据的配置项
type Input struct {
	URI string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	Map InputPath `yaml:"map"`           // 地图
}

// ControlStep 指定规划时间范围和周期间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 规划循环控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
}

// VehicleParams 自车参数
type VehicleParams struct {
	Width  float64 `yaml:"width"`  // 车宽（米）
	Length float64 `yaml:"length"` // 车长（米）
}

// CommonParams 规划公共参数
type CommonParams struct {
	Vehicle                           VehicleParams `yaml:"vehicle"`
	ForwardPathLength                 float64       `yaml:"forward_path_length"`                   // 前向路径长度（米）
	BackwardPathLength                float64       `yaml:"backward_path_length"`                  // 后向路径长度（米）
	MinimumLaneChangingLength         float64       `yaml:"minimum_lane_changing_length"`          // 最小变道长度（米）
	ExpectedFrontDeceleration         float64       `yaml:"expected_front_deceleration"`           // 前车预期减速度（m/s^2，负值）
	ExpectedRearDeceleration          float64       `yaml:"expected_rear_deceleration"`            // 后车预期减速度（m/s^2，负值）
	ExpectedFrontDecelerationForAbort float64       `yaml:"expected_front_deceleration_for_abort"` // 中止校验用前车预期减速度
	ExpectedRearDecelerationForAbort  float64       `yaml:"expected_rear_deceleration_for_abort"`  // 中止校验用后车预期减速度
}

// AvoidanceParams 避让目标分类参数
type AvoidanceParams struct {
	ResampleIntervalForPlanning  float64 `yaml:"resample_interval_for_planning"`   // 参考路径重采样间隔（米）
	DetectionAreaLeftExpandDist  float64 `yaml:"detection_area_left_expand_dist"`  // 检测走廊左侧扩展距离（米）
	DetectionAreaRightExpandDist float64 `yaml:"detection_area_right_expand_dist"` // 检测走廊右侧扩展距离（米）
	LateralPassableSafetyBuffer  float64 `yaml:"lateral_passable_safety_buffer"`   // 横向可通过安全缓冲（米）
	MovingSpeedThreshold         float64 `yaml:"moving_speed_threshold"`           // 运动判定速度阈值（m/s）
	MovingTimeThreshold          float64 `yaml:"moving_time_threshold"`            // 运动判定持续时间阈值（秒）
	ObjectLastSeenThreshold      float64 `yaml:"object_last_seen_threshold"`       // 检测丢失补偿时限（秒）
	EnvelopeBufferMargin         float64 `yaml:"envelope_buffer_margin"`           // 包络多边形稳定化缓冲（米）
}

// LaneChangeParams 变道几何与安全校验参数
type LaneChangeParams struct {
	PrepareDuration              float64 `yaml:"prepare_duration"`                 // 变道准备时长（秒）
	LaneChangingDuration         float64 `yaml:"lane_changing_duration"`           // 横移段时长（秒）
	LaneChangeLaneLength         float64 `yaml:"lane_change_lane_length"`          // 目标车道走廊前后扩展长度（米）
	CheckDistance                float64 `yaml:"check_distance"`                   // 碰撞检查距离（米）
	LaneChangeFinishJudgeBuffer  float64 `yaml:"lane_change_finish_judge_buffer"`  // 完成判定缓冲距离（米）
	EnableCancelLaneChange       bool    `yaml:"enable_cancel_lane_change"`        // 是否允许取消变道
	EnableAbortLaneChange        bool    `yaml:"enable_abort_lane_change"`         // 是否允许中止变道（返回原车道）
	MaximumDeceleration          float64 `yaml:"maximum_deceleration"`             // 候选采样最大减速度（m/s^2，正值）
	AccelerationResolution       float64 `yaml:"acceleration_resolution"`          // 候选采样加速度分辨率（m/s^2，正值）
	PredictionTimeHorizon        float64 `yaml:"prediction_time_horizon"`          // 碰撞检查预测时域（秒）
	PredictionTimeResolution     float64 `yaml:"prediction_time_resolution"`       // 碰撞检查时间分辨率（秒）
	LateralCollisionMargin       float64 `yaml:"lateral_collision_margin"`         // 碰撞检查横向裕度（米）
	LongitudinalCollisionMargin  float64 `yaml:"longitudinal_collision_margin"`    // 碰撞检查纵向裕度（米）
	AbortLaneChangeDuration      float64 `yaml:"abort_lane_change_duration"`       // 中止几何横移时长（秒）
	DrivableAreaLeftBoundOffset  float64 `yaml:"drivable_area_left_bound_offset"`  // 可行驶区域左边界扩展（米）
	DrivableAreaRightBoundOffset float64 `yaml:"drivable_area_right_bound_offset"` // 可行驶区域右边界扩展（米）
}

// 车道来源策略（见design notes：运行时选择，替代编译期架构开关）
const (
	LaneSourceRoute = "route" // 从路由查询自车最近车道并扩展
	LaneSourcePath  = "path"  // 从上游参考路径的车道ID推导
)

// AvoidanceByLCParams 避让变道执行门限参数
type AvoidanceByLCParams struct {
	ExecuteObjectNum                            int32   `yaml:"execute_object_num"`                                 // 执行所需最小目标数
	ExecuteObjectLongitudinalMargin             float64 `yaml:"execute_object_longitudinal_margin"`                 // 最近目标最小纵向距离（米）
	ExecuteOnlyWhenLaneChangeFinishBeforeObject bool    `yaml:"execute_only_when_lane_change_finish_before_object"` // 仅当变道能在目标前完成时执行
}

// Planner 行为决策模块配置
type Planner struct {
	LaneSource    string              `yaml:"lane_source"` // 车道来源策略：route/path
	Common        CommonParams        `yaml:"common"`
	Avoidance     AvoidanceParams     `yaml:"avoidance"`
	LaneChange    LaneChangeParams    `yaml:"lane_change"`
	AvoidanceByLC AvoidanceByLCParams `yaml:"avoidance_by_lc"`
}

// ScenarioObject 场景回放中的动态目标
type ScenarioObject struct {
	TrackID string  `yaml:"track_id"`         // 跟踪ID
	Class   string  `yaml:"class,omitempty"`  // 分类（默认car）
	LaneID  int32   `yaml:"lane_id"`          // 初始所在车道
	S       float64 `yaml:"s"`                // 初始弧长位置（米）
	V       float64 `yaml:"v"`                // 速度（m/s，沿车道匀速）
	Length  float64 `yaml:"length,omitempty"` // 目标长度（米）
	Width   float64 `yaml:"width,omitempty"`  // 目标宽度（米）
}

// Scenario 场景回放配置
// 功能：定义独立运行模式下的自车初始状态与目标列表
type Scenario struct {
	EgoLaneID        int32            `yaml:"ego_lane_id"`         // 自车初始车道
	EgoS             float64          `yaml:"ego_s"`               // 自车初始弧长位置（米）
	EgoV             float64          `yaml:"ego_v"`               // 自车速度（m/s）
	Objects          []ScenarioObject `yaml:"objects"`             // 目标列表
	AutoApproveAfter int32            `yaml:"auto_approve_after"`  // 候选发布后自动批准的等待周期数（<0表示不批准）
}

// Config YAML配置文件的根结构
type Config struct {
	Input    Input    `yaml:"input"`    // 输入
	Control  Control  `yaml:"control"`  // 规划过程控制
	Planner  Planner  `yaml:"planner"`  // 行为决策模块参数
	Scenario Scenario `yaml:"scenario"` // 场景回放
}
