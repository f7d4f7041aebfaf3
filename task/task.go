package task

import (
	"flag"
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/clock"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity/lanelet"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/lanechange"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/planner"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/input"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/pathutil"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// 目标预测轨迹参数
const (
	predictionDT      = 0.5  // 预测轨迹采样间隔（秒）
	predictionHorizon = 10.0 // 预测轨迹时域（秒）
)

// scenarioObject 场景回放中的目标状态
type scenarioObject struct {
	config   config.ScenarioObject
	lanelets []entity.ILanelet
	s        float64
}

// Context 规划任务上下文
// 功能：持有时钟与车道管理器，驱动场景回放循环逐周期调用决策模块
type Context struct {
	config config.Config

	clock          *clock.Clock
	laneletManager *lanelet.Manager
	module         *planner.Module

	// 场景状态
	egoLanelets []entity.ILanelet
	egoS        float64
	egoV        float64
	egoPose     entity.Pose
	lastPath    *entity.PathWithLaneIDs
	objects     []*scenarioObject

	candidateCycles int32 // 候选持续发布的周期数，用于自动批准
}

// NewContext 创建规划任务上下文
// 功能：加载地图、初始化车道管理器、路径生成器与决策模块，布置场景
// 参数：c-配置，cacheDir-输入缓存目录
func NewContext(c config.Config, cacheDir string) *Context {
	ctx := &Context{
		config: c,
		clock:  clock.New(c.Control.Step),
	}
	in := input.Init(c, cacheDir)
	ctx.laneletManager = lanelet.NewManager()
	ctx.laneletManager.Init(in.Map.Lanes)

	generator := lanechange.NewGenerator(c.Planner.Common, c.Planner.LaneChange, ctx.laneletManager)
	ctx.module = planner.New(c.Planner, ctx.laneletManager, generator, ctx.clock)

	ctx.setupScenario()
	return ctx
}

// Clock 获取任务时钟
func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

// RouteHandler 获取车道拓扑查询句柄
func (ctx *Context) RouteHandler() entity.IRouteHandler {
	return ctx.laneletManager
}

// Module 获取决策模块
func (ctx *Context) Module() *planner.Module {
	return ctx.module
}

// setupScenario 按配置布置场景
// 功能：初始化自车车道序列与位置，布置各动态目标
func (ctx *Context) setupScenario() {
	s := ctx.config.Scenario
	egoLanelet := ctx.laneletManager.Get(s.EgoLaneID)
	ctx.egoV = s.EgoV
	anchorPose := entity.Pose{
		Position: egoLanelet.GetPositionByS(s.EgoS),
		Yaw:      egoLanelet.GetDirectionByS(s.EgoS),
	}
	ctx.egoLanelets = ctx.laneletManager.GetLaneletSequence(egoLanelet, anchorPose,
		ctx.config.Planner.Common.BackwardPathLength, ctx.config.Planner.Common.ForwardPathLength)
	ctx.egoPose = anchorPose
	// 序列起点到自车的弧长
	ctx.egoS = ctx.laneletManager.GetArcCoordinates(ctx.egoLanelets, anchorPose).Length

	for _, oc := range s.Objects {
		l := ctx.laneletManager.Get(oc.LaneID)
		pose := entity.Pose{Position: l.GetPositionByS(oc.S), Yaw: l.GetDirectionByS(oc.S)}
		seq := ctx.laneletManager.GetLaneletSequence(l, pose, 0, predictionHorizon*math.Max(oc.V, 1))
		ctx.objects = append(ctx.objects, &scenarioObject{
			config:   oc,
			lanelets: seq,
			s:        ctx.laneletManager.GetArcCoordinates(seq, pose).Length,
		})
	}
}

// Run 运行规划循环
// 功能：逐周期构造快照、调用决策模块、推进场景，直到时钟结束或机动终态
func (ctx *Context) Run() {
	log.Infof("start planning loop: step [%d, %d), dt=%.2fs",
		ctx.clock.START_STEP, ctx.clock.END_STEP, ctx.clock.DT)
	for !ctx.clock.Done() {
		if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
			log.Infof("STEP: %d (%s)", ctx.clock.InternalStep, ctx.clock)
		}
		out := ctx.step()
		if out.Status == entity.ModuleSuccess || out.Status == entity.ModuleFailure {
			log.Infof("maneuver resolved with %s at step %d", out.Status, ctx.clock.InternalStep)
			break
		}
		ctx.clock.Step()
	}
	log.Info("planning loop finished")
}

// step 执行单个规划周期
// 功能：构造只读快照，触发决策，按输出推进自车并处理自动批准
func (ctx *Context) step() planner.Output {
	snap := ctx.buildSnapshot()
	out := ctx.module.Tick(snap)

	// 自动批准：候选持续发布auto_approve_after个周期后批准
	if out.Candidate != nil {
		ctx.candidateCycles++
		if ctx.config.Scenario.AutoApproveAfter >= 0 && ctx.candidateCycles > ctx.config.Scenario.AutoApproveAfter {
			log.Infof("auto approving maneuver %s", out.Candidate.ID)
			ctx.module.Approve(out.Candidate.ID)
		}
	} else {
		ctx.candidateCycles = 0
	}

	ctx.advance(out)
	return out
}

// buildSnapshot 构造本周期只读快照
func (ctx *Context) buildSnapshot() entity.Snapshot {
	referencePath := ctx.laneFollowPath()
	prev := referencePath
	if ctx.lastPath != nil {
		prev = *ctx.lastPath
	}
	objects := make([]*entity.PerceivedObject, 0, len(ctx.objects))
	for _, so := range ctx.objects {
		objects = append(objects, so.perceived())
	}
	return entity.Snapshot{
		EgoPose:       ctx.egoPose,
		EgoV:          ctx.egoV,
		Objects:       objects,
		PreviousPath:  &prev,
		ReferencePath: &referencePath,
		T:             ctx.clock.T,
	}
}

// laneFollowPath 构造沿自车车道序列的参考路径
func (ctx *Context) laneFollowPath() entity.PathWithLaneIDs {
	interval := ctx.config.Planner.Avoidance.ResampleIntervalForPlanning * 10
	points := make([]entity.PathPoint, 0)
	walked := .0
	for _, l := range ctx.egoLanelets {
		for s := .0; s < l.Length(); s += interval {
			if walked+s < ctx.egoS-ctx.config.Planner.Common.BackwardPathLength {
				continue
			}
			points = append(points, entity.PathPoint{
				Pose:    entity.Pose{Position: l.GetPositionByS(s), Yaw: l.GetDirectionByS(s)},
				V:       l.MaxV(),
				LaneIDs: []int32{l.ID()},
			})
		}
		walked += l.Length()
	}
	return entity.PathWithLaneIDs{Points: points}
}

// advance 按模块输出推进场景一个周期
// 说明：机动已提交时自车沿输出路径前进，否则沿当前车道序列前进；
// 目标沿所在车道匀速前进
func (ctx *Context) advance(out planner.Output) {
	dt := ctx.clock.DT
	if out.Active && !out.Path.Empty() {
		points := out.Path.Points
		lengths := pathutil.CalcArcLengths(points)
		i := pathutil.FindNearestIndex(points, ctx.egoPose.Position)
		target := lengths[i] + ctx.egoV*dt
		for i < len(points)-1 && lengths[i+1] < target {
			i++
		}
		ctx.egoPose = points[i].Pose
		path := out.Path
		ctx.lastPath = &path
		// 自车车道序列对应横移后可能变化，按位姿重新解析
		if closest, ok := ctx.laneletManager.GetClosestLaneletFromMap(ctx.egoPose); ok {
			ctx.egoLanelets = ctx.laneletManager.GetLaneletSequence(closest, ctx.egoPose,
				ctx.config.Planner.Common.BackwardPathLength, ctx.config.Planner.Common.ForwardPathLength)
			ctx.egoS = ctx.laneletManager.GetArcCoordinates(ctx.egoLanelets, ctx.egoPose).Length
		}
	} else {
		ctx.egoS += ctx.egoV * dt
		if pose, ok := poseAtSequence(ctx.egoLanelets, ctx.egoS); !ok {
			log.Warn("ego reached the end of its lanelet sequence")
			ctx.egoS = sequenceLength(ctx.egoLanelets)
		} else {
			ctx.egoPose = pose
		}
		ctx.lastPath = nil
	}
	for _, so := range ctx.objects {
		so.s += so.config.V * dt
	}
}

// perceived 生成目标的感知表示
// 说明：预测轨迹为沿所在车道的匀速外推
func (so *scenarioObject) perceived() *entity.PerceivedObject {
	pose, _ := poseAtSequence(so.lanelets, so.s)
	length, width := so.config.Length, so.config.Width
	if length == 0 {
		length = 4.5
	}
	if width == 0 {
		width = 1.8
	}
	class := so.config.Class
	if class == "" {
		class = entity.ObjectClassCar
	}
	points := make([]entity.Pose, 0, int(predictionHorizon/predictionDT)+1)
	for t := .0; t <= predictionHorizon; t += predictionDT {
		p, _ := poseAtSequence(so.lanelets, so.s+so.config.V*t)
		points = append(points, p)
	}
	return &entity.PerceivedObject{
		TrackID: so.config.TrackID,
		Class:   class,
		Pose:    pose,
		V:       so.config.V,
		Length:  length,
		Width:   width,
		PredictedPaths: []entity.PredictedPath{{
			Points:     points,
			DT:         predictionDT,
			Confidence: 1.0,
		}},
	}
}

// poseAtSequence 计算车道序列上弧长s处的位姿
// 返回：位姿与s是否在序列范围内
func poseAtSequence(lanelets []entity.ILanelet, s float64) (entity.Pose, bool) {
	if len(lanelets) == 0 {
		return entity.Pose{}, false
	}
	rest := s
	for _, l := range lanelets {
		if rest <= l.Length() {
			return entity.Pose{
				Position: l.GetPositionByS(math.Max(rest, 0)),
				Yaw:      l.GetDirectionByS(math.Max(rest, 0)),
			}, true
		}
		rest -= l.Length()
	}
	last := lanelets[len(lanelets)-1]
	return entity.Pose{
		Position: last.GetPositionByS(last.Length()),
		Yaw:      last.GetDirectionByS(last.Length()),
	}, false
}

func sequenceLength(lanelets []entity.ILanelet) float64 {
	total := .0
	for _, l := range lanelets {
		total += l.Length()
	}
	return total
}
