package planner

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
	"github.com/tsinghua-fib-lab/avoidance-lc-go/utils/config"

	"git.fiblab.net/general/common/v2/geometry"
)

// registeredObject 跨周期登记的目标
// 功能：保存目标最近的感知状态与稳定化包络，支撑检测丢失补偿
type registeredObject struct {
	object   entity.PerceivedObject // 最近一次的感知状态
	envelope []geometry.Point       // 稳定化包络多边形
	moveTime float64                // 持续运动时间（秒）
	stopTime float64                // 持续静止时间（秒）
	lastSeen float64                // 最近一次被感知到的时刻（秒）
}

// objectHistory 目标登记表
// 功能：以稳定跟踪ID为键维护目标历史，稳定包络多边形并在短暂检测丢失时补偿
// 说明：模块重新进入时整体清空
type objectHistory struct {
	params config.AvoidanceParams
	data   map[string]*registeredObject
}

func newObjectHistory(params config.AvoidanceParams) *objectHistory {
	return &objectHistory{
		params: params,
		data:   make(map[string]*registeredObject),
	}
}

// update 用当前周期的感知结果更新登记表
// 功能：更新运动/静止计时与稳定化包络，登记新目标
// 参数：objects-当前周期感知目标，t-当前时刻，dt-周期间隔
// 算法说明：
// 1. 速度达到moving_speed_threshold时累计运动时间并清零静止时间，反之亦然
// 2. 新足迹仍被旧包络覆盖时沿用旧包络，否则按足迹的有向包围盒加缓冲重建
func (h *objectHistory) update(objects []*entity.PerceivedObject, t, dt float64) {
	for _, obj := range objects {
		r, ok := h.data[obj.TrackID]
		if !ok {
			r = &registeredObject{
				envelope: createEnvelope(obj, h.params.EnvelopeBufferMargin),
			}
			h.data[obj.TrackID] = r
		}
		if obj.V >= h.params.MovingSpeedThreshold {
			r.moveTime += dt
			r.stopTime = 0
		} else {
			r.stopTime += dt
			r.moveTime = 0
		}
		footprint := obj.Footprint()
		if !polygonCovers(r.envelope, footprint) {
			r.envelope = createEnvelope(obj, h.params.EnvelopeBufferMargin)
		}
		r.object = *obj
		r.lastSeen = t
	}
}

// compensate 检测丢失补偿
// 功能：对本周期未被感知到的登记目标，在时限内以最近状态补偿输出，超时则剔除
// 参数：seen-本周期被感知到的跟踪ID集合，t-当前时刻
// 返回：补偿出的目标列表（最近一次感知状态）
func (h *objectHistory) compensate(seen map[string]bool, t float64) []*entity.PerceivedObject {
	ghosts := make([]*entity.PerceivedObject, 0)
	for id, r := range h.data {
		if seen[id] {
			continue
		}
		if t-r.lastSeen > h.params.ObjectLastSeenThreshold {
			delete(h.data, id)
			continue
		}
		obj := r.object
		ghosts = append(ghosts, &obj)
	}
	return ghosts
}

// get 查询登记目标
func (h *objectHistory) get(trackID string) (*registeredObject, bool) {
	r, ok := h.data[trackID]
	return r, ok
}

// clear 清空登记表
func (h *objectHistory) clear() {
	h.data = make(map[string]*registeredObject)
}

// createEnvelope 构建目标的包络多边形
// 功能：在目标位姿坐标系下取足迹的包围盒并向外扩margin，转换回全局坐标
// 说明：包络相对足迹略有放大，使小幅感知抖动不触发包络重建
func createEnvelope(obj *entity.PerceivedObject, margin float64) []geometry.Point {
	footprint := obj.Footprint()
	cosY, sinY := math.Cos(obj.Pose.Yaw), math.Sin(obj.Pose.Yaw)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range footprint {
		dx, dy := p.X-obj.Pose.Position.X, p.Y-obj.Pose.Position.Y
		lx := cosY*dx + sinY*dy
		ly := -sinY*dx + cosY*dy
		minX, maxX = math.Min(minX, lx), math.Max(maxX, lx)
		minY, maxY = math.Min(minY, ly), math.Max(maxY, ly)
	}
	minX -= margin
	minY -= margin
	maxX += margin
	maxY += margin
	corners := [4][2]float64{{maxX, maxY}, {maxX, minY}, {minX, minY}, {minX, maxY}}
	envelope := make([]geometry.Point, 0, 4)
	for _, c := range corners {
		envelope = append(envelope, geometry.Point{
			X: obj.Pose.Position.X + c[0]*cosY - c[1]*sinY,
			Y: obj.Pose.Position.Y + c[0]*sinY + c[1]*cosY,
		})
	}
	return envelope
}

// polygonCovers 判断凸多边形是否覆盖所有给定点
func polygonCovers(polygon, points []geometry.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	for _, p := range points {
		if !pointInConvexPolygon(polygon, p) {
			return false
		}
	}
	return true
}

// pointInConvexPolygon 判断点是否在凸多边形内（顶点按同一环绕方向排列）
func pointInConvexPolygon(polygon []geometry.Point, p geometry.Point) bool {
	sign := .0
	for i := range polygon {
		a, b := polygon[i], polygon[(i+1)%len(polygon)]
		cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
		} else if sign*cross < 0 {
			return false
		}
	}
	return true
}
