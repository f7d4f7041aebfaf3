package lanelet

import (
	"math"

	"github.com/tsinghua-fib-lab/avoidance-lc-go/entity"
)

// 朝向差在匹配得分中的权重（米/弧度）
const yawPenaltyWeight = 2.0

// laneletMatchScore 计算位姿与车道的匹配得分，越小越匹配
// 说明：以投影点距离为主，朝向差加权计入，避免在平行车道间匹配到逆向车道
func laneletMatchScore(l entity.ILanelet, pose entity.Pose) float64 {
	s := l.ProjectToLanelet(pose.Position)
	onLine := l.GetPositionByS(s)
	dx, dy := pose.Position.X-onLine.X, pose.Position.Y-onLine.Y
	dist := math.Hypot(dx, dy)
	yawDiff := math.Abs(normalizeAngle(pose.Yaw - l.GetDirectionByS(s)))
	return dist + yawPenaltyWeight*yawDiff
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
