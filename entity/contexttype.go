package entity

import (
	"github.com/tsinghua-fib-lab/avoidance-lc-go/clock"
)

type ITaskContext interface {
	Clock() *clock.Clock
	RouteHandler() IRouteHandler
}
