package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load 解析YAML配置
// 功能：从字节流中严格解析配置，填充默认值并进行一致性检查
// 参数：data-YAML字节流
// 返回：配置实例与错误
// 说明：采用UnmarshalStrict，配置文件中出现未知字段视为错误
func Load(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("config: bad yaml: %w", err)
	}
	c.fillDefaults()
	if err := c.check(); err != nil {
		return c, err
	}
	return c, nil
}

// LoadFromFile 从文件中解析YAML配置
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}

// fillDefaults 填充缺省参数
func (c *Config) fillDefaults() {
	p := &c.Planner
	if p.LaneSource == "" {
		p.LaneSource = LaneSourceRoute
	}
	if p.Common.Vehicle.Width == 0 {
		p.Common.Vehicle.Width = 1.8
	}
	if p.Common.Vehicle.Length == 0 {
		p.Common.Vehicle.Length = 4.5
	}
	if p.Common.ForwardPathLength == 0 {
		p.Common.ForwardPathLength = 100
	}
	if p.Common.BackwardPathLength == 0 {
		p.Common.BackwardPathLength = 30
	}
	if p.Common.MinimumLaneChangingLength == 0 {
		p.Common.MinimumLaneChangingLength = 12
	}
	if p.Common.ExpectedFrontDeceleration == 0 {
		p.Common.ExpectedFrontDeceleration = -1.0
	}
	if p.Common.ExpectedRearDeceleration == 0 {
		p.Common.ExpectedRearDeceleration = -1.0
	}
	if p.Common.ExpectedFrontDecelerationForAbort == 0 {
		p.Common.ExpectedFrontDecelerationForAbort = -2.0
	}
	if p.Common.ExpectedRearDecelerationForAbort == 0 {
		p.Common.ExpectedRearDecelerationForAbort = -2.5
	}
	if p.Avoidance.ResampleIntervalForPlanning == 0 {
		p.Avoidance.ResampleIntervalForPlanning = 0.3
	}
	if p.Avoidance.LateralPassableSafetyBuffer == 0 {
		p.Avoidance.LateralPassableSafetyBuffer = 0.5
	}
	if p.Avoidance.MovingSpeedThreshold == 0 {
		p.Avoidance.MovingSpeedThreshold = 1.0
	}
	if p.Avoidance.MovingTimeThreshold == 0 {
		p.Avoidance.MovingTimeThreshold = 1.0
	}
	if p.Avoidance.ObjectLastSeenThreshold == 0 {
		p.Avoidance.ObjectLastSeenThreshold = 2.0
	}
	if p.Avoidance.EnvelopeBufferMargin == 0 {
		p.Avoidance.EnvelopeBufferMargin = 0.3
	}
	if p.LaneChange.PrepareDuration == 0 {
		p.LaneChange.PrepareDuration = 4.0
	}
	if p.LaneChange.LaneChangingDuration == 0 {
		p.LaneChange.LaneChangingDuration = 8.0
	}
	if p.LaneChange.LaneChangeLaneLength == 0 {
		p.LaneChange.LaneChangeLaneLength = 200
	}
	if p.LaneChange.CheckDistance == 0 {
		p.LaneChange.CheckDistance = 100
	}
	if p.LaneChange.MaximumDeceleration == 0 {
		p.LaneChange.MaximumDeceleration = 1.0
	}
	if p.LaneChange.AccelerationResolution == 0 {
		p.LaneChange.AccelerationResolution = 0.25
	}
	if p.LaneChange.PredictionTimeHorizon == 0 {
		p.LaneChange.PredictionTimeHorizon = 5.0
	}
	if p.LaneChange.PredictionTimeResolution == 0 {
		p.LaneChange.PredictionTimeResolution = 0.5
	}
	if p.LaneChange.LateralCollisionMargin == 0 {
		p.LaneChange.LateralCollisionMargin = 1.0
	}
	if p.LaneChange.LongitudinalCollisionMargin == 0 {
		p.LaneChange.LongitudinalCollisionMargin = 3.0
	}
	if p.LaneChange.AbortLaneChangeDuration == 0 {
		p.LaneChange.AbortLaneChangeDuration = 5.0
	}
	if p.AvoidanceByLC.ExecuteObjectNum == 0 {
		p.AvoidanceByLC.ExecuteObjectNum = 1
	}
	if p.AvoidanceByLC.ExecuteObjectLongitudinalMargin == 0 {
		p.AvoidanceByLC.ExecuteObjectLongitudinalMargin = 20
	}
}

// check 配置一致性检查
func (c *Config) check() error {
	if c.Control.Step.Interval <= 0 {
		return fmt.Errorf("config: control.step.interval must be positive, got %v", c.Control.Step.Interval)
	}
	if c.Control.Step.Total < 0 {
		return fmt.Errorf("config: control.step.total must be non-negative, got %v", c.Control.Step.Total)
	}
	p := &c.Planner
	if p.LaneSource != LaneSourceRoute && p.LaneSource != LaneSourcePath {
		return fmt.Errorf("config: planner.lane_source must be %q or %q, got %q", LaneSourceRoute, LaneSourcePath, p.LaneSource)
	}
	if p.Common.ExpectedFrontDeceleration > 0 || p.Common.ExpectedRearDeceleration > 0 {
		return fmt.Errorf("config: expected decelerations must be non-positive")
	}
	if p.LaneChange.MaximumDeceleration < 0 || p.LaneChange.AccelerationResolution <= 0 {
		return fmt.Errorf("config: lane_change deceleration sampling params invalid")
	}
	if p.AvoidanceByLC.ExecuteObjectNum < 1 {
		return fmt.Errorf("config: avoidance_by_lc.execute_object_num must be >= 1, got %d", p.AvoidanceByLC.ExecuteObjectNum)
	}
	return nil
}
