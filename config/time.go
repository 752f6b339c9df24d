package config

import (
	"fmt"
	"math"
)

// TimeConfig 时间配置
type TimeConfig struct {
	// LocalTimeCorrection 连接时根据服务端时间校正本地时钟偏差
	// 默认值: true
	LocalTimeCorrection bool `json:"local_time_correction"`

	// CommsControlTimeWarpScaleFactor 时间加速下的通信控制因子
	//
	// 大于 0 时，两次发件箱刷新至少间隔 factor * warp 毫秒，
	// 使高加速比下的消息成批发送。0 表示不限制。
	// 默认值: 0
	CommsControlTimeWarpScaleFactor float64 `json:"comms_control_timewarp_scale_factor"`
}

// DefaultTimeConfig 返回默认的时间配置
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{
		LocalTimeCorrection: true,
	}
}

// Validate 验证时间配置
func (c *TimeConfig) Validate() error {
	f := c.CommsControlTimeWarpScaleFactor
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("time.comms_control_timewarp_scale_factor must be a non-negative number, got %v", f)
	}
	return nil
}
