package binding

import "github.com/mooscomms/go-mooscomms/pkg/moostime"

// Time 经过服务端偏差校正的 MOOS 时间
func Time(applyWarp bool) float64 {
	return moostime.Time(applyWarp)
}

// LocalTime 本地时间，不应用服务端偏差
func LocalTime(applyWarp bool) float64 {
	return moostime.LocalTime(applyWarp)
}

// SetMOOSTimeWarp 设置进程级时间加速因子
func SetMOOSTimeWarp(warp float64) bool {
	if err := moostime.SetTimeWarp(warp); err != nil {
		logger.Debug("设置时间加速因子失败", "warp", warp, "error", err)
		return false
	}
	return true
}

// GetMOOSTimeWarp 当前的时间加速因子
func GetMOOSTimeWarp() float64 {
	return moostime.TimeWarp()
}

// IsLittleEndian 本机是否为小端字节序
func IsLittleEndian() bool {
	return moostime.IsLittleEndian()
}
