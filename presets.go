package mooscomms

import "github.com/mooscomms/go-mooscomms/config"

// 预设名称
const (
	// PresetNameDefault 默认配置
	PresetNameDefault = "default"

	// PresetNameRealtime 同机部署，更短的轮询和心跳周期
	PresetNameRealtime = "realtime"

	// PresetNameLowPower 更长的轮询周期，指数退避重连
	PresetNameLowPower = "lowpower"
)

// GetConfigByPreset 根据预设名称获取配置
//
// 如果名称未知，返回默认配置。
//
// 示例：
//
//	cfg := mooscomms.GetConfigByPreset("realtime")
func GetConfigByPreset(name string) *config.Config {
	cfg := config.NewConfig()
	if err := config.ApplyPreset(cfg, name); err != nil {
		return config.NewConfig()
	}
	return cfg
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *config.Config {
	return config.NewConfig()
}
