package config

// MetricsConfig 流量统计配置
type MetricsConfig struct {
	// Enabled 是否启用速率统计和 Prometheus 指标
	// 默认值: true
	Enabled bool `json:"enabled"`
}

// DefaultMetricsConfig 返回默认的统计配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true}
}

// Validate 验证统计配置
func (c *MetricsConfig) Validate() error {
	return nil
}
