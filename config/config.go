// Package config 提供 mooscomms 客户端的统一配置
//
// 本包采用与组件对应的分节配置：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载（FromJSON / LoadFile）
//   - 支持预设配置（default / realtime / lowpower）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Connection.PollInterval = config.Duration(5 * time.Millisecond)
//
//	cfg, err := config.LoadFile("comms.json")
package config

// Config 是 mooscomms 客户端的完整配置结构
//
// 配置按照功能模块组织：
//   - Connection: 连接、重连、轮询和回调
//   - Mailbox: 发件箱与收件箱
//   - ActiveQueue: 活动队列
//   - Time: 时钟校正和时间加速下的通信控制
//   - Metrics: 流量统计
type Config struct {
	// Connection 连接配置
	Connection ConnectionConfig `json:"connection"`

	// Mailbox 邮箱配置
	Mailbox MailboxConfig `json:"mailbox"`

	// ActiveQueue 活动队列配置
	ActiveQueue ActiveQueueConfig `json:"active_queue"`

	// Time 时间配置
	Time TimeConfig `json:"time"`

	// Metrics 统计配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Connection:  DefaultConnectionConfig(),
		Mailbox:     DefaultMailboxConfig(),
		ActiveQueue: DefaultActiveQueueConfig(),
		Time:        DefaultTimeConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Mailbox.Validate(); err != nil {
		return err
	}
	if err := c.ActiveQueue.Validate(); err != nil {
		return err
	}
	if err := c.Time.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
