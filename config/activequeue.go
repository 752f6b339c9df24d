package config

import "fmt"

// ActiveQueueConfig 活动队列配置
type ActiveQueueConfig struct {
	// Capacity 每个队列的待处理消息上限，满时丢弃最新消息并计数
	// 默认值: 1024
	Capacity int `json:"capacity"`

	// RegistryCacheSize 已编译订阅模式的缓存大小
	// 默认值: 256
	RegistryCacheSize int `json:"registry_cache_size"`
}

// DefaultActiveQueueConfig 返回默认的活动队列配置
func DefaultActiveQueueConfig() ActiveQueueConfig {
	return ActiveQueueConfig{
		Capacity:          1024,
		RegistryCacheSize: 256,
	}
}

// Validate 验证活动队列配置
func (c *ActiveQueueConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("active_queue.capacity must be positive, got %d", c.Capacity)
	}
	if c.RegistryCacheSize <= 0 {
		return fmt.Errorf("active_queue.registry_cache_size must be positive, got %d", c.RegistryCacheSize)
	}
	return nil
}
