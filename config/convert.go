package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。示例 JSON:
//
//	{
//	  "connection": {"poll_interval": "5ms", "retry_backoff": "exponential"},
//	  "mailbox": {"overflow_policy": "block"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "default": 默认值，不做修改
//   - "realtime": 更短的轮询和心跳周期，适合同机部署
//   - "lowpower": 更长的轮询周期，指数退避重连
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "", "default":
		return nil
	case "realtime":
		cfg.Connection.PollInterval = Duration(time.Millisecond)
		cfg.Connection.HeartbeatInterval = Duration(250 * time.Millisecond)
		cfg.Connection.RetryInterval = Duration(250 * time.Millisecond)
		return nil
	case "lowpower":
		cfg.Connection.PollInterval = Duration(50 * time.Millisecond)
		cfg.Connection.HeartbeatInterval = Duration(5 * time.Second)
		cfg.Connection.RetryBackoff = BackoffExponential
		cfg.Connection.MaxRetryInterval = Duration(30 * time.Second)
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}

// CloneConfig 克隆配置（所有子配置均为值类型）
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}
