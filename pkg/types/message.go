package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
//                              消息类型
// ============================================================================

// MsgType 消息类型（线上为单个字符，与 MOOSDB 协议保持一致）
type MsgType byte

const (
	// MsgNotify 数据通知
	MsgNotify MsgType = 'N'

	// MsgRegister 订阅变量
	MsgRegister MsgType = 'R'

	// MsgUnregister 取消订阅
	MsgUnregister MsgType = 'U'

	// MsgWildcardRegister 通配订阅（变量模式 + 应用模式）
	MsgWildcardRegister MsgType = '*'

	// MsgWildcardUnregister 取消通配订阅
	MsgWildcardUnregister MsgType = '/'

	// MsgConnect 客户端握手请求
	MsgConnect MsgType = 'C'

	// MsgWelcome 服务端握手应答
	MsgWelcome MsgType = 'W'

	// MsgTiming 时钟同步
	MsgTiming MsgType = 'T'

	// MsgPoison 服务端拒绝/踢出
	MsgPoison MsgType = 'K'

	// MsgNull 空消息（心跳）
	MsgNull MsgType = '.'
)

// String 返回类型字符
func (t MsgType) String() string {
	if t == 0 {
		return "?"
	}
	return string(rune(t))
}

// DataType 负载类型
type DataType byte

const (
	// DataDouble 双精度浮点
	DataDouble DataType = 'D'

	// DataString 字符串
	DataString DataType = 'S'

	// DataBinary 二进制数据（可含 0 字节）
	DataBinary DataType = 'B'
)

// String 返回负载类型名
func (d DataType) String() string {
	switch d {
	case DataDouble:
		return "double"
	case DataString:
		return "string"
	case DataBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Message
// ============================================================================

// MessageFields 构造 Message 所需的全部字段
//
// 仅用于构造和编解码；Message 本身构造后不可变。
type MessageFields struct {
	Type      MsgType
	DataType  DataType
	Key       string
	Double    float64
	DoubleAux float64
	// Data 字符串或二进制负载，长度即负载长度
	Data      string
	Time      float64
	Source    string
	SourceAux string
	Community string
}

// Message 一条发布/订阅数据
//
// 构造后不可变，可在 goroutine 间安全共享。负载三选一（double / string / binary），
// 由 DataType 决定哪一个有效。二进制负载使用 Go string 保存，可以包含 0 字节，
// 长度即 len(data)。
type Message struct {
	f MessageFields
}

// NewMessage 从字段构造消息
func NewMessage(f MessageFields) *Message {
	if f.Type == 0 {
		f.Type = MsgNotify
	}
	switch f.DataType {
	case DataDouble:
		f.Data = ""
	case DataString, DataBinary:
		f.Double = 0
	}
	return &Message{f: f}
}

// NewDouble 创建 double 通知
func NewDouble(key string, value, t float64) *Message {
	return NewMessage(MessageFields{Type: MsgNotify, DataType: DataDouble, Key: key, Double: value, Time: t})
}

// NewString 创建字符串通知
func NewString(key, value string, t float64) *Message {
	return NewMessage(MessageFields{Type: MsgNotify, DataType: DataString, Key: key, Data: value, Time: t})
}

// NewBinary 创建二进制通知（拷贝 data）
func NewBinary(key string, data []byte, t float64) *Message {
	return NewMessage(MessageFields{Type: MsgNotify, DataType: DataBinary, Key: key, Data: string(data), Time: t})
}

// Fields 返回字段副本
func (m *Message) Fields() MessageFields {
	return m.f
}

// Validate 检查数据消息的不变量
func (m *Message) Validate() error {
	if m == nil {
		return ErrNilMessage
	}
	if m.f.Type == MsgNotify {
		if m.f.Key == "" {
			return ErrEmptyKey
		}
		switch m.f.DataType {
		case DataDouble, DataString, DataBinary:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidDataType, byte(m.f.DataType))
		}
	}
	return nil
}

// WithSource 返回带有来源信息的副本；已设置的 SourceAux 保留
func (m *Message) WithSource(source, community string) *Message {
	if m.f.Source == source && m.f.Community == community {
		return m
	}
	f := m.f
	f.Source = source
	f.Community = community
	return &Message{f: f}
}

// WithTime 返回指定时间戳的副本
func (m *Message) WithTime(t float64) *Message {
	f := m.f
	f.Time = t
	return &Message{f: f}
}

// AsBinary 返回将字符串负载标记为二进制的副本
func (m *Message) AsBinary() *Message {
	if m.f.DataType != DataString {
		return m
	}
	f := m.f
	f.DataType = DataBinary
	return &Message{f: f}
}

// Type 消息类型
func (m *Message) Type() MsgType { return m.f.Type }

// DataType 负载类型
func (m *Message) DataType() DataType { return m.f.DataType }

// Key 变量名
func (m *Message) Key() string { return m.f.Key }

// Name 变量名（Key 的别名）
func (m *Message) Name() string { return m.f.Key }

// IsName 变量名是否等于 name
func (m *Message) IsName(name string) bool { return m.f.Key == name }

// Time 时间戳（已经过服务端时钟校正的 MOOS 时间）
func (m *Message) Time() float64 { return m.f.Time }

// IsDouble 是否为 double 负载
func (m *Message) IsDouble() bool { return m.f.DataType == DataDouble }

// IsString 是否为字符串负载；二进制负载也以字符串形式保存，同样返回 true
func (m *Message) IsString() bool {
	return m.f.DataType == DataString || m.f.DataType == DataBinary
}

// IsBinary 是否为二进制负载
func (m *Message) IsBinary() bool { return m.f.DataType == DataBinary }

// Double double 负载（非 double 消息返回 0）
func (m *Message) Double() float64 { return m.f.Double }

// DoubleAux 第二个 double 字段
func (m *Message) DoubleAux() float64 { return m.f.DoubleAux }

// StringValue 字符串负载
func (m *Message) StringValue() string { return m.f.Data }

// BinaryData 二进制负载副本
func (m *Message) BinaryData() []byte {
	if m.f.Data == "" {
		return nil
	}
	return []byte(m.f.Data)
}

// BinaryDataSize 二进制负载长度；非二进制消息返回 0
func (m *Message) BinaryDataSize() int {
	if m.f.DataType != DataBinary {
		return 0
	}
	return len(m.f.Data)
}

// Source 发布者进程名
func (m *Message) Source() string { return m.f.Source }

// SourceAux 发布者附加来源信息
func (m *Message) SourceAux() string { return m.f.SourceAux }

// Community 发布者所在的社区
func (m *Message) Community() string { return m.f.Community }

// IsData 是否为数据通知
func (m *Message) IsData() bool { return m.f.Type == MsgNotify }

// Trace 返回单行摘要
func (m *Message) Trace() string {
	var b strings.Builder
	b.WriteString(m.f.Type.String())
	b.WriteByte(' ')
	b.WriteString(m.f.Key)
	b.WriteString(" t=")
	b.WriteString(strconv.FormatFloat(m.f.Time, 'f', 3, 64))
	if m.f.Source != "" {
		b.WriteString(" src=")
		b.WriteString(m.f.Source)
		if m.f.SourceAux != "" {
			b.WriteByte(':')
			b.WriteString(m.f.SourceAux)
		}
	}
	switch m.f.DataType {
	case DataDouble:
		b.WriteString(" D:")
		b.WriteString(strconv.FormatFloat(m.f.Double, 'g', -1, 64))
	case DataString:
		b.WriteString(" S:")
		b.WriteString(m.f.Data)
	case DataBinary:
		fmt.Fprintf(&b, " B:<%d bytes>", len(m.f.Data))
	}
	return b.String()
}

// String 实现 fmt.Stringer
func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Trace()
}
