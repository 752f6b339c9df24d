package mooscomms

import (
	"errors"
	"fmt"

	"github.com/mooscomms/go-mooscomms/internal/core/connmgr"
	"github.com/mooscomms/go-mooscomms/pkg/moostime"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// ============================================================================
//                              发布
// ============================================================================

// NotifyOption 发布选项
type NotifyOption func(*notifyOptions)

type notifyOptions struct {
	auxSource string
	time      float64
}

// WithAuxSource 设置附加来源信息
func WithAuxSource(aux string) NotifyOption {
	return func(o *notifyOptions) {
		o.auxSource = aux
	}
}

// WithTime 指定消息时间戳（MOOS 秒）；负值表示使用当前时间
func WithTime(t float64) NotifyOption {
	return func(o *notifyOptions) {
		o.time = t
	}
}

// Notify 发布一个变量
//
// value 可以是浮点数、整数、string 或 []byte（二进制负载）。
func (c *Client) Notify(name string, value any, opts ...NotifyOption) error {
	switch v := value.(type) {
	case float64:
		return c.NotifyDouble(name, v, opts...)
	case float32:
		return c.NotifyDouble(name, float64(v), opts...)
	case int:
		return c.NotifyDouble(name, float64(v), opts...)
	case int32:
		return c.NotifyDouble(name, float64(v), opts...)
	case int64:
		return c.NotifyDouble(name, float64(v), opts...)
	case uint:
		return c.NotifyDouble(name, float64(v), opts...)
	case uint32:
		return c.NotifyDouble(name, float64(v), opts...)
	case uint64:
		return c.NotifyDouble(name, float64(v), opts...)
	case string:
		return c.NotifyString(name, v, opts...)
	case []byte:
		return c.NotifyBinary(name, v, opts...)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

// NotifyDouble 发布 double 变量
func (c *Client) NotifyDouble(name string, value float64, opts ...NotifyOption) error {
	return c.notify(types.MessageFields{DataType: types.DataDouble, Key: name, Double: value}, opts)
}

// NotifyString 发布字符串变量
func (c *Client) NotifyString(name, value string, opts ...NotifyOption) error {
	return c.notify(types.MessageFields{DataType: types.DataString, Key: name, Data: value}, opts)
}

// NotifyBinary 发布二进制变量（拷贝 data）
func (c *Client) NotifyBinary(name string, data []byte, opts ...NotifyOption) error {
	return c.notify(types.MessageFields{DataType: types.DataBinary, Key: name, Data: string(data)}, opts)
}

func (c *Client) notify(f types.MessageFields, opts []NotifyOption) error {
	o := notifyOptions{time: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.time < 0 {
		o.time = moostime.Now()
	}
	f.Type = types.MsgNotify
	f.Time = o.time
	f.SourceAux = o.auxSource
	return c.Post(types.NewMessage(f))
}

// Post 发布一条已构造好的消息
//
// 消息进入发件箱后立即返回；断线期间消息保留在发件箱中，重连后发送。
// Run 之前返回 ErrNotRunning，Close 之后返回 ErrClosed。
func (c *Client) Post(m *Message) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	if err := c.mgr.Post(m); err != nil {
		if errors.Is(err, connmgr.ErrManagerClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// ============================================================================
//                              收件
// ============================================================================

// Fetch 取走收件箱中的全部邮件（按到达顺序）
//
// 没有邮件时返回空切片。路由到活动队列的消息不会出现在这里。
func (c *Client) Fetch() []*Message {
	msgs := c.boxes.Inbox.DrainAll()
	if msgs == nil {
		return []*Message{}
	}
	return msgs
}

// SetOnConnect 设置连接建立回调；每次（重新）连接成功后调用
func (c *Client) SetOnConnect(fn OnConnectFunc) {
	c.mgr.SetOnConnect(fn)
}

// SetOnMail 设置新邮件回调
func (c *Client) SetOnMail(fn OnMailFunc) {
	c.mgr.SetOnMail(fn)
}

// ============================================================================
//                              订阅登记
// ============================================================================

// Register 订阅变量 name
//
// interval 为服务端推送的最小间隔（秒），0 表示每次变化都推送。
// 可以在 Run 之前调用；登记会在每次连接建立时重新发送。
func (c *Client) Register(name string, interval float64) error {
	return c.register(types.Registration{VarPattern: name, Interval: interval})
}

// RegisterWildcard 按变量模式和应用模式订阅，模式支持 '*' 和 '?'
func (c *Client) RegisterWildcard(varPattern, appPattern string, interval float64) error {
	return c.register(types.Registration{
		VarPattern: varPattern,
		AppPattern: appPattern,
		Interval:   interval,
		Wildcard:   true,
	})
}

func (c *Client) register(reg types.Registration) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.mgr.Register(reg); err != nil {
		if errors.Is(err, connmgr.ErrManagerClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Unregister 取消订阅；未订阅时返回 false
func (c *Client) Unregister(name string) (bool, error) {
	return c.unregister(types.Registration{VarPattern: name})
}

// UnregisterWildcard 取消通配订阅；未订阅时返回 false
func (c *Client) UnregisterWildcard(varPattern, appPattern string) (bool, error) {
	return c.unregister(types.Registration{VarPattern: varPattern, AppPattern: appPattern, Wildcard: true})
}

func (c *Client) unregister(reg types.Registration) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	ok, err := c.mgr.Unregister(reg)
	if errors.Is(err, connmgr.ErrManagerClosed) {
		err = ErrClosed
	}
	return ok, err
}

// IsRegisteredFor 是否订阅了变量 name（精确登记或通配登记命中）
func (c *Client) IsRegisteredFor(name string) bool {
	return c.reg.IsRegisteredFor(name)
}

// Registered 已登记的变量（或变量模式）列表
func (c *Client) Registered() []string {
	return c.reg.Registered()
}

// Published 本客户端发布过的变量名列表
func (c *Client) Published() []string {
	return c.reg.Published()
}
