// Package binding 提供面向脚本语言绑定层的窄接口
//
// 所有操作都返回 bool：可恢复的失败（状态错误、非法登记、参数错误）返回 false，
// 具体原因可以通过 LastError 查询。用户回调中的 panic 和超时不会以返回值体现，
// 而是保存下来，由绑定层通过 TakeCallbackError 取出并转换为宿主语言的异常。
//
//	c, err := binding.New()
//	c.SetOnConnectCallback(func() bool { return c.Register("NAV_X", 0) })
//	c.Run("localhost", 9000, "pScript")
//	...
//	c.Close(true)
package binding

import (
	"context"
	"errors"
	"sync"
	"time"

	mooscomms "github.com/mooscomms/go-mooscomms"
	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("binding")

// Comms 绑定层使用的客户端句柄
type Comms struct {
	client *mooscomms.Client

	mu       sync.Mutex
	lastErr  error
	callback *types.CallbackError
}

// New 创建客户端句柄
func New(opts ...mooscomms.Option) (*Comms, error) {
	c := &Comms{}
	opts = append(opts, mooscomms.WithErrorHandler(c.recordCallbackError))

	client, err := mooscomms.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Client 返回底层客户端
func (c *Comms) Client() *mooscomms.Client {
	return c.client
}

// ============================================================================
//                              错误记录
// ============================================================================

func (c *Comms) ok(op string, err error) bool {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	if err != nil {
		logger.Debug("操作失败", "op", op, "error", err)
		return false
	}
	return true
}

func (c *Comms) recordCallbackError(err error) {
	var ce *types.CallbackError
	if !errors.As(err, &ce) {
		return
	}
	c.mu.Lock()
	c.callback = ce
	c.mu.Unlock()
}

// LastError 最近一次操作的错误；成功时为 nil
func (c *Comms) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// TakeCallbackError 取出并清除最近一次回调错误
func (c *Comms) TakeCallbackError() *types.CallbackError {
	c.mu.Lock()
	defer c.mu.Unlock()
	ce := c.callback
	c.callback = nil
	return ce
}

// ============================================================================
//                              连接
// ============================================================================

// Run 连接服务端
func (c *Comms) Run(server string, port int, identity string) bool {
	return c.ok("run", c.client.Run(server, port, identity))
}

// Close 关闭客户端
func (c *Comms) Close(nice bool) bool {
	return c.ok("close", c.client.Close(nice))
}

// WaitUntilConnected 阻塞至多 timeoutMS 毫秒等待连接
func (c *Comms) WaitUntilConnected(timeoutMS int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	return c.ok("wait_until_connected", c.client.WaitUntilConnected(ctx))
}

// IsConnected 是否已连接
func (c *Comms) IsConnected() bool { return c.client.IsConnected() }

// IsRunning I/O goroutine 是否在运行
func (c *Comms) IsRunning() bool { return c.client.IsRunning() }

// IsAsynchronous 总是 true
func (c *Comms) IsAsynchronous() bool { return c.client.IsAsynchronous() }

// GetMOOSName 进程名
func (c *Comms) GetMOOSName() string { return c.client.Name() }

// GetCommunityName 社区名
func (c *Comms) GetCommunityName() string { return c.client.Community() }

// ============================================================================
//                              发布与订阅
// ============================================================================

func notifyOpts(auxSrc string, t float64) []mooscomms.NotifyOption {
	return []mooscomms.NotifyOption{mooscomms.WithAuxSource(auxSrc), mooscomms.WithTime(t)}
}

// Notify 发布变量；value 可以是数值、string 或 []byte，t < 0 表示当前时间
func (c *Comms) Notify(name string, value any, auxSrc string, t float64) bool {
	return c.ok("notify", c.client.Notify(name, value, notifyOpts(auxSrc, t)...))
}

// NotifyDouble 发布 double 变量
func (c *Comms) NotifyDouble(name string, value float64, auxSrc string, t float64) bool {
	return c.ok("notify", c.client.NotifyDouble(name, value, notifyOpts(auxSrc, t)...))
}

// NotifyString 发布字符串变量
func (c *Comms) NotifyString(name, value, auxSrc string, t float64) bool {
	return c.ok("notify", c.client.NotifyString(name, value, notifyOpts(auxSrc, t)...))
}

// NotifyBinary 发布二进制变量
func (c *Comms) NotifyBinary(name string, data []byte, auxSrc string, t float64) bool {
	return c.ok("notify", c.client.NotifyBinary(name, data, notifyOpts(auxSrc, t)...))
}

// Register 订阅变量
func (c *Comms) Register(name string, interval float64) bool {
	return c.ok("register", c.client.Register(name, interval))
}

// RegisterWildcard 按变量模式和应用模式订阅
func (c *Comms) RegisterWildcard(varPattern, appPattern string, interval float64) bool {
	return c.ok("register", c.client.RegisterWildcard(varPattern, appPattern, interval))
}

// Unregister 取消订阅
func (c *Comms) Unregister(name string) bool {
	found, err := c.client.Unregister(name)
	return c.ok("unregister", err) && found
}

// UnregisterWildcard 取消通配订阅
func (c *Comms) UnregisterWildcard(varPattern, appPattern string) bool {
	found, err := c.client.UnregisterWildcard(varPattern, appPattern)
	return c.ok("unregister", err) && found
}

// Fetch 取走收件箱中的全部邮件
func (c *Comms) Fetch() []*types.Message {
	return c.client.Fetch()
}

// SetOnConnectCallback 设置连接建立回调
func (c *Comms) SetOnConnectCallback(fn func() bool) {
	c.client.SetOnConnect(fn)
}

// SetOnMailCallback 设置新邮件回调
func (c *Comms) SetOnMailCallback(fn func() bool) {
	c.client.SetOnMail(fn)
}

// ============================================================================
//                              活动队列
// ============================================================================

// AddActiveQueue 创建活动队列
func (c *Comms) AddActiveQueue(name string, fn func(*types.Message) bool) bool {
	return c.ok("add_active_queue", c.client.AddActiveQueue(name, fn))
}

// RemoveActiveQueue 删除活动队列
func (c *Comms) RemoveActiveQueue(name string) bool {
	return c.ok("remove_active_queue", c.client.RemoveActiveQueue(name))
}

// HasActiveQueue 活动队列是否存在
func (c *Comms) HasActiveQueue(name string) bool {
	return c.client.HasActiveQueue(name)
}

// AddMessageRouteToActiveQueue 把变量路由到活动队列
func (c *Comms) AddMessageRouteToActiveQueue(queue, topic string) bool {
	return c.ok("add_message_route", c.client.AddMessageRoute(queue, topic))
}

// RemoveMessageRouteToActiveQueue 删除变量到活动队列的路由
func (c *Comms) RemoveMessageRouteToActiveQueue(queue, topic string) bool {
	return c.ok("remove_message_route", c.client.RemoveMessageRoute(queue, topic))
}

// PrintMessageToActiveQueueRouting 返回可读的路由表
func (c *Comms) PrintMessageToActiveQueueRouting() string {
	return c.client.MessageToActiveQueueRouting()
}

// ============================================================================
//                              时间加速下的通信控制
// ============================================================================

// SetCommsControlTimeWarpScaleFactor 设置刷新间隔因子
func (c *Comms) SetCommsControlTimeWarpScaleFactor(f float64) bool {
	return c.ok("set_comms_control_timewarp_scale_factor", c.client.SetCommsControlTimeWarpScaleFactor(f))
}

// GetCommsControlTimeWarpScaleFactor 当前的刷新间隔因子
func (c *Comms) GetCommsControlTimeWarpScaleFactor() float64 {
	return c.client.CommsControlTimeWarpScaleFactor()
}

// DoLocalTimeCorrection 设置是否校正时钟偏差
func (c *Comms) DoLocalTimeCorrection(enabled bool) {
	c.client.DoLocalTimeCorrection(enabled)
}
