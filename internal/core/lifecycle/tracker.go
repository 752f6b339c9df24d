// Package lifecycle 维护客户端的连接状态机
//
// 状态只由连接管理器推进，其它组件通过原子读取观察它，
// 或通过 WaitFor 等待某个状态出现：
//
//	Disconnected ──> Connecting ──> Connected
//	      │              ▲  │           │
//	      │              └──┼───────────┘ (断线重连)
//	      ▼                 ▼
//	   Closing ─────────> Closed
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mooscomms/go-mooscomms/pkg/lib/log"
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

var logger = log.Logger("core/lifecycle")

var (
	// ErrInvalidTransition 非法的状态转换
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

	// ErrUnreachable 等待的状态已不可能出现（已关闭）
	ErrUnreachable = errors.New("lifecycle: state unreachable after close")
)

// ============================================================================
//                              转换表
// ============================================================================

var transitions = map[types.ConnState][]types.ConnState{
	types.StateDisconnected: {types.StateConnecting, types.StateClosing},
	types.StateConnecting:   {types.StateConnected, types.StateDisconnected, types.StateClosing},
	types.StateConnected:    {types.StateConnecting, types.StateDisconnected, types.StateClosing},
	types.StateClosing:      {types.StateClosed},
	types.StateClosed:       nil,
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to types.ConnState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ============================================================================
//                              Tracker
// ============================================================================

// Tracker 连接状态追踪器
type Tracker struct {
	state atomic.Int32

	mu sync.Mutex
	// changed 每次转换时关闭并替换，用于唤醒 WaitFor
	changed  chan struct{}
	onChange []func(old, new types.ConnState)
}

// NewTracker 创建追踪器，初始状态为 Disconnected
func NewTracker() *Tracker {
	t := &Tracker{changed: make(chan struct{})}
	t.state.Store(int32(types.StateDisconnected))
	return t
}

// State 当前状态（原子读）
func (t *Tracker) State() types.ConnState {
	return types.ConnState(t.state.Load())
}

// Is 当前是否为指定状态
func (t *Tracker) Is(s types.ConnState) bool {
	return t.State() == s
}

// Transition 转换到目标状态；转换到当前状态是空操作
func (t *Tracker) Transition(to types.ConnState) error {
	t.mu.Lock()
	from := t.State()
	if from == to {
		t.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	t.state.Store(int32(to))
	close(t.changed)
	t.changed = make(chan struct{})
	callbacks := make([]func(old, new types.ConnState), len(t.onChange))
	copy(callbacks, t.onChange)
	t.mu.Unlock()

	logger.Debug("连接状态变更", "from", from.String(), "to", to.String())

	// 在锁外按注册顺序同步调用
	for _, cb := range callbacks {
		cb(from, to)
	}
	return nil
}

// OnChange 注册状态变更回调，回调在转换的 goroutine 中同步执行
func (t *Tracker) OnChange(fn func(old, new types.ConnState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// WaitFor 阻塞直到进入目标状态或 ctx 结束
//
// 目标不是 Closed 而追踪器已进入 Closed 时返回 ErrUnreachable。
func (t *Tracker) WaitFor(ctx context.Context, target types.ConnState) error {
	for {
		t.mu.Lock()
		cur := t.State()
		ch := t.changed
		t.mu.Unlock()

		if cur == target {
			return nil
		}
		if cur == types.StateClosed {
			return ErrUnreachable
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Changed 返回在下一次状态转换时关闭的 channel
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed
}
