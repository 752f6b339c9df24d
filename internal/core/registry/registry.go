// Package registry 维护订阅登记和已发布变量集合
//
// 连接管理器用它决定接受哪些入站消息，并在每次重连后重新发送全部登记。
// 通配模式（'*' '?'）编译为正则表达式，缓存在 LRU 中。
package registry

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// DefaultCacheSize 默认模式缓存大小
const DefaultCacheSize = 256

// Registry 订阅登记表
type Registry struct {
	mu        sync.RWMutex
	regs      map[string]types.Registration
	published map[string]struct{}

	patterns *lru.Cache[string, *regexp.Regexp]
}

// New 创建登记表
func New(cacheSize int) *Registry {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	// 只有 size <= 0 时返回错误
	cache, _ := lru.New[string, *regexp.Regexp](cacheSize)
	return &Registry{
		regs:      make(map[string]types.Registration),
		published: make(map[string]struct{}),
		patterns:  cache,
	}
}

// Register 添加或更新一条登记，返回 true 表示是新登记或间隔发生变化
func (r *Registry) Register(reg types.Registration) (bool, error) {
	if reg.VarPattern == "" {
		return false, ErrEmptyPattern
	}
	if reg.Interval < 0 || math.IsNaN(reg.Interval) {
		return false, fmt.Errorf("%w: %v", ErrInvalidInterval, reg.Interval)
	}
	if reg.Wildcard {
		reg.AppPattern = reg.App()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.regs[reg.ID()]
	if ok && prev == reg {
		return false, nil
	}
	r.regs[reg.ID()] = reg
	return true, nil
}

// Unregister 删除一条登记，返回被删除的登记
func (r *Registry) Unregister(reg types.Registration) (types.Registration, bool) {
	if reg.Wildcard {
		reg.AppPattern = reg.App()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.regs[reg.ID()]
	if ok {
		delete(r.regs, reg.ID())
	}
	return prev, ok
}

// IsRegisteredFor 是否存在覆盖该变量名的登记
func (r *Registry) IsRegisteredFor(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.regs[name]; ok && !reg.Wildcard {
		return true
	}
	for _, reg := range r.regs {
		if reg.Wildcard && r.match(reg.VarPattern, name) {
			return true
		}
	}
	return false
}

// Accepts 入站数据消息是否被某条登记覆盖
func (r *Registry) Accepts(m *types.Message) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.regs[m.Key()]; ok && !reg.Wildcard {
		return true
	}
	for _, reg := range r.regs {
		if !reg.Wildcard {
			continue
		}
		if r.match(reg.VarPattern, m.Key()) && r.match(reg.AppPattern, m.Source()) {
			return true
		}
	}
	return false
}

// Registered 返回所有登记的标识（已排序）
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.regs))
	for id := range r.regs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot 返回所有登记（按标识排序），用于重连后重新发送
func (r *Registry) Snapshot() []types.Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]types.Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID() < regs[j].ID() })
	return regs
}

// Len 登记数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

// MarkPublished 记录已发布的变量名
func (r *Registry) MarkPublished(name string) {
	r.mu.RLock()
	_, ok := r.published[name]
	r.mu.RUnlock()
	if ok {
		return
	}

	r.mu.Lock()
	r.published[name] = struct{}{}
	r.mu.Unlock()
}

// Published 返回已发布的变量名（已排序）
func (r *Registry) Published() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.published))
	for name := range r.published {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
//                              模式匹配
// ============================================================================

// Match 判断 s 是否匹配通配模式（'*' 任意串，'?' 单个字符）
func (r *Registry) Match(pattern, s string) bool {
	return r.match(pattern, s)
}

func (r *Registry) match(pattern, s string) bool {
	if !types.HasWildcards(pattern) {
		return pattern == s
	}
	if pattern == "*" {
		return true
	}
	re, ok := r.patterns.Get(pattern)
	if !ok {
		re = compile(pattern)
		r.patterns.Add(pattern, re)
	}
	return re.MatchString(s)
}

func compile(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, c := range pattern {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
