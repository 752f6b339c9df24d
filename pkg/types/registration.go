package types

import "strings"

// Registration 一条订阅登记
//
// 普通登记只有 VarPattern（精确变量名）；通配登记同时给出变量模式和应用模式，
// 模式支持 '*' 和 '?'。
type Registration struct {
	// VarPattern 变量名或变量名模式
	VarPattern string

	// AppPattern 发布者应用名模式，空串等价于 "*"
	AppPattern string

	// Interval 服务端推送的最小间隔（秒），0 表示每次变化都推送
	Interval float64

	// Wildcard 是否为通配登记
	Wildcard bool
}

// ID 登记的唯一标识
func (r Registration) ID() string {
	if !r.Wildcard {
		return r.VarPattern
	}
	return r.VarPattern + "|" + r.appPattern()
}

func (r Registration) appPattern() string {
	if r.AppPattern == "" {
		return "*"
	}
	return r.AppPattern
}

// App 返回规范化后的应用模式
func (r Registration) App() string {
	return r.appPattern()
}

// HasWildcards 变量模式中是否含通配符
func HasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}
