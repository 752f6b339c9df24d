// Package transport 提供传输层的 Fx 模块
//
// 客户端只使用 TCP：tcp 子包实现拨号、监听和分帧连接，
// 本包根据统一配置创建 *tcp.Transport，并在应用停止时关闭它以及它跟踪的所有连接。
//
// # 使用示例
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    transport.Module(),
//	    fx.Invoke(func(t *tcp.Transport) { ... }),
//	)
package transport
