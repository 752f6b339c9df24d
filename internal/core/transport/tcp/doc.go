// Package tcp 实现 MOOS 通信的 TCP 传输层
//
// 一个 Conn 承载一条到 MOOSDB 的长连接，收发长度前缀帧（见 internal/core/codec）。
// 读取由连接管理器的专属读 goroutine 完成，写入由 I/O goroutine 完成，
// 写入在 Conn 内部互斥，可以并发调用。
//
// # 使用示例
//
//	t := tcp.NewTransport(tcp.DefaultConfig())
//	conn, err := t.Dial(ctx, tcp.NewAddress("localhost", 9000))
//	n, err := conn.WritePacket(msgs)
//	msgs, n, err := conn.ReadPacket()
package tcp
