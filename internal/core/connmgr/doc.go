// Package connmgr 实现连接管理器
//
// # 核心功能
//
// 1. 连接与握手
//   - Run 启动唯一的 I/O goroutine，拨号后交换进程名和协议版本
//   - 握手应答携带社区名和服务端时间，用于校正进程级时钟偏差
//
// 2. 重连
//   - 连接失败或断开后按固定间隔或指数退避重试，直到 Close
//   - 每次重连成功后重新发送全部订阅登记，再调用 on_connect
//
// 3. I/O 循环
//   - 取空发件箱，整批编码为一个数据包发送（超过帧上限时对半拆分）
//   - 读取入站数据包：路由到活动队列，否则放入收件箱
//   - 有新邮件时调用 on_mail（关闭过程中不调用）
//   - 空闲时发送心跳，超过 KeepAlive 未收到数据即断开重连
//
// 4. 关闭
//   - Close(nice) 幂等；nice 为 true 时先发送发件箱中剩余的消息
//   - 可以在 on_connect / on_mail 回调中调用
//
// # 回调执行
//
// on_connect 和 on_mail 在独立 goroutine 中执行，I/O 循环最多等待 CallbackTimeout。
// panic 和超时都转换为 *types.CallbackError 交给 ErrorHandler，不会终止 I/O 循环。
package connmgr
