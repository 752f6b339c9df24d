// Package metrics 提供通信流量统计
//
// CommsCounter 用原子计数器记录收发的消息数和字节数，并用 60 秒滑动窗口
// 计算速率。Collector 把这些计数导出为 Prometheus 指标。
package metrics
