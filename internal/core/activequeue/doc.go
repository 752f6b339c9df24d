// Package activequeue 实现活动队列路由器
//
// 活动队列是一个具名的回调分发单元：它拥有一个待处理消息序列、一个专属 worker
// goroutine 和一个回调。主题（变量名）通过路由指向队列，多对一。
//
// # 并发模型
//
// 队列表、每个队列的待处理序列和主题路由表由 Router 的同一把锁保护。
// worker 在锁外调用回调，因此慢回调只阻塞自己的队列。
//
// # 删除
//
// RemoveQueue 先通知 worker 停止并等待它退出，再删除队列条目：
// 返回之后不会再有该队列的回调被调用。不能在队列自己的回调中同步删除该队列，
// 需要时应在新的 goroutine 中调用。
package activequeue
