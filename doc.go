// Package mooscomms 提供异步的 MOOSDB 发布/订阅通信客户端
//
// 客户端与一个 MOOSDB 服务端保持长连接：发布者 goroutine 把消息放入发件箱，
// 唯一的 I/O goroutine 负责发送、接收、断线重连，收到的消息要么进入收件箱
// （通过 Fetch 取走），要么按主题路由到活动队列，由队列专属的 worker 调用回调。
//
// # 快速开始
//
//	c, err := mooscomms.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(true)
//
//	c.SetOnConnect(func() bool {
//	    return c.Register("NAV_X", 0) == nil
//	})
//	if err := c.Run("localhost", 9000, "pLogger"); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = c.Notify("DEPLOY", "true")
//	for _, m := range c.Fetch() {
//	    fmt.Println(m.Trace())
//	}
//
// # 活动队列
//
//	c.AddActiveQueue("nav", func(m *mooscomms.Message) bool {
//	    handle(m)
//	    return true
//	})
//	c.AddMessageRoute("nav", "NAV_X")
//
// 同一队列中的消息按到达顺序在同一个 goroutine 中回调；不同队列互不阻塞。
//
// # 文件组织
//
//	mooscomms/
//	├── client.go   # Client 结构、Run、Close、状态查询
//	├── notify.go   # Notify / Post / Fetch / 登记
//	├── queues.go   # 活动队列与路由
//	├── options.go  # WithXxx 配置选项
//	├── presets.go  # 预设配置
//	├── fx.go       # Fx 组装
//	├── types.go    # 公共类型别名
//	└── errors.go   # 错误定义
//
// # 生命周期
//
// Go 没有析构函数：不再使用的 Client 必须调用 Close，才能保证 I/O goroutine
// 和所有活动队列 worker 都已退出。
package mooscomms
