// Package lib 包含与架构组件无关的基础设施工具库
//
//   - log: 基于 log/slog 的组件日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - types/: 公共类型定义（最底层，不依赖其他内部包）
//   - moostime/: 进程级 MOOS 时间
//   - binding/: 面向脚本绑定层的布尔接口
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import "github.com/mooscomms/go-mooscomms/pkg/lib/log"
//
//	var logger = log.Logger("core/connmgr")
package lib
