// Package types 定义 mooscomms 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
//
// # 文件组织
//
//   - message.go      - Message, MsgType, DataType
//   - registration.go - Registration
//   - state.go        - ConnState
//   - callback.go     - 回调签名与 SafeCall
//   - errors.go       - 公共错误与 CallbackError
//
// # 不可变性
//
// Message 构造后不可变。需要修改字段时使用 WithSource / WithTime / AsBinary，
// 它们返回新副本，原消息不受影响。
package types
