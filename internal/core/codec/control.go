package codec

import (
	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// ============================================================================
//                              控制消息
// ============================================================================

// ProtocolVersion 握手时交换的协议版本
const ProtocolVersion = "mooscomms/1"

// ConnectMessage 客户端握手请求
//
// key = 进程名，data = 协议版本，time = 发送时的本地时间，source_aux = 会话 ID。
func ConnectMessage(identity, session string, localTime float64) *types.Message {
	return types.NewMessage(types.MessageFields{
		Type:      types.MsgConnect,
		DataType:  types.DataString,
		Key:       identity,
		Data:      ProtocolVersion,
		Time:      localTime,
		SourceAux: session,
	})
}

// WelcomeMessage 服务端握手应答：data = 社区名，time = 服务端时间
func WelcomeMessage(community string, serverTime float64) *types.Message {
	return types.NewMessage(types.MessageFields{
		Type:     types.MsgWelcome,
		DataType: types.DataString,
		Key:      "welcome",
		Data:     community,
		Time:     serverTime,
	})
}

// PoisonMessage 服务端拒绝或踢出：data = 原因
func PoisonMessage(reason string) *types.Message {
	return types.NewMessage(types.MessageFields{
		Type:     types.MsgPoison,
		DataType: types.DataString,
		Key:      "poison",
		Data:     reason,
	})
}

// TimingMessage 时钟同步：time = 服务端时间，double_aux = 请求方发送时间（没有请求时为 0）
func TimingMessage(serverTime, requestTime float64) *types.Message {
	return types.NewMessage(types.MessageFields{
		Type:      types.MsgTiming,
		DataType:  types.DataDouble,
		Key:       "timing",
		Time:      serverTime,
		DoubleAux: requestTime,
	})
}

// NullMessage 心跳
func NullMessage(t float64) *types.Message {
	return types.NewMessage(types.MessageFields{
		Type:     types.MsgNull,
		DataType: types.DataDouble,
		Key:      "null",
		Time:     t,
	})
}

// RegistrationMessage 把登记编码为 R/U（精确）或 * / /（通配）消息
//
// 精确登记：double = 间隔。通配登记：data = 应用模式，double_aux = 间隔。
func RegistrationMessage(reg types.Registration, register bool) *types.Message {
	if !reg.Wildcard {
		typ := types.MsgRegister
		if !register {
			typ = types.MsgUnregister
		}
		return types.NewMessage(types.MessageFields{
			Type:     typ,
			DataType: types.DataDouble,
			Key:      reg.VarPattern,
			Double:   reg.Interval,
		})
	}

	typ := types.MsgWildcardRegister
	if !register {
		typ = types.MsgWildcardUnregister
	}
	return types.NewMessage(types.MessageFields{
		Type:      typ,
		DataType:  types.DataString,
		Key:       reg.VarPattern,
		Data:      reg.App(),
		DoubleAux: reg.Interval,
	})
}

// ParseRegistration 从 R/U/*// 消息还原登记
//
// register 表示登记还是取消；ok 为 false 表示不是登记类消息。
func ParseRegistration(m *types.Message) (reg types.Registration, register, ok bool) {
	switch m.Type() {
	case types.MsgRegister, types.MsgUnregister:
		return types.Registration{
			VarPattern: m.Key(),
			Interval:   m.Double(),
		}, m.Type() == types.MsgRegister, true
	case types.MsgWildcardRegister, types.MsgWildcardUnregister:
		return types.Registration{
			VarPattern: m.Key(),
			AppPattern: m.StringValue(),
			Interval:   m.DoubleAux(),
			Wildcard:   true,
		}, m.Type() == types.MsgWildcardRegister, true
	default:
		return types.Registration{}, false, false
	}
}
