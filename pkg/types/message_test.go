package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_DoublePayload(t *testing.T) {
	m := NewDouble("nav_x", 3.14, 100.0)

	assert.True(t, m.IsDouble())
	assert.False(t, m.IsString())
	assert.False(t, m.IsBinary())
	assert.Equal(t, 3.14, m.Double())
	assert.Equal(t, 100.0, m.Time())
	assert.Equal(t, "nav_x", m.Key())
	assert.True(t, m.IsName("nav_x"))
	assert.Equal(t, 0, m.BinaryDataSize())
	assert.NoError(t, m.Validate())
}

func TestMessage_BinaryKeepsEmbeddedZeros(t *testing.T) {
	data := []byte{0, 3, 0x15, 2, 6, 0xAA}
	m := NewBinary("blob", data, 1)

	// 修改原切片不影响消息
	data[0] = 0xFF

	assert.True(t, m.IsBinary())
	assert.True(t, m.IsString(), "binary payloads are carried as strings")
	assert.Equal(t, 6, m.BinaryDataSize())
	assert.Equal(t, []byte{0, 3, 0x15, 2, 6, 0xAA}, m.BinaryData())

	// 返回的是副本
	out := m.BinaryData()
	out[1] = 0
	assert.Equal(t, byte(3), m.BinaryData()[1])
}

func TestMessage_PayloadIsExclusive(t *testing.T) {
	m := NewMessage(MessageFields{DataType: DataDouble, Key: "k", Double: 2, Data: "ignored"})
	assert.Empty(t, m.StringValue())

	m = NewMessage(MessageFields{DataType: DataString, Key: "k", Double: 2, Data: "s"})
	assert.Zero(t, m.Double())
	assert.Equal(t, MsgNotify, m.Type())
}

func TestMessage_Validate(t *testing.T) {
	assert.ErrorIs(t, NewDouble("", 1, 0).Validate(), ErrEmptyKey)

	bad := NewMessage(MessageFields{Key: "k", DataType: DataType('x')})
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDataType)

	var nilMsg *Message
	assert.ErrorIs(t, nilMsg.Validate(), ErrNilMessage)

	// 控制消息不要求 key
	ctrl := NewMessage(MessageFields{Type: MsgNull})
	assert.NoError(t, ctrl.Validate())
}

func TestMessage_CopiesAreIndependent(t *testing.T) {
	m := NewString("k", "v", 1)

	stamped := m.WithSource("alpha", "community")
	assert.Equal(t, "alpha", stamped.Source())
	assert.Empty(t, m.Source())
	assert.Same(t, stamped, stamped.WithSource("alpha", "community"))

	bin := m.AsBinary()
	assert.True(t, bin.IsBinary())
	assert.False(t, m.IsBinary())

	assert.Equal(t, 5.0, m.WithTime(5).Time())
	assert.Equal(t, 1.0, m.Time())
}

func TestMessage_Trace(t *testing.T) {
	m := NewDouble("nav_x", 1.5, 10).WithSource("alpha", "db")
	assert.Equal(t, "N nav_x t=10.000 src=alpha D:1.5", m.Trace())
	assert.Equal(t, m.Trace(), m.String())

	b := NewBinary("blob", []byte{1, 2}, 0)
	assert.Contains(t, b.Trace(), "B:<2 bytes>")
}

func TestSafeCall(t *testing.T) {
	ok, err := SafeCall(CallbackOnMail, "", func() bool { return true })
	assert.True(t, ok)
	assert.NoError(t, err)

	boom := errors.New("boom")
	ok, err = SafeCall(CallbackActiveQueue, "q1", func() bool { panic(boom) })
	assert.False(t, ok)
	require.Error(t, err)

	var ce *CallbackError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CallbackActiveQueue, ce.Kind)
	assert.Equal(t, "q1", ce.Queue)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ActiveQueue[q1]::")
}

func TestRegistration_ID(t *testing.T) {
	plain := Registration{VarPattern: "nav_x"}
	assert.Equal(t, "nav_x", plain.ID())

	wild := Registration{VarPattern: "nav_*", Wildcard: true}
	assert.Equal(t, "nav_*|*", wild.ID())
	assert.Equal(t, "*", wild.App())

	assert.True(t, HasWildcards("nav_?"))
	assert.False(t, HasWildcards("nav_x"))
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.True(t, StateConnecting.AcceptsOutbound())
	assert.False(t, StateClosing.AcceptsOutbound())
	assert.False(t, StateClosed.AcceptsOutbound())
}
