package codec

import (
	"fmt"
	"io"
	"math"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mooscomms/go-mooscomms/pkg/types"
)

// DefaultMaxFrameSize 默认最大帧长度
const DefaultMaxFrameSize = 8 << 20

// 字段号
const (
	fieldType      protowire.Number = 1
	fieldDataType  protowire.Number = 2
	fieldKey       protowire.Number = 3
	fieldDouble    protowire.Number = 4
	fieldDoubleAux protowire.Number = 5
	fieldData      protowire.Number = 6
	fieldTime      protowire.Number = 7
	fieldSource    protowire.Number = 8
	fieldSourceAux protowire.Number = 9
	fieldCommunity protowire.Number = 10

	fieldPacketMessage protowire.Number = 1
)

// Reader 帧读取所需的接口，*bufio.Reader 满足
type Reader interface {
	io.Reader
	io.ByteReader
}

// Codec 消息编解码器
type Codec struct {
	maxFrameSize int
}

// NewCodec 创建编解码器；maxFrameSize <= 0 时使用 DefaultMaxFrameSize
func NewCodec(maxFrameSize int) *Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Codec{maxFrameSize: maxFrameSize}
}

// MaxFrameSize 最大帧长度
func (c *Codec) MaxFrameSize() int {
	return c.maxFrameSize
}

// ============================================================================
//                              Message
// ============================================================================

// AppendMessage 把单条消息编码追加到 b
func AppendMessage(b []byte, m *types.Message) []byte {
	f := m.Fields()

	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Type))
	if f.DataType != 0 {
		b = protowire.AppendTag(b, fieldDataType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.DataType))
	}
	b = appendString(b, fieldKey, f.Key)
	b = appendDouble(b, fieldDouble, f.Double)
	b = appendDouble(b, fieldDoubleAux, f.DoubleAux)
	b = appendString(b, fieldData, f.Data)
	b = appendDouble(b, fieldTime, f.Time)
	b = appendString(b, fieldSource, f.Source)
	b = appendString(b, fieldSourceAux, f.SourceAux)
	b = appendString(b, fieldCommunity, f.Community)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// DecodeMessage 解码单条消息
func DecodeMessage(data []byte) (*types.Message, error) {
	var f types.MessageFields
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case (num == fieldType || num == fieldDataType) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			if v > math.MaxUint8 {
				return nil, fmt.Errorf("%w: field %d out of range", ErrInvalidMessage, num)
			}
			if num == fieldType {
				f.Type = types.MsgType(v)
			} else {
				f.DataType = types.DataType(v)
			}
			data = data[n:]

		case isDoubleField(num) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			setDouble(&f, num, math.Float64frombits(v))
			data = data[n:]

		case isStringField(num) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			setString(&f, num, string(v))
			data = data[n:]

		case num <= fieldCommunity:
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrInvalidMessage, num, typ)

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return types.NewMessage(f), nil
}

func isDoubleField(num protowire.Number) bool {
	return num == fieldDouble || num == fieldDoubleAux || num == fieldTime
}

func isStringField(num protowire.Number) bool {
	switch num {
	case fieldKey, fieldData, fieldSource, fieldSourceAux, fieldCommunity:
		return true
	}
	return false
}

func setDouble(f *types.MessageFields, num protowire.Number, v float64) {
	switch num {
	case fieldDouble:
		f.Double = v
	case fieldDoubleAux:
		f.DoubleAux = v
	case fieldTime:
		f.Time = v
	}
}

func setString(f *types.MessageFields, num protowire.Number, v string) {
	switch num {
	case fieldKey:
		f.Key = v
	case fieldData:
		f.Data = v
	case fieldSource:
		f.Source = v
	case fieldSourceAux:
		f.SourceAux = v
	case fieldCommunity:
		f.Community = v
	}
}

// ============================================================================
//                              Packet
// ============================================================================

// EncodePacket 把一批消息编码为数据包，顺序保持不变
func EncodePacket(msgs []*types.Message) []byte {
	var b, scratch []byte
	for _, m := range msgs {
		scratch = AppendMessage(scratch[:0], m)
		b = protowire.AppendTag(b, fieldPacketMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, scratch)
	}
	return b
}

// DecodePacket 解码数据包
func DecodePacket(data []byte) ([]*types.Message, error) {
	var msgs []*types.Message
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldPacketMessage {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: packet message has wire type %d", ErrInvalidMessage, typ)
		}
		raw, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := DecodeMessage(raw)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ============================================================================
//                              帧
// ============================================================================

// WriteFrame 写入长度前缀帧；前缀和数据在一次 Write 中写出
func (c *Codec) WriteFrame(w io.Writer, body []byte) (int, error) {
	if len(body) > c.maxFrameSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(body), c.maxFrameSize)
	}
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(body)))+len(body))
	buf = append(buf, varint.ToUvarint(uint64(len(body)))...)
	buf = append(buf, body...)
	return w.Write(buf)
}

// ReadFrame 读取一个长度前缀帧，返回帧体和读取的总字节数
func (c *Codec) ReadFrame(r Reader) ([]byte, int, error) {
	length, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, 0, err
	}
	if length > uint64(c.maxFrameSize) {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, c.maxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}
	return body, varint.UvarintSize(length) + int(length), nil
}

// WritePacket 编码并写出一批消息，返回写出的字节数
func (c *Codec) WritePacket(w io.Writer, msgs []*types.Message) (int, error) {
	return c.WriteFrame(w, EncodePacket(msgs))
}

// ReadPacket 读取并解码一个数据包，返回消息和读取的字节数
func (c *Codec) ReadPacket(r Reader) ([]*types.Message, int, error) {
	body, n, err := c.ReadFrame(r)
	if err != nil {
		return nil, n, err
	}
	msgs, err := DecodePacket(body)
	return msgs, n, err
}
