// Package codec 实现 MOOS 通信的线上编码
//
// 帧格式：
//
//	frame  = uvarint(len(body)) || body
//	body   = Packet
//	Packet = { 1: repeated bytes message }
//
// Message 使用 protobuf 线格式手工编码（protowire），字段号：
//
//	1 type        varint   消息类型字符
//	2 data_type   varint   负载类型字符
//	3 key         bytes
//	4 double      fixed64
//	5 double_aux  fixed64
//	6 data        bytes    字符串或二进制负载
//	7 time        fixed64
//	8 source      bytes
//	9 source_aux  bytes
//	10 community  bytes
//
// 未知字段被跳过，便于协议向前兼容。
package codec
