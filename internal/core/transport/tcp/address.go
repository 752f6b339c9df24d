package tcp

import (
	"fmt"
	"net"
	"strconv"
)

// Address MOOSDB 地址（主机名或 IP + 端口）
type Address struct {
	Host string
	Port int
}

// NewAddress 创建地址
func NewAddress(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// ParseAddress 解析 "host:port"
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, fmt.Errorf("%w: port %q", ErrInvalidAddress, portStr)
	}
	a := Address{Host: host, Port: port}
	if err := a.Validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

// NewAddressFromNetAddr 从 net.Addr 创建地址
func NewAddressFromNetAddr(addr net.Addr) (Address, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return Address{}, fmt.Errorf("%w: not a TCP address: %T", ErrInvalidAddress, addr)
	}
	return Address{Host: tcpAddr.IP.String(), Port: tcpAddr.Port}, nil
}

// Validate 检查地址
func (a Address) Validate() error {
	if a.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, a.Port)
	}
	return nil
}

// String 返回 "host:port"（IPv6 加方括号）
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
