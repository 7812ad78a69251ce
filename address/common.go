/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.osspkg.com/errors"
	"golang.org/x/sys/unix"
)

var (
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidAddress = errors.New("invalid address")
)

// ParsePort validates a decimal port in the range 1..65535.
func ParsePort(v string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidPort, "parse '%s'", v)
	}
	if port < 1 || port > 65535 {
		return 0, errors.Wrapf(ErrInvalidPort, "'%d' out of range 1-65535", port)
	}
	return port, nil
}

// ServerAddress binds the given port on every IPv4 interface.
func ServerAddress(port string) (string, error) {
	p, err := ParsePort(port)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(p)), nil
}

// ParseIPv4Port validates an "ip:port" pair where ip is a literal IPv4 address.
func ParseIPv4Port(v string) (string, error) {
	host, port, err := net.SplitHostPort(v)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidAddress, "split '%s'", v)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", errors.Wrapf(ErrInvalidAddress, "'%s' is not an IPv4 address", host)
	}
	p, err := ParsePort(port)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(p)), nil
}

// Sockaddr converts "host:port" into a socket address and its family.
// An empty host means every IPv4 interface.
func Sockaddr(v string) (unix.Sockaddr, int, error) {
	host, port, err := net.SplitHostPort(v)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrInvalidAddress, "split '%s'", v)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return nil, 0, errors.Wrapf(ErrInvalidPort, "'%s'", port)
	}
	if len(host) == 0 {
		host = "0.0.0.0"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, 0, errors.Wrapf(ErrInvalidAddress, "resolve '%s'", host)
		}
		ip = ips[0]
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: p}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: p}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}

// String renders a socket address as "host:port".
func String(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrUnix:
		return v.Name
	case nil:
		return ""
	default:
		return fmt.Sprintf("%T", sa)
	}
}

func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
