// Package net picks free TCP ports for listeners.
package net

import (
	"fmt"
	"net"
	"strconv"
)

// GetEphemeralTCPPort returns a TCP port on localhost that was free a moment ago.
// The port is released before returning, so callers should bind it promptly.
func GetEphemeralTCPPort() (int, error) {
	return ephemeralPort("localhost")
}

// ResolveListenAddr returns addr with a port of 0 replaced by a port that is free on its host,
// so the address can be reported before anything listens on it.
// Any other address is returned as is.
func ResolveListenAddr(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parsing listen address %q: %w", addr, err)
	}
	if port != "0" {
		return addr, nil
	}
	p, err := ephemeralPort(host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(p)), nil
}

func ephemeralPort(host string) (int, error) {
	hostPort := net.JoinHostPort(host, "0")
	addr, err := net.ResolveTCPAddr("tcp", hostPort)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", hostPort, err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listening to acquire port: %w", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
