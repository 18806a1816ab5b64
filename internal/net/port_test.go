package net

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEphemeralTCPPort(t *testing.T) {
	port, err := GetEphemeralTCPPort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)
}

func TestResolveListenAddr(t *testing.T) {
	cases := []struct {
		name    string
		addr    string
		expHost string
		expPort string
		expErr  bool
	}{
		{name: "fixed port is kept", addr: "127.0.0.1:5000", expHost: "127.0.0.1", expPort: "5000"},
		{name: "port zero is resolved", addr: "127.0.0.1:0", expHost: "127.0.0.1"},
		{name: "missing port", addr: "127.0.0.1", expErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			addr, err := ResolveListenAddr(c.addr)
			if c.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			host, port, err := net.SplitHostPort(addr)
			require.NoError(t, err)
			assert.Equal(t, c.expHost, host)
			if c.expPort != "" {
				assert.Equal(t, c.expPort, port)
				return
			}
			n, err := strconv.Atoi(port)
			require.NoError(t, err)
			assert.Greater(t, n, 0)
		})
	}
}
