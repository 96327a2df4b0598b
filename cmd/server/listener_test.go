package server

import (
	"net"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListeners(t *testing.T) {
	addrs := []ListenAddr{{Network: "tcp", Address: "127.0.0.1:0"}}
	if runtime.GOOS != "windows" {
		// 路径不能太长，unix socket有108字节限制
		addrs = append(addrs, ListenAddr{Network: "unix", Address: filepath.Join(t.TempDir(), "u.sock")})
	}
	listeners, err := CreateListeners(addrs)
	require.NoError(t, err)
	require.Len(t, listeners, len(addrs))
	for _, l := range listeners {
		conn, err := net.Dial(l.Addr().Network(), l.Addr().String())
		if assert.NoError(t, err) {
			conn.Close()
		}
		l.Close()
	}
}

func TestCreateListenersSkipsFailures(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	listeners, err := CreateListeners([]ListenAddr{
		{Network: "tcp", Address: busy.Addr().String()},
		{Network: "tcp", Address: "127.0.0.1:0"},
	})
	assert.Error(t, err)
	require.Len(t, listeners, 1)
	listeners[0].Close()
}
