package unix

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listeningServer interface {
	Addr() net.Addr
	Close() error
}

func TestUnixTransport(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "kvmig.sock")

	// a stale socket file of a previous server
	require.NoError(t, os.WriteFile(endpoint, nil, 0o600))

	st := NewUnixServerTransport()
	st.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte{byte(shardId)}, req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- st.Listen(common.ServerConfig{Endpoint: "unix://" + endpoint, TimeoutSecond: 5})
	}()
	server := st.(listeningServer)
	require.Eventually(t, func() bool { return server.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	ct := NewUnixClientTransport()
	require.NoError(t, ct.Connect(common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
		Socket:        common.SocketConfig{WriteBufferSize: 32 * 1024, ReadBufferSize: 32 * 1024},
	}))

	resp, err := ct.Send(3, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x03ping"), resp)

	require.NoError(t, ct.Close())
	require.NoError(t, server.Close())
	require.NoError(t, <-done)

	_, err = os.Stat(endpoint)
	assert.True(t, os.IsNotExist(err), "socket file is removed when the server closes")
}
