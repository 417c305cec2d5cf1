package unix

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/transport"
	"github.com/ValentinKolb/kvmig/rpc/transport/base"
)

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// connector implements base.IClientConnector and base.IServerConnector for unix sockets
type connector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector and base.IServerConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "unix"
}

func (c *connector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", base.TrimScheme(endpoint, "unix"), timeout)
}

func (c *connector) Listen(endpoint string) (net.Listener, error) {
	socketPath := base.TrimScheme(endpoint, "unix")

	// remove the socket file of a previous server
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create unix socket: %w", err)
	}
	return listener, nil
}

// UpgradeConnection applies the kernel buffer sizes, the tcp settings do not apply to unix sockets
func (c *connector) UpgradeConnection(conn net.Conn, config common.SocketConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}

	if config.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Transport Factory Methods
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new unix socket client transport
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&connector{})
}

// NewUnixServerTransport creates a new unix socket server transport with the default buffer size
func NewUnixServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&connector{}, defaultBufferSize)
}
