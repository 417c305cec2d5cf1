package base

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// initialBackoff is the pause after the first failed attempt, it doubles with every retry
const initialBackoff = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the transport specific operations of a client
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint (a timeout of 0 means none)
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// session is one established net connection and the requests waiting for a response on it
type session struct {
	conn    net.Conn
	pending *xsync.MapOf[uint64, chan responseResult]
}

// clientConnection is one slot of the pool. It dials lazily and redials after the
// connection broke.
type clientConnection struct {
	endpoint string
	parent   *clientTransport

	mu      sync.Mutex // guards current and writes to its connection
	current *session
}

// clientTransport implements the client side independent of the transport medium (unix, tcp)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // round-robin counter
	nextRequestID atomic.Uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

// Connect opens ConnectionsPerEndpoint connections to every endpoint. It fails only if
// no connection could be established, the others are retried when they are used.
func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	_ = t.Close()

	connectionsPerEP := max(1, config.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(config.Endpoints)*connectionsPerEP)

	t.connectionsMu.Lock()
	t.config = config
	t.connectionsMu.Unlock()

	var (
		connected int
		lastErr   error
	)
	for _, endpoint := range config.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			c := &clientConnection{endpoint: endpoint, parent: t}
			connections = append(connections, c)

			c.mu.Lock()
			_, err := c.sessionLocked()
			c.mu.Unlock()
			if err != nil {
				lastErr = err
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connected++
		}
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	if connected == 0 {
		_ = t.Close()
		return fmt.Errorf("failed to connect to any endpoint: %w", lastErr)
	}

	Logger.Infof("Connected %d out of %d connections to %d endpoints using %s transport",
		connected, len(connections), len(config.Endpoints), t.connector.GetName())
	return nil
}

// Send sends the request on the next connection (round-robin). A failed attempt is
// retried on the following connection after an exponential backoff, up to RetryCount
// attempts.
func (t *clientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	attempts := max(1, t.config.RetryCount)
	backoff := initialBackoff

	for i := 0; i < attempts; i++ {
		c := t.nextConnection()
		if c == nil {
			return nil, fmt.Errorf("%s transport not connected", t.connector.GetName())
		}

		// a fresh ID per attempt, so a late response of an earlier attempt is never taken for this one
		resp, err = c.send(shardId, t.nextRequestID.Add(1), req)
		if err == nil {
			return resp, nil
		}
		Logger.Debugf("Attempt %d/%d failed: %v", i+1, attempts, err)

		if i+1 < attempts {
			// +-10% jitter
			time.Sleep(time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64())))
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", attempts, err)
}

func (t *clientTransport) Close() error {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		c.mu.Lock()
		if c.current != nil {
			_ = c.current.conn.Close() // the reader fails the pending requests
			c.current = nil
		}
		c.mu.Unlock()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// nextConnection selects the next connection via round-robin
func (t *clientTransport) nextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

// sessionLocked returns the current session and dials a new one if there is none.
// c.mu must be held.
func (c *clientConnection) sessionLocked() (*session, error) {
	if c.current != nil {
		return c.current, nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint, c.parent.timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config.Socket); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	s := &session{conn: conn, pending: xsync.NewMapOf[uint64, chan responseResult]()}
	c.current = s
	go c.readResponses(s)
	return s, nil
}

// send writes one request and waits for its response or the timeout
func (c *clientConnection) send(shardId, requestID uint64, req []byte) ([]byte, error) {
	respCh := make(chan responseResult, 1)
	timeout := c.parent.timeout()

	c.mu.Lock()
	s, err := c.sessionLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	s.pending.Store(requestID, respCh)
	if timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err = writeFrame(s.conn, shardId, requestID, req); err != nil {
		c.dropLocked(s)
	}
	c.mu.Unlock()

	defer s.pending.Delete(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to write request to %s: %w", c.endpoint, err)
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request %d to %s timed out after %s", requestID, c.endpoint, timeout)
	}
}

// dropLocked closes the session if it is still the current one, the next request redials.
// c.mu must be held.
func (c *clientConnection) dropLocked(s *session) {
	if c.current == s {
		c.current = nil
	}
	_ = s.conn.Close()
}

// readResponses reads responses of the session and hands them to the waiting requests.
// When the connection fails all requests still waiting on it fail.
func (c *clientConnection) readResponses(s *session) {
	var err error
	for {
		var (
			shardID, requestID uint64
			data               []byte
		)
		shardID, requestID, data, err = readFrame(s.conn, nil)
		if err != nil {
			break
		}

		respCh, found := s.pending.LoadAndDelete(requestID)
		if !found {
			// the request timed out before its response arrived
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
			continue
		}
		respCh <- responseResult{data: data}
	}

	c.mu.Lock()
	c.dropLocked(s)
	c.mu.Unlock()

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		Logger.Debugf("Connection to %s closed", c.endpoint)
	} else {
		Logger.Warningf("Error reading from %s: %v", c.endpoint, err)
	}

	// no request registers on s after it was dropped
	s.pending.Range(func(requestID uint64, respCh chan responseResult) bool {
		if _, ok := s.pending.LoadAndDelete(requestID); ok {
			respCh <- responseResult{err: fmt.Errorf("connection to %s lost: %w", c.endpoint, err)}
		}
		return true
	})
}
