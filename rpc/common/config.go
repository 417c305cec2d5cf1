package common

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// Dragonboat configuration
// --------------------------------------------------------------------------

// Election and heartbeat timing in multiples of RTTMillisecond, as suggested by the raft paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig returns the raft configuration of a replicated shard
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig returns the NodeHost configuration of this replica
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Socket configuration
// --------------------------------------------------------------------------

// SocketConfig tunes the connections of the socket transports (tcp, unix).
// The http transport ignores it.
type SocketConfig struct {
	// kernel buffer sizes in bytes (0 keeps the OS default)
	WriteBufferSize int
	ReadBufferSize  int

	// tcp only
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 keeps the default keep-alive period
	TCPLingerSec    int // 0 keeps the OS default

	// requests of one connection handled concurrently by the server (at least 1)
	WorkersPerConn int
}

func (s SocketConfig) write(w *configWriter, server bool) {
	w.section("Socket")
	w.field("Write Buffer", orDefault(s.WriteBufferSize, "bytes"))
	w.field("Read Buffer", orDefault(s.ReadBufferSize, "bytes"))
	w.field("TCP No Delay", strconv.FormatBool(s.TCPNoDelay))
	w.field("TCP Keep Alive", orDefault(s.TCPKeepAliveSec, "sec"))
	w.field("TCP Linger", orDefault(s.TCPLingerSec, "sec"))
	if server {
		w.field("Workers Per Conn", strconv.Itoa(max(1, s.WorkersPerConn)))
	}
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerShardType selects how the store of a shard is backed
type ServerShardType string

const (
	ShardTypeLocalIStore  ServerShardType = "local store"  // single node store (lstore)
	ShardTypeRemoteIStore ServerShardType = "remote store" // raft replicated store (dstore)
)

// ParseShardType converts the short names used on the command line (local, remote)
func ParseShardType(s string) (ServerShardType, error) {
	switch strings.ToLower(s) {
	case "local", "lstore":
		return ShardTypeLocalIStore, nil
	case "remote", "dstore":
		return ShardTypeRemoteIStore, nil
	default:
		return "", fmt.Errorf("invalid shard type %q (must be local or remote)", s)
	}
}

type ServerShard struct {
	ShardID uint64
	Type    ServerShardType
}

// ParseShards parses a comma separated list of shards in the format ID=TYPE (e.g. "100=local,200=remote")
func ParseShards(s string) ([]ServerShard, error) {
	var shards []ServerShard
	seen := make(map[uint64]bool)
	for _, shardConfig := range strings.Split(s, ",") {
		id, typ, ok := strings.Cut(shardConfig, "=")
		if !ok {
			return nil, fmt.Errorf("invalid shard format %q (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %q: %w", id, err)
		}
		if shardID == 0 {
			return nil, fmt.Errorf("shard ID 0 is reserved")
		}
		if seen[shardID] {
			return nil, fmt.Errorf("duplicate shard ID %d", shardID)
		}
		seen[shardID] = true

		shardType, err := ParseShardType(strings.TrimSpace(typ))
		if err != nil {
			return nil, err
		}
		shards = append(shards, ServerShard{ShardID: shardID, Type: shardType})
	}
	return shards, nil
}

// ReplicaIDFromName maps a human readable replica name (e.g. "node-1") to a raft replica ID (FNV-1a)
func ReplicaIDFromName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	if id := h.Sum64(); id != 0 {
		return id
	}
	return 1
}

// ParseClusterMembers parses a comma separated list of NAME=ADDRESS pairs into raft replica IDs and addresses
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		name, addr, ok := strings.Cut(strings.TrimSpace(member), "=")
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("invalid cluster member %q (expected NAME=ADDRESS)", member)
		}
		members[ReplicaIDFromName(name)] = addr
	}
	return members, nil
}

// ServerConfig holds the configuration of an rpc server and its raft replica.
type ServerConfig struct {
	// shards served by this server
	Shards []ServerShard

	// raft parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// timeout of proposals and reads of replicated shards
	TimeoutSecond int64

	// address the transport listens on
	Endpoint string

	// path the metrics are exposed on (empty disables them, http transport only)
	MetricsPath string

	// connection settings of the socket transports
	Socket SocketConfig

	LogLevel string
}

// HasRemoteShard reports whether any shard is replicated with raft
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeRemoteIStore {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	w := &configWriter{}

	w.section("RPC Server")
	w.field("Endpoint", c.Endpoint)
	w.field("Metrics", orDisabled(c.MetricsPath))
	w.field("Log Level", c.LogLevel)
	c.Socket.write(w, true)

	w.section("Shards")
	for _, shard := range c.Shards {
		w.field(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasRemoteShard() {
		w.section("Raft")
		w.field("Replica ID", strconv.FormatUint(c.ReplicaID, 10))
		w.field("Raft Address", c.ClusterMembers[c.ReplicaID])
		w.field("Round Trip Time", fmt.Sprintf("%d ms", c.RTTMillisecond))
		w.field("Election Timeout", fmt.Sprintf("%d ms", c.RTTMillisecond*electionRTTFactor))
		w.field("Heartbeat Interval", fmt.Sprintf("%d ms", c.RTTMillisecond*heartbeatRTTFactor))
		w.field("Snapshot Entries", strconv.FormatUint(c.SnapshotEntries, 10))
		w.field("Compaction Overhead", strconv.FormatUint(c.CompactionOverhead, 10))
		w.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
		w.field("Data Directory", c.DataDir)

		w.section("Cluster Members")
		ids := make([]uint64, 0, len(c.ClusterMembers))
		for id := range c.ClusterMembers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			w.field(fmt.Sprintf("Replica %d", id), c.ClusterMembers[id])
		}
	}
	return w.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int

	// socket transports open this many connections to every endpoint (at least 1)
	ConnectionsPerEndpoint int
	Socket                 SocketConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	w := &configWriter{}

	w.section("Client")
	w.field("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	w.field("Retry Count", strconv.Itoa(c.RetryCount))
	w.field("Conns Per Endpoint", strconv.Itoa(max(1, c.ConnectionsPerEndpoint)))
	c.Socket.write(w, false)

	w.section("Endpoints")
	for i, endpoint := range c.Endpoints {
		w.field(strconv.Itoa(i), endpoint)
	}
	return w.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type configWriter struct {
	strings.Builder
}

func (w *configWriter) section(title string) {
	fmt.Fprintf(w, "\n%s\n", strings.ToUpper(title))
}

func (w *configWriter) field(name, value string) {
	fmt.Fprintf(w, "  %-22s: %s\n", name, value)
}

func orDefault(n int, unit string) string {
	if n <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
