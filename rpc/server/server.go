package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/lib/store/dstore"
	"github.com/ValentinKolb/kvmig/lib/store/lstore"
	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/serializer"
	"github.com/ValentinKolb/kvmig/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer routes the requests of a transport to the stores of its shards.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
}

func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// AddShard serves the store under the shard ID, replacing a previous shard with the same ID
func (s *RPCServer) AddShard(shardId uint64, st store.IStore) {
	s.shards.Store(shardId, serverShard{
		Store:   st,
		Adapter: NewIStoreServerAdapter(),
	})
}

// Handle decodes a request, lets the adapter of the shard execute it and encodes the response.
// It is the handler registered with the transport.
func (s *RPCServer) Handle(shardId uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	status := "ok"
	if respMsg.Err != "" {
		status = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`kvmig_rpc_requests_total{type=%q,status=%q}`, msg.MsgType, status)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`kvmig_rpc_request_duration_seconds{type=%q}`, msg.MsgType)).UpdateDuration(start)

	resp, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("Failed to serialize response: %v", err)
		resp, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return resp
}

// init creates the stores of all configured shards
func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	Logger.Infof("Created RPC Server")
	Logger.Infof("Configuration:%s", s.config.String())

	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }

	// the NodeHost is only needed for replicated shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, shardConfig := range s.config.Shards {
		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			s.AddShard(shardConfig.ShardID, lstore.NewLocalStore(dbFactory))
			Logger.Infof("Created local store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRemoteIStore:
			err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers, false,
				dstore.CreateStateMaschineFactory(dbFactory),
				s.config.ToDragonboatConfig(shardConfig.ShardID))
			if err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			s.AddShard(shardConfig.ShardID, dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout))
			Logger.Infof("Started replica %d of shard %d", s.config.ReplicaID, shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	s.transport.RegisterHandler(s.Handle)
	Logger.Infof("Server setup completed successfully")
	return nil
}

// Serve creates the shards and blocks while the transport is listening
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.Close()
	return s.transport.Listen(s.config)
}

// Close stops the raft replicas of the server
func (s *RPCServer) Close() {
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}
