package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/kvmig/cmd/util"
	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the kvmig server",
		Long:    `Start the kvmig server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVMIG_<flag> (e.g. KVMIG_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=local", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: local (in-memory store on this node), remote (store replicated with raft)"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Uint64(key, 100, cmdUtil.WrapString("(remote shards) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. The election timeout is 10 RTT, the heartbeat interval 1 RTT"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Uint64(key, 10, cmdUtil.WrapString("(remote shards) SnapshotEntries defines how often the state machine should be snapshotted automatically, in terms of applied Raft log entries. 0 disables automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Uint64(key, 5, cmdUtil.WrapString("(remote shards) CompactionOverhead defines the number of log entries to keep after a snapshot"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(remote shards) DataDir is the directory used for the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(remote shards) ReplicaID is the unique name of this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(remote shards) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(remote shards) Timeout of proposals and reads in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, or a socket path for the unix transport)"))

	key = "metrics-path"
	ServeCmd.PersistentFlags().String(key, "/metrics", cmdUtil.WrapString("(http) The path on which prometheus metrics are exposed (empty to disable)"))

	key = "transport-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("(tcp, unix) Requests of one connection that are processed concurrently"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := common.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsPath = viper.GetString("metrics-path")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Socket = cmdUtil.GetSocketConfig()
	serveCmdConfig.Socket.WorkersPerConn = viper.GetInt("transport-workers-per-conn")

	// the raft settings are only required for replicated shards
	if !serveCmdConfig.HasRemoteShard() {
		return nil
	}

	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("replica-id is required for remote shards")
	}
	serveCmdConfig.ReplicaID = common.ReplicaIDFromName(id)

	members := viper.GetString("cluster-members")
	if members == "" {
		return fmt.Errorf("cluster-members is required for remote shards")
	}
	if serveCmdConfig.ClusterMembers, err = common.ParseClusterMembers(members); err != nil {
		return err
	}

	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica %s in cluster members", id)
	}
	return nil
}

// run starts the kvmig server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	return server.NewRPCServer(*serveCmdConfig, t, s).Serve()
}
