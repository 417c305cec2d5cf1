package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/rpc/client"
	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/serializer"
	"github.com/ValentinKolb/kvmig/rpc/transport"
	"github.com/ValentinKolb/kvmig/rpc/transport/http"
	"github.com/ValentinKolb/kvmig/rpc/transport/tcp"
	"github.com/ValentinKolb/kvmig/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. KVMIG_TIMEOUT=15)
	EnvPrefix = "kvmig"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n")
}

// InitConfig loads .env files and lets viper read KVMIG_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the kvmig server (a socket path for the unix transport). Multiple endpoints can be specified as a comma-separated list, requests are balanced round-robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many attempts a request gets before it fails, each on the next endpoint or connection"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("(tcp, unix) Number of connections opened to every endpoint"))

	SetupSocketFlags(cmd)

	key = "shard"
	cmd.PersistentFlags().Uint64(key, 100, WrapString("ID of the shard to connect to"))
}

// SetupSocketFlags adds the connection settings of the socket transports (tcp, unix) to a command
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("(tcp, unix) Size of the kernel write buffer of a connection in KB (0 keeps the OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("(tcp, unix) Size of the kernel read buffer of a connection in KB (0 keeps the OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("(tcp) Disable Nagle's algorithm, so small requests are sent immediately"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("(tcp) Keep-alive period in seconds (0 keeps the default)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("(tcp) Seconds a closed connection may linger to send remaining data (0 keeps the OS default)"))
}

// GetSocketConfig reads the socket transport settings from viper
func GetSocketConfig() common.SocketConfig {
	return common.SocketConfig{
		WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	var endpoints []string
	for _, endpoint := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}

	return common.ClientConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("transport-retries"),
		ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
		Socket:                 GetSocketConfig(),
	}
}

// GetSerializer creates the serializer selected with --serializer
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.FromName(viper.GetString("serializer"))
}

// GetServerTransport creates the server side of the transport selected with --transport
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (must be http, tcp or unix)", viper.GetString("transport"))
	}
}

// GetClientTransport creates the client side of the transport selected with --transport
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (must be http, tcp or unix)", viper.GetString("transport"))
	}
}

// ConnectStore creates a store client for the configured shard
func ConnectStore() (store.IStore, error) {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := GetClientTransport()
	if err != nil {
		return nil, err
	}
	return client.NewRPCStore(viper.GetUint64("shard"), GetClientConfig(), t, s)
}
