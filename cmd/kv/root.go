package kv

import (
	"github.com/ValentinKolb/kvmig/cmd/util"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value store operations",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setIfUnsetCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(hGetCmd)
	KeyValueCommands.AddCommand(hSetIfUnsetCmd)
	KeyValueCommands.AddCommand(hDelCmd)
	KeyValueCommands.AddCommand(renameCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(infoCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	rpcStore, err = util.ConnectStore()
	return err
}
