package migrate

import (
	"github.com/ValentinKolb/kvmig/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// MigrateCommands represents the migration command group
	MigrateCommands = &cobra.Command{
		Use:   "migrate",
		Short: "Create, validate and run migrations",
		Long: `Migrations are YAML files with an up and a down action. Every action is a list of entries:

  up:
    - cmd: moveKeysToHashFields
      src: {key: !regexp '(app:user:\d+):username'}
      dst: {key: '$1:properties', field: username}

The commands are moveKeysToHashFields, moveHashFieldsToKeys and renameKeys.
All changes of one action are committed to the store as one atomic batch.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
	}
)

func init() {
	// Add common RPC flags to the migrate command
	util.SetupRPCClientFlags(MigrateCommands)

	key := "dir"
	MigrateCommands.PersistentFlags().String(key, "migrations", util.WrapString("The directory containing the migration files"))

	upCmd.Flags().Bool("dry-run", false, util.WrapString("Print the operations of the migration without committing them"))
	downCmd.Flags().Bool("dry-run", false, util.WrapString("Print the operations of the migration without committing them"))

	// Add subcommands
	MigrateCommands.AddCommand(createCmd)
	MigrateCommands.AddCommand(validateCmd)
	MigrateCommands.AddCommand(upCmd)
	MigrateCommands.AddCommand(downCmd)
}
