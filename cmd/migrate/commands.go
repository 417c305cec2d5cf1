package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ValentinKolb/kvmig/cmd/util"
	"github.com/ValentinKolb/kvmig/lib/migration"
	"github.com/ValentinKolb/kvmig/lib/migration/file"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a new timestamped migration file with example entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := viper.GetString("dir")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path, err := file.Create(dir, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("created %s\n", path)
			return nil
		},
	}
	validateCmd = &cobra.Command{
		Use:   "validate [name]",
		Short: "Checks the up and down action of a migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := file.Load(viper.GetString("dir"), args[0])
			if err != nil {
				return err
			}
			if err := migration.NewValidator(migration.NewRegistry()).ValidateMigration(m); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", m.Name)
			return nil
		},
	}
	upCmd = &cobra.Command{
		Use:   "up [name]",
		Short: "Runs the up action of a migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0], migration.Up)
		},
	}
	downCmd = &cobra.Command{
		Use:   "down [name]",
		Short: "Runs the down action of a migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0], migration.Down)
		},
	}
)

// runFile loads the migration file and runs one of its actions against the configured store
func runFile(cmd *cobra.Command, name string, dir migration.Direction) error {
	m, err := file.Load(viper.GetString("dir"), name)
	if err != nil {
		return err
	}

	s, err := util.ConnectStore()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return run(cmd.Context(), os.Stdout, s, m, dir, dryRun)
}

// run runs (or plans) the action and prints the report
func run(ctx context.Context, w io.Writer, s store.IStore, m *migration.Migration, dir migration.Direction, dryRun bool) error {
	runner := migration.NewRunner(s, nil)

	var (
		report migration.Report
		err    error
	)
	if dryRun {
		report, err = runner.Plan(ctx, m, dir)
	} else {
		report, err = runner.Run(ctx, m, dir)
	}

	printReport(w, report)
	return err
}

// printReport prints the outcome of the run and every queued operation
// (applied, skipped if it was a no-op, queued if nothing was committed)
func printReport(w io.Writer, report migration.Report) {
	fmt.Fprintf(w, "%s %s: %s (%d queued, %d committed) in %s\n",
		report.Name, report.Direction, report.State, report.Queued, report.Committed, report.Duration.Round(time.Microsecond))

	for i, cmd := range report.Commands {
		status := "queued"
		if i < len(report.Results) {
			status = "applied"
			if !report.Results[i].Applied {
				status = "skipped"
			}
		}
		fmt.Fprintf(w, "  %-7s %s\n", status, cmd)
	}
}
