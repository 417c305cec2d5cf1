package migration

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	opsCommitted = metrics.NewCounter("kvmig_migration_ops_committed_total")
	runDuration  = metrics.NewHistogram("kvmig_migration_duration_seconds")
)

// recordRun updates the run metrics after a run finished
func recordRun(dir Direction, report Report, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`kvmig_migration_runs_total{direction=%q,status=%q}`, dir, status)).Inc()

	if report.State == StateCommitted {
		opsCommitted.Add(report.Committed)
	}
	runDuration.UpdateDuration(start)
}
