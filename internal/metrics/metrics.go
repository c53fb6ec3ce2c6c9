// Package metrics exposes Prometheus collectors for the storage engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SeedStatementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_seed_statements_total",
		Help: "Cumulative number of seed statements executed successfully.",
	})
	SeedStatementsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_seed_statements_skipped_total",
		Help: "Cumulative number of malformed seed statements skipped during replay.",
	})
	SnapshotSavesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_snapshot_saves_total",
		Help: "Cumulative number of durable engine snapshots written.",
	})
	SnapshotSaveFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_snapshot_save_failures_total",
		Help: "Cumulative number of snapshot writes that failed.",
	})
	AttemptsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_attempts_recorded_total",
		Help: "Cumulative number of attempts recorded through the sync engine.",
	})
	SyncAttemptsPulledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_sync_attempts_pulled_total",
		Help: "Cumulative number of attempt rows pulled from the remote backend.",
	})
	SyncAttemptsMergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_sync_attempts_merged_total",
		Help: "Cumulative number of pulled attempts that were new and merged locally.",
	})
	RemotePushFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qbank_remote_push_failures_total",
		Help: "Cumulative number of best-effort remote attempt pushes that failed.",
	})
)

// Register registers all engine collectors with the given registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		SeedStatementsTotal,
		SeedStatementsSkippedTotal,
		SnapshotSavesTotal,
		SnapshotSaveFailuresTotal,
		AttemptsRecordedTotal,
		SyncAttemptsPulledTotal,
		SyncAttemptsMergedTotal,
		RemotePushFailuresTotal,
	)
}
