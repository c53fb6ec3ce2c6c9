package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"qbank/internal/metrics"
	"qbank/internal/qbank"
)

// seed replays the decrypted bundled dump into an empty database. The dump
// carries its own CREATE TABLE statements followed by the INSERT batch, one
// statement per terminating semicolon.
//
// Replay is deliberately best-effort: a handful of malformed rows must not
// prevent the other thousands from loading, so individual statement
// failures are counted and skipped rather than aborting the batch. A replay
// that yields zero questions is a seed failure and fatal.
func (s *Store) seed(ctx context.Context) (InitReport, error) {
	dump, err := s.assets.MainDump(ctx)
	if err != nil {
		return InitReport{}, errors.WithMessage(qbank.ErrSeedFailure, err.Error())
	}

	report := s.replay(ctx, string(dump))
	if report.Executed == 0 {
		return InitReport{}, errors.WithMessage(qbank.ErrSeedFailure, "no seed statements executed")
	}

	count, err := s.questionCount(ctx)
	if err != nil || count == 0 {
		return InitReport{}, errors.WithMessage(qbank.ErrSeedFailure, "seed replay produced no questions")
	}

	log.WithFields(log.Fields{
		"questions": count,
		"executed":  report.Executed,
		"skipped":   report.Skipped,
	}).Info("seed replay complete")
	return report, nil
}

func (s *Store) replay(ctx context.Context, dump string) InitReport {
	var report InitReport
	for _, stmt := range strings.Split(dump, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			report.Skipped++
			metrics.SeedStatementsSkippedTotal.Inc()
			log.WithError(err).WithField("statement", truncate(stmt, 80)).
				Warn("skipping malformed seed statement")
			continue
		}
		report.Executed++
		metrics.SeedStatementsTotal.Inc()
	}
	return report
}

func (s *Store) questionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
