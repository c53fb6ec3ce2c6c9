// Package syncengine fans attempts out to the three stores (fast cache,
// embedded engine, remote backend) and merges them back together. There is
// no cross-store transaction: agreement is eventual, after a successful
// sync pass.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"qbank/internal/kvcache"
	"qbank/internal/metrics"
	"qbank/internal/qbank"
)

// AttemptStore is the embedded relational engine's attempt surface.
type AttemptStore interface {
	SaveAttempt(ctx context.Context, attempt qbank.Attempt) error
	ClearAttempts(ctx context.Context) error
}

// Backend is the remote attempt store.
type Backend interface {
	InsertAttempt(ctx context.Context, userID string, attempt qbank.Attempt) error
	ListAttempts(ctx context.Context, userID string) ([]qbank.Attempt, error)
	DeleteAttempts(ctx context.Context, userID string) error
}

// SessionFunc reports the signed-in user, if any.
type SessionFunc func() (userID string, ok bool)

// Engine coordinates attempt writes and merges across the three tiers.
type Engine struct {
	cache   *kvcache.Cache
	store   AttemptStore
	backend Backend
	session SessionFunc

	now func() time.Time
	wg  sync.WaitGroup
}

func NewEngine(cache *kvcache.Cache, store AttemptStore, backend Backend, session SessionFunc) *Engine {
	if session == nil {
		session = func() (string, bool) { return "", false }
	}
	return &Engine{
		cache:   cache,
		store:   store,
		backend: backend,
		session: session,
		now:     time.Now,
	}
}

// RecordAttempt builds and records an attempt for the answered question.
//
// The fast cache and derived stats are written synchronously so UI reads
// reflect the attempt immediately; the embedded store write follows, and a
// best-effort remote push runs in the background when a session exists. A
// remote failure queues the attempt for the next sync pass and never rolls
// back the local writes.
//
// Attempts against the AI or archive pools touch only that pool's cache
// namespace: they never reach the embedded store, the remote backend, or
// main-pool statistics.
func (e *Engine) RecordAttempt(ctx context.Context, pool qbank.Pool, question qbank.Question, selectedIndex, timeSpentSeconds int) (qbank.Attempt, error) {
	attempt := qbank.Attempt{
		QuestionID:          question.ID,
		SelectedOptionIndex: selectedIndex,
		IsCorrect:           selectedIndex == question.CorrectIndex,
		Timestamp:           e.now().UnixMilli(),
		TimeSpentSeconds:    timeSpentSeconds,
	}

	if err := e.cache.AppendAttempt(pool, attempt); err != nil {
		return qbank.Attempt{}, errors.Wrap(err, "append attempt to cache")
	}

	if pool != qbank.PoolMain {
		return attempt, nil
	}

	if err := e.applyStats(attempt, question.Subject); err != nil {
		log.WithError(err).Warn("failed to update derived stats")
	}

	if err := e.store.SaveAttempt(ctx, attempt); err != nil {
		// The cache copy stands; the engine copy catches up on the next
		// sync pass at the earliest.
		log.WithError(err).Warn("failed to save attempt to embedded store")
	}

	metrics.AttemptsRecordedTotal.Inc()

	if userID, ok := e.session(); ok {
		e.wg.Add(1)
		go e.pushRemote(userID, attempt)
	}

	return attempt, nil
}

// pushRemote is fire-and-forget; a failure marks the attempt pending so the
// inconsistency window is explicit rather than silent.
func (e *Engine) pushRemote(userID string, attempt qbank.Attempt) {
	defer e.wg.Done()

	if err := e.backend.InsertAttempt(context.Background(), userID, attempt); err != nil {
		metrics.RemotePushFailuresTotal.Inc()
		log.WithError(err).WithField("question", attempt.QuestionID).
			Warn("remote attempt push failed, queuing for next sync")
		if err := e.cache.AppendPendingAttempt(attempt); err != nil {
			log.WithError(err).Warn("failed to queue pending attempt")
		}
	}
}

// Flush waits for in-flight background pushes. Call before shutdown.
func (e *Engine) Flush() {
	e.wg.Wait()
}

// SyncAttempts pulls the user's remote attempt history and merges it into
// both local stores, then retries queued pushes. Safe to run repeatedly: a
// row is merged only when no local attempt shares its
// (question_id, timestamp) pair.
//
// Timestamp is the de facto identity: two attempts on one question in the
// same millisecond are indistinguishable and the remote twin is dropped
// here. Known and accepted.
func (e *Engine) SyncAttempts(ctx context.Context) error {
	userID, ok := e.session()
	if !ok {
		return nil
	}

	rows, err := e.backend.ListAttempts(ctx, userID)
	if err != nil {
		// RemoteSyncFailure: local stores remain authoritative; the next
		// pass retries.
		return errors.Wrap(err, "pull remote attempts")
	}
	metrics.SyncAttemptsPulledTotal.Add(float64(len(rows)))

	merged := 0
	for _, attempt := range rows {
		exists, err := e.cache.HasAttempt(qbank.PoolMain, attempt.QuestionID, attempt.Timestamp)
		if err != nil {
			return errors.Wrap(err, "check local attempt")
		}
		if exists {
			continue
		}

		if err := e.cache.AppendAttempt(qbank.PoolMain, attempt); err != nil {
			return errors.Wrap(err, "merge attempt into cache")
		}
		if err := e.store.SaveAttempt(ctx, attempt); err != nil {
			log.WithError(err).Warn("failed to replay merged attempt into embedded store")
		}
		if err := e.applyStats(attempt, ""); err != nil {
			log.WithError(err).Warn("failed to update stats for merged attempt")
		}
		merged++
	}
	metrics.SyncAttemptsMergedTotal.Add(float64(merged))

	if merged > 0 {
		log.WithFields(log.Fields{"pulled": len(rows), "merged": merged}).
			Info("merged remote attempts")
	}

	e.flushPending(ctx, userID)
	return nil
}

// flushPending retries queued remote pushes in order, stopping at the first
// failure so ordering is preserved for the next pass.
func (e *Engine) flushPending(ctx context.Context, userID string) {
	pending, err := e.cache.PendingAttempts()
	if err != nil || len(pending) == 0 {
		return
	}

	remaining := make([]qbank.Attempt, 0, len(pending))
	for idx, attempt := range pending {
		if err := e.backend.InsertAttempt(ctx, userID, attempt); err != nil {
			metrics.RemotePushFailuresTotal.Inc()
			log.WithError(err).Warn("pending attempt push failed, will retry")
			remaining = append(remaining, pending[idx:]...)
			break
		}
	}

	if err := e.cache.SetPendingAttempts(remaining); err != nil {
		log.WithError(err).Warn("failed to update pending queue")
	}
}

// ResetAllProgress clears the user's attempts everywhere, best-effort and
// in authority order: remote rows first (while the session is still valid),
// then the embedded store, then the whole fast cache, preserving only the
// AI-provider credential. A failure partway through still leaves the most
// authoritative store cleared.
func (e *Engine) ResetAllProgress(ctx context.Context) error {
	if userID, ok := e.session(); ok {
		if err := e.backend.DeleteAttempts(ctx, userID); err != nil {
			log.WithError(err).Error("failed to clear remote attempts, continuing reset")
		}
	}

	if err := e.store.ClearAttempts(ctx); err != nil {
		log.WithError(err).Error("failed to clear embedded store attempts, continuing reset")
	}

	if err := e.cache.Clear(kvcache.KeyAPIKey); err != nil {
		return errors.Wrap(err, "clear fast cache")
	}
	return nil
}

// RefreshCounts recomputes and overwrites the derived display counts from a
// full question read. Non-authoritative by design.
func (e *Engine) RefreshCounts(questions []qbank.Question) error {
	counts := qbank.CachedCounts{
		Total:    len(questions),
		Subjects: make(map[qbank.Subject]int),
	}
	for _, question := range questions {
		counts.Subjects[question.Subject]++
	}
	return e.cache.SetCounts(counts)
}

// applyStats updates the synchronously maintained aggregates: totals,
// per-subject accuracy when the subject is known, and the day streak.
func (e *Engine) applyStats(attempt qbank.Attempt, subject qbank.Subject) error {
	stats, err := e.cache.Stats()
	if err != nil {
		return err
	}

	stats.TotalQuestionsAttempted++
	if attempt.IsCorrect {
		stats.CorrectAnswers++
	}

	if subject != "" {
		accuracy := stats.SubjectAccuracy[subject]
		accuracy.Attempted++
		if attempt.IsCorrect {
			accuracy.Correct++
		}
		stats.SubjectAccuracy[subject] = accuracy
	}

	today := e.now().UTC().Format("2006-01-02")
	if stats.LastActiveDate != today {
		switch daysBetween(stats.LastActiveDate, today) {
		case 1:
			stats.StreakDays++
		default:
			stats.StreakDays = 1
		}
		stats.LastActiveDate = today
	}

	return e.cache.SetStats(stats)
}

func daysBetween(from, to string) int {
	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		return -1
	}
	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		return -1
	}
	days := int(toDate.Sub(fromDate).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
