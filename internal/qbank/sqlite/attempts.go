package sqlite

import (
	"context"

	"qbank/internal/qbank"
)

// SaveAttempt inserts one attempt row and then saves the full engine
// snapshot, not just the delta. Correctness over efficiency: write latency
// scales with total database size, which is acceptable at per-session
// attempt volumes.
func (s *Store) SaveAttempt(ctx context.Context, attempt qbank.Attempt) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}

	isCorrect := 0
	if attempt.IsCorrect {
		isCorrect = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (question_id, selected_option_index, is_correct, timestamp, time_spent_seconds)
		VALUES (?, ?, ?, ?, ?)`,
		attempt.QuestionID,
		attempt.SelectedOptionIndex,
		isCorrect,
		attempt.Timestamp,
		attempt.TimeSpentSeconds,
	)
	if err != nil {
		return err
	}

	s.persist()
	return nil
}

// ClearAttempts deletes every attempt row and persists. Attempts are never
// deleted individually; reset is all-or-nothing per store.
func (s *Store) ClearAttempts(ctx context.Context) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return err
	}

	s.persist()
	return nil
}

// AttemptCount reports the number of stored attempt rows.
func (s *Store) AttemptCount(ctx context.Context) (int, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&count)
	return count, err
}
