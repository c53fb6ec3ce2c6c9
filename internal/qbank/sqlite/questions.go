package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"qbank/internal/qbank"
)

const questionColumns = `id, subject, topic, question, options, correct_index, explanation, difficulty`

// AllQuestions returns every seeded question.
func (s *Store) AllQuestions(ctx context.Context) ([]qbank.Question, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions`)
}

// QuestionsBySubject returns the questions for one subject.
func (s *Store) QuestionsBySubject(ctx context.Context, subject qbank.Subject) ([]qbank.Question, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions WHERE subject = ?`, string(subject))
}

// QuestionsByTopic returns the questions tagged with one topic.
func (s *Store) QuestionsByTopic(ctx context.Context, topic string) ([]qbank.Question, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions WHERE topic = ?`, topic)
}

// WeakQuestions returns questions whose single most recent attempt was
// incorrect. A question answered wrong once but correctly later is not
// weak; only the chronologically latest attempt counts.
func (s *Store) WeakQuestions(ctx context.Context) ([]qbank.Question, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.queryQuestions(ctx, `
		SELECT q.id, q.subject, q.topic, q.question, q.options, q.correct_index, q.explanation, q.difficulty
		FROM questions q
		JOIN attempts a ON q.id = a.question_id
		WHERE a.timestamp = (
			SELECT MAX(timestamp)
			FROM attempts
			WHERE question_id = q.id
		)
		AND a.is_correct = 0
		GROUP BY q.id`)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]qbank.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]qbank.Question, 0)
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func scanQuestion(rows *sql.Rows) (qbank.Question, error) {
	var (
		question    qbank.Question
		topic       sql.NullString
		optionsJSON string
		subject     string
		difficulty  string
	)
	if err := rows.Scan(
		&question.ID,
		&subject,
		&topic,
		&question.Text,
		&optionsJSON,
		&question.CorrectIndex,
		&question.Explanation,
		&difficulty,
	); err != nil {
		return qbank.Question{}, err
	}

	question.Subject = qbank.Subject(subject)
	question.Difficulty = qbank.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(optionsJSON), &question.Options); err != nil {
		return qbank.Question{}, err
	}

	// The schema stores at most one topic per question; the entity exposes
	// it as a tag list.
	question.Tags = []string{}
	if topic.Valid && topic.String != "" {
		question.Tags = []string{topic.String}
	}

	return question, nil
}
