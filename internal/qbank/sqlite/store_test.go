package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"qbank/internal/assets"
	"qbank/internal/qbank"
	"qbank/internal/qcrypt"
	"qbank/internal/snapshot"
)

const testDump = `CREATE TABLE questions (
	id TEXT PRIMARY KEY,
	subject TEXT,
	topic TEXT,
	question TEXT,
	options TEXT,
	correct_index INTEGER,
	explanation TEXT,
	difficulty TEXT
);
CREATE TABLE attempts (
	question_id TEXT,
	selected_option_index INTEGER,
	is_correct INTEGER,
	timestamp INTEGER,
	time_spent_seconds INTEGER
);
INSERT INTO questions VALUES ('q1', 'Medicine', 'Cardiology', 'Question one?', '["a1","a2","a3","a4"]', 0, 'Expl one', 'Easy');
INSERT INTO questions VALUES ('q2', 'Medicine', 'Cardiology', 'Question two?', '["b1","b2","b3","b4"]', 1, 'Expl two', 'Medium');
INSERT INTO questions VALUES ('q3', 'Surgery', '', 'Question three?', '["c1","c2","c3","c4"]', 3, 'Expl three', 'Hard')`

// testDumpStatements is the number of well-formed statements in testDump.
const testDumpStatements = 5

type memSource struct {
	mu        sync.Mutex
	mainCalls int
	dump      string
	pools     map[string]string
}

func (s *memSource) MainDump(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainCalls++
	return []byte(s.dump), nil
}

func (s *memSource) PoolDump(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.pools[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(payload), nil
}

func (s *memSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainCalls
}

func newTestStore(t *testing.T) (*Store, *memSource, snapshot.Store) {
	t.Helper()

	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	source := &memSource{dump: testDump, pools: map[string]string{}}

	store := NewStore(seeds, source)
	t.Cleanup(func() { _ = store.Close() })
	return store, source, seeds
}

func initializedStore(t *testing.T) *Store {
	t.Helper()

	store, _, _ := newTestStore(t)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return store
}

func TestInitializeSeedsFromDump(t *testing.T) {
	store, source, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	report := store.LastInit()
	if report.FromSnapshot {
		t.Fatal("first Initialize should seed, not load a snapshot")
	}
	if report.Executed != testDumpStatements {
		t.Fatalf("executed %d statements, want %d", report.Executed, testDumpStatements)
	}
	if report.Skipped != 0 {
		t.Fatalf("skipped %d statements, want 0", report.Skipped)
	}
	if source.calls() != 1 {
		t.Fatalf("seed asset fetched %d times, want 1", source.calls())
	}

	questions, err := store.AllQuestions(ctx)
	if err != nil {
		t.Fatalf("AllQuestions failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
}

func TestSeededQuestionsSatisfyOptionInvariants(t *testing.T) {
	store := initializedStore(t)

	questions, err := store.AllQuestions(context.Background())
	if err != nil {
		t.Fatalf("AllQuestions failed: %v", err)
	}
	for _, question := range questions {
		if len(question.Options) != qbank.OptionCount {
			t.Fatalf("question %s has %d options, want %d", question.ID, len(question.Options), qbank.OptionCount)
		}
		if !question.Valid() {
			t.Fatalf("question %s violates the correct-index invariant: %+v", question.ID, question)
		}
	}
}

func TestInitializeConcurrentCallersSeedOnce(t *testing.T) {
	store, source, _ := newTestStore(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = store.Initialize(ctx)
		}(i)
	}
	wg.Wait()

	for idx, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: Initialize failed: %v", idx, err)
		}
	}

	if source.calls() != 1 {
		t.Fatalf("seed ran %d times, want exactly 1", source.calls())
	}
	if report := store.LastInit(); report.Executed != testDumpStatements {
		t.Fatalf("executed %d statements, want %d (no N-fold replay)", report.Executed, testDumpStatements)
	}

	questions, err := store.AllQuestions(ctx)
	if err != nil {
		t.Fatalf("AllQuestions failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("double seeding duplicated rows: got %d questions, want 3", len(questions))
	}
}

func TestInitializeLoadsSnapshotWithoutReplay(t *testing.T) {
	ctx := context.Background()

	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	source := &memSource{dump: testDump}

	first := NewStore(seeds, source)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := NewStore(seeds, source)
	defer second.Close()
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	report := second.LastInit()
	if !report.FromSnapshot {
		t.Fatal("second Initialize should load the durable snapshot")
	}
	if report.Executed != 0 {
		t.Fatalf("snapshot load replayed %d statements, want 0", report.Executed)
	}
	if source.calls() != 1 {
		t.Fatalf("seed asset fetched %d times across both stores, want 1", source.calls())
	}

	questions, err := second.AllQuestions(ctx)
	if err != nil {
		t.Fatalf("AllQuestions failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("snapshot lost data: got %d questions, want 3", len(questions))
	}
}

func TestInitializeToleratesMalformedStatements(t *testing.T) {
	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	source := &memSource{dump: testDump + ";\nINSERT INTO questions VALUES ('broken'"}

	store := NewStore(seeds, source)
	defer store.Close()

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize should survive one bad row: %v", err)
	}

	report := store.LastInit()
	if report.Skipped != 1 {
		t.Fatalf("skipped %d statements, want 1", report.Skipped)
	}
	if report.Executed != testDumpStatements {
		t.Fatalf("executed %d statements, want %d", report.Executed, testDumpStatements)
	}
}

func TestInitializeFailsWhenSeedYieldsNothing(t *testing.T) {
	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	// Wrong-key garbage: nothing parses as SQL.
	source := &memSource{dump: string(qcrypt.Encrypt([]byte(testDump), "wrong"))}

	store := NewStore(seeds, source)
	defer store.Close()

	err = store.Initialize(context.Background())
	if !errors.Is(err, qbank.ErrSeedFailure) {
		t.Fatalf("Initialize error = %v, want ErrSeedFailure", err)
	}
}

func TestQueriesBeforeInitializeFail(t *testing.T) {
	store, _, _ := newTestStore(t)

	if _, err := store.AllQuestions(context.Background()); !errors.Is(err, qbank.ErrNotInitialized) {
		t.Fatalf("AllQuestions error = %v, want ErrNotInitialized", err)
	}
}

func TestQuestionsBySubjectAndTopic(t *testing.T) {
	store := initializedStore(t)
	ctx := context.Background()

	medicine, err := store.QuestionsBySubject(ctx, qbank.SubjectMedicine)
	if err != nil {
		t.Fatalf("QuestionsBySubject failed: %v", err)
	}
	if len(medicine) != 2 {
		t.Fatalf("got %d Medicine questions, want 2", len(medicine))
	}

	cardio, err := store.QuestionsByTopic(ctx, "Cardiology")
	if err != nil {
		t.Fatalf("QuestionsByTopic failed: %v", err)
	}
	if len(cardio) != 2 {
		t.Fatalf("got %d Cardiology questions, want 2", len(cardio))
	}
	for _, question := range cardio {
		if len(question.Tags) != 1 || question.Tags[0] != "Cardiology" {
			t.Fatalf("topic should surface as a tag list, got %v", question.Tags)
		}
	}

	none, err := store.QuestionsBySubject(ctx, qbank.SubjectPsychiatry)
	if err != nil {
		t.Fatalf("QuestionsBySubject failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("got %d Psychiatry questions, want 0", len(none))
	}
}

func TestWeakQuestionsUseLatestAttemptOnly(t *testing.T) {
	store := initializedStore(t)
	ctx := context.Background()

	// q1: wrong first, right later -> not weak.
	saveTestAttempt(t, store, "q1", false, 1000)
	saveTestAttempt(t, store, "q1", true, 2000)

	// q2: right first, wrong later -> weak.
	saveTestAttempt(t, store, "q2", true, 1000)
	saveTestAttempt(t, store, "q2", false, 2000)

	weak, err := store.WeakQuestions(ctx)
	if err != nil {
		t.Fatalf("WeakQuestions failed: %v", err)
	}
	if len(weak) != 1 {
		t.Fatalf("got %d weak questions, want 1", len(weak))
	}
	if weak[0].ID != "q2" {
		t.Fatalf("weak question is %s, want q2", weak[0].ID)
	}
}

func TestSaveAttemptPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()

	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	source := &memSource{dump: testDump}

	first := NewStore(seeds, source)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	saveTestAttempt(t, first, "q1", false, 1234)
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := NewStore(seeds, source)
	defer second.Close()
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("reopen Initialize failed: %v", err)
	}

	count, err := second.AttemptCount(ctx)
	if err != nil {
		t.Fatalf("AttemptCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("attempt lost across reopen: count=%d, want 1", count)
	}
}

func TestClearAttempts(t *testing.T) {
	store := initializedStore(t)
	ctx := context.Background()

	saveTestAttempt(t, store, "q1", false, 1000)
	saveTestAttempt(t, store, "q2", true, 2000)

	if err := store.ClearAttempts(ctx); err != nil {
		t.Fatalf("ClearAttempts failed: %v", err)
	}

	count, err := store.AttemptCount(ctx)
	if err != nil {
		t.Fatalf("AttemptCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("attempt count after clear = %d, want 0", count)
	}

	weak, err := store.WeakQuestions(ctx)
	if err != nil {
		t.Fatalf("WeakQuestions failed: %v", err)
	}
	if len(weak) != 0 {
		t.Fatalf("weak questions after clear = %d, want 0", len(weak))
	}
}

func TestInitializeFromObfuscatedAssetFile(t *testing.T) {
	ctx := context.Background()
	const key = "QBANK_SEED_KEY_2025"

	assetsDir := t.TempDir()
	sealed := qcrypt.Encrypt([]byte(testDump), key)
	if err := os.WriteFile(filepath.Join(assetsDir, "initial_db.enc"), sealed, 0o644); err != nil {
		t.Fatalf("write asset fixture: %v", err)
	}

	seeds, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	store := NewStore(seeds, assets.Dir{Path: assetsDir, Key: key})
	defer store.Close()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize from sealed asset failed: %v", err)
	}

	questions, err := store.AllQuestions(ctx)
	if err != nil {
		t.Fatalf("AllQuestions failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
}

func saveTestAttempt(t *testing.T, store *Store, questionID string, correct bool, timestamp int64) {
	t.Helper()

	selected := 1
	if correct && questionID == "q1" {
		selected = 0
	}
	err := store.SaveAttempt(context.Background(), qbank.Attempt{
		QuestionID:          questionID,
		SelectedOptionIndex: selected,
		IsCorrect:           correct,
		Timestamp:           timestamp,
		TimeSpentSeconds:    30,
	})
	if err != nil {
		t.Fatalf("SaveAttempt(%s) failed: %v", questionID, err)
	}
}
