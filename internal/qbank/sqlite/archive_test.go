package sqlite

import (
	"context"
	"testing"
)

func TestParseArchivePayloadJSONArray(t *testing.T) {
	payload := `[
		{"question": "First?", "options": ["A. one", "B. two", "C. three", "D. four"], "answer": "b", "explanation": "e1", "year": "2024"},
		{"text": "Second?", "options": ["one", "two", "three", "four"], "correctIndex": 3, "explanation": "e2", "year": "2024"},
		{"text": "No options, dropped", "explanation": "e3"}
	]`

	rows := parseArchivePayload(payload)
	if len(rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(rows))
	}

	if rows[0].Text != "First?" {
		t.Fatalf("question field not promoted to text: %q", rows[0].Text)
	}
	if rows[0].CorrectIndex != 1 {
		t.Fatalf("answer letter b should map to index 1, got %d", rows[0].CorrectIndex)
	}
	if rows[1].CorrectIndex != 3 {
		t.Fatalf("explicit correctIndex lost: %d", rows[1].CorrectIndex)
	}
}

func TestParseArchivePayloadFlattensNestedArrays(t *testing.T) {
	payload := `[
		[{"text": "Inner one?", "options": ["a", "b", "c", "d"], "correctIndex": 0}],
		{"text": "Outer?", "options": ["a", "b", "c", "d"], "correctIndex": 1}
	]`

	rows := parseArchivePayload(payload)
	if len(rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(rows))
	}
	if rows[0].Text != "Inner one?" || rows[1].Text != "Outer?" {
		t.Fatalf("nested rows lost: %+v", rows)
	}
}

func TestParseArchivePayloadInsertBatch(t *testing.T) {
	payload := `INSERT INTO preproff_questions (text, options, correct_index, explanation, subject, topic, difficulty, block, college, year)
VALUES ('What''s the answer?', '["a","b","c","d"]', 2, 'It just is', 'Block J', 'Block J', 'Medium', 'Block J', 'KMC', '2024');
INSERT INTO preproff_questions (text, options, correct_index, explanation, subject, topic, difficulty, block, college, year)
VALUES ('Second one?', '["w","x","y","z"]', 0, 'Because', 'Block J', 'Block J', 'Medium', 'Block J', 'KMC', '2023');`

	rows := parseArchivePayload(payload)
	if len(rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(rows))
	}

	if rows[0].Text != "What's the answer?" {
		t.Fatalf("doubled quote not unescaped: %q", rows[0].Text)
	}
	if rows[0].CorrectIndex != 2 {
		t.Fatalf("correct index = %d, want 2", rows[0].CorrectIndex)
	}
	if len(rows[0].Options) != 4 || rows[0].Options[0] != "a" {
		t.Fatalf("options = %v", rows[0].Options)
	}
	if rows[0].Year != "2024" || rows[1].Year != "2023" {
		t.Fatalf("years = %q, %q", rows[0].Year, rows[1].Year)
	}
}

func TestParseArchivePayloadUnknownFormat(t *testing.T) {
	if rows := parseArchivePayload("just some text"); rows != nil {
		t.Fatalf("unknown payload parsed as %v", rows)
	}
}

func TestSplitSQLValues(t *testing.T) {
	values := splitSQLValues(`'quoted, with comma', '["a","b"]', 3, 'it''s escaped', plain`)

	want := []string{"quoted, with comma", `["a","b"]`, "3", "it's escaped", "plain"}
	if len(values) != len(want) {
		t.Fatalf("got %d values %v, want %d", len(values), values, len(want))
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("value[%d] = %q, want %q", i, values[i], want[i])
		}
	}
}

func TestCleanOptionsStripsLetterPrefixes(t *testing.T) {
	cleaned := cleanOptions([]string{"A. first", "B.second", "C. third", "plain"})

	want := []string{"first", "second", "third", "plain"}
	for i := range want {
		if cleaned[i] != want[i] {
			t.Fatalf("option[%d] = %q, want %q", i, cleaned[i], want[i])
		}
	}
}

func TestPoolAssetName(t *testing.T) {
	cases := []struct {
		block, college string
		want           string
	}{
		{"Block J", "KMC", "kmc J"},
		{"Block K", "MMC", "mmc K"},
		{"J", "KMC", "kmc J"},
	}
	for _, tc := range cases {
		if got := poolAssetName(tc.block, tc.college); got != tc.want {
			t.Fatalf("poolAssetName(%q, %q) = %q, want %q", tc.block, tc.college, got, tc.want)
		}
	}
}

func TestArchiveQuestionsImportsFromPoolAsset(t *testing.T) {
	store, source, _ := newTestStore(t)
	ctx := context.Background()

	source.mu.Lock()
	source.pools["kmc J"] = `[
		{"text": "Archive one?", "options": ["A. one", "B. two", "C. three", "D. four"], "answer": "c", "explanation": "e1", "year": "2024"},
		{"text": "Archive two?", "options": ["w", "x", "y", "z"], "correctIndex": 1, "explanation": "e2", "year": "2024"},
		{"text": "Other year", "options": ["a", "b", "c", "d"], "correctIndex": 0, "year": "2023"}
	]`
	source.mu.Unlock()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	questions, err := store.ArchiveQuestions(ctx, "Block J", "KMC", "2024")
	if err != nil {
		t.Fatalf("ArchiveQuestions failed: %v", err)
	}

	if len(questions) != 2 {
		t.Fatalf("got %d archive questions, want 2 (2023 row excluded)", len(questions))
	}
	byText := make(map[string]int)
	for _, question := range questions {
		byText[question.Text] = question.CorrectIndex
		if len(question.Options) != 4 {
			t.Fatalf("question %q has %d options", question.Text, len(question.Options))
		}
		if question.Block != "Block J" || question.College != "KMC" || question.Year != "2024" {
			t.Fatalf("pool attribution wrong: %+v", question)
		}
	}
	if byText["Archive one?"] != 2 {
		t.Fatalf("answer letter c should map to index 2, got %d", byText["Archive one?"])
	}

	for _, question := range questions {
		if question.Text == "Archive one?" && question.Options[0] != "one" {
			t.Fatalf("letter prefix not stripped: %v", question.Options)
		}
	}
}

func TestArchiveQuestionsReimportsOnCountMismatch(t *testing.T) {
	store, source, _ := newTestStore(t)
	ctx := context.Background()

	source.mu.Lock()
	source.pools["kmc J"] = `[
		{"text": "One?", "options": ["a", "b", "c", "d"], "correctIndex": 0, "year": "2024"}
	]`
	source.mu.Unlock()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := store.ArchiveQuestions(ctx, "Block J", "KMC", "2024"); err != nil {
		t.Fatalf("first ArchiveQuestions failed: %v", err)
	}

	// A new asset ships an extra row; the next read picks it up.
	source.mu.Lock()
	source.pools["kmc J"] = `[
		{"text": "One?", "options": ["a", "b", "c", "d"], "correctIndex": 0, "year": "2024"},
		{"text": "Two?", "options": ["a", "b", "c", "d"], "correctIndex": 1, "year": "2024"}
	]`
	source.mu.Unlock()

	questions, err := store.ArchiveQuestions(ctx, "Block J", "KMC", "2024")
	if err != nil {
		t.Fatalf("second ArchiveQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d archive questions after asset update, want 2", len(questions))
	}
}

func TestArchiveQuestionsServesLocalRowsWhenAssetMissing(t *testing.T) {
	store, source, _ := newTestStore(t)
	ctx := context.Background()

	source.mu.Lock()
	source.pools["kmc J"] = `[
		{"text": "One?", "options": ["a", "b", "c", "d"], "correctIndex": 0, "year": "2024"}
	]`
	source.mu.Unlock()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := store.ArchiveQuestions(ctx, "Block J", "KMC", "2024"); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	// Asset disappears; previously imported rows still serve.
	source.mu.Lock()
	delete(source.pools, "kmc J")
	source.mu.Unlock()

	questions, err := store.ArchiveQuestions(ctx, "Block J", "KMC", "2024")
	if err != nil {
		t.Fatalf("ArchiveQuestions should fall back to local rows: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d local archive questions, want 1", len(questions))
	}
}
