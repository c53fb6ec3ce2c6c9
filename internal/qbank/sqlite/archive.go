package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"qbank/internal/qbank"
)

// Secondary "preproff" exam-archive pools live in their own flat table,
// loaded lazily per (block, college, year) and never merged into the main
// bank. The table is created as a migration on every init because snapshots
// taken by older builds predate it.
func (s *Store) ensureArchiveTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS preproff_questions (
			id TEXT PRIMARY KEY,
			text TEXT,
			options TEXT,
			correct_index INTEGER,
			explanation TEXT,
			subject TEXT,
			topic TEXT,
			difficulty TEXT,
			block TEXT,
			college TEXT,
			year TEXT
		)`)
	return err
}

// ArchiveQuestions returns the archive pool for one (block, college, year),
// importing or refreshing it from the bundled pool asset first. A failed
// fetch serves whatever was imported previously.
func (s *Store) ArchiveQuestions(ctx context.Context, block, college, year string) ([]qbank.ArchiveQuestion, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	if err := s.refreshArchive(ctx, block, college, year); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"block":   block,
			"college": college,
			"year":    year,
		}).Warn("archive pool refresh failed, serving local rows")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, options, correct_index, explanation, block, college, year
		FROM preproff_questions
		WHERE block = ? AND college = ? AND year = ?`,
		block, college, year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]qbank.ArchiveQuestion, 0)
	for rows.Next() {
		var (
			question    qbank.ArchiveQuestion
			optionsJSON string
		)
		if err := rows.Scan(
			&question.ID,
			&question.Text,
			&optionsJSON,
			&question.CorrectIndex,
			&question.Explanation,
			&question.Block,
			&question.College,
			&question.Year,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(optionsJSON), &question.Options); err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

// refreshArchive compares the local row count against the pool asset and
// reimports when they differ, so content fixes shipped in a new asset
// always win.
func (s *Store) refreshArchive(ctx context.Context, block, college, year string) error {
	var localCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM preproff_questions
		WHERE block = ? AND college = ? AND year = ?`,
		block, college, year,
	).Scan(&localCount)
	if err != nil {
		return err
	}

	payload, err := s.assets.PoolDump(ctx, poolAssetName(block, college))
	if err != nil {
		return err
	}

	parsed := parseArchivePayload(string(payload))
	forYear := make([]archiveRow, 0, len(parsed))
	for _, row := range parsed {
		if row.Year == year || row.Year == "" {
			forYear = append(forYear, row)
		}
	}

	if localCount == len(forYear) {
		return nil
	}

	log.WithFields(log.Fields{
		"local": localCount,
		"asset": len(forYear),
		"block": block,
	}).Info("archive pool count mismatch, reimporting")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM preproff_questions
		WHERE block = ? AND college = ? AND year = ?`,
		block, college, year,
	); err != nil {
		return err
	}

	for idx, row := range forYear {
		rowYear := row.Year
		if rowYear == "" {
			rowYear = year
		}

		optionsJSON, err := json.Marshal(cleanOptions(row.Options))
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO preproff_questions
			(id, text, options, correct_index, explanation, subject, topic, difficulty, block, college, year)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fmt.Sprintf("%s_%s_%d", college, rowYear, idx),
			row.Text,
			string(optionsJSON),
			row.CorrectIndex,
			row.Explanation,
			block,
			block,
			string(qbank.DifficultyMedium),
			block,
			college,
			rowYear,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.persist()
	return nil
}

var optionPrefixRe = regexp.MustCompile(`^[A-E]\.\s*`)

// cleanOptions strips leading "A. " style letters so options render the
// same whether an asset ships them lettered or bare.
func cleanOptions(options []string) []string {
	out := make([]string, len(options))
	for i, opt := range options {
		out[i] = optionPrefixRe.ReplaceAllString(opt, "")
	}
	return out
}

// poolAssetName builds the asset file name for a pool, e.g.
// ("Block J", "KMC") -> "kmc J".
func poolAssetName(block, college string) string {
	return strings.ToLower(college) + " " + strings.TrimPrefix(block, "Block ")
}

type archiveRow struct {
	Text         string   `json:"text"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Year         string   `json:"year"`
}

// parseArchivePayload accepts either form a pool asset ships in: a JSON
// array of question objects (possibly nested), or a batch of INSERT
// statements for the flat preproff table.
func parseArchivePayload(text string) []archiveRow {
	var nested []json.RawMessage
	if err := json.Unmarshal([]byte(text), &nested); err == nil {
		rows := make([]archiveRow, 0, len(nested))
		for _, item := range nested {
			var row archiveRow
			if err := json.Unmarshal(item, &row); err == nil {
				rows = append(rows, normalizeArchiveRow(row))
				continue
			}
			// Nested arrays get flattened one level.
			var inner []archiveRow
			if err := json.Unmarshal(item, &inner); err == nil {
				for _, row := range inner {
					rows = append(rows, normalizeArchiveRow(row))
				}
			}
		}
		return filterArchiveRows(rows)
	}

	if strings.Contains(text, "INSERT INTO preproff") {
		return filterArchiveRows(parseArchiveInserts(text))
	}

	return nil
}

func filterArchiveRows(rows []archiveRow) []archiveRow {
	out := make([]archiveRow, 0, len(rows))
	for _, row := range rows {
		if len(row.Options) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

func normalizeArchiveRow(row archiveRow) archiveRow {
	if row.Text == "" {
		row.Text = row.Question
	}
	if row.CorrectIndex == 0 && row.Answer != "" {
		letter := strings.ToLower(strings.TrimSpace(row.Answer))
		if len(letter) == 1 && letter[0] >= 'a' && letter[0] <= 'e' {
			row.CorrectIndex = int(letter[0] - 'a')
		}
	}
	return row
}

var insertSplitRe = regexp.MustCompile(`(?i)INSERT INTO preproff`)

// parseArchiveInserts extracts rows from a standalone INSERT-statement
// batch. Column order in these assets is fixed: text, options,
// correct_index, explanation, subject, topic, difficulty, block, college,
// year.
func parseArchiveInserts(text string) []archiveRow {
	indexes := insertSplitRe.FindAllStringIndex(text, -1)
	rows := make([]archiveRow, 0, len(indexes))

	for i, loc := range indexes {
		end := len(text)
		if i+1 < len(indexes) {
			end = indexes[i+1][0]
		}
		statement := text[loc[0]:end]

		open := strings.Index(strings.ToUpper(statement), "VALUES")
		if open < 0 {
			continue
		}
		valuesPart := statement[open+len("VALUES"):]
		valuesPart = strings.TrimSpace(valuesPart)
		valuesPart = strings.TrimPrefix(valuesPart, "(")
		valuesPart = strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(valuesPart), ";")), ")")

		values := splitSQLValues(valuesPart)
		if len(values) < 4 {
			continue
		}

		var options []string
		if err := json.Unmarshal([]byte(values[1]), &options); err != nil {
			continue
		}

		correctIndex, _ := strconv.Atoi(values[2])
		row := archiveRow{
			Text:         values[0],
			Options:      options,
			CorrectIndex: correctIndex,
			Explanation:  values[3],
		}
		if len(values) >= 10 {
			row.Year = values[9]
		}
		rows = append(rows, row)
	}

	return rows
}

// splitSQLValues walks a VALUES(...) list honoring single-quoted strings
// with '' escapes. Unquoted tokens (numbers) are returned trimmed.
func splitSQLValues(s string) []string {
	values := make([]string, 0, 10)
	var current strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if ch == '\'' && !inQuote {
			inQuote = true
			continue
		}
		if ch == '\'' && inQuote {
			if i+1 < len(s) && s[i+1] == '\'' {
				current.WriteByte('\'')
				i++
				continue
			}
			inQuote = false
			values = append(values, current.String())
			current.Reset()
			continue
		}
		if ch == ',' && !inQuote {
			if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
				values = append(values, trimmed)
			}
			current.Reset()
			continue
		}
		if inQuote || (ch != ' ' && ch != '\n' && ch != '\r' && ch != '\t') {
			current.WriteByte(ch)
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		values = append(values, trimmed)
	}

	return values
}
