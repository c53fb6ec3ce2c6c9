// Package qbank holds the domain model shared by the embedded store, the
// fast cache, the sync engine, and the remote backend client.
package qbank

// Subject is one of the fixed question-bank subjects.
type Subject string

const (
	SubjectENT               Subject = "ENT"
	SubjectOphthalmology     Subject = "Ophthalmology"
	SubjectMedicine          Subject = "Medicine"
	SubjectSurgery           Subject = "Surgery"
	SubjectCommunityMedicine Subject = "Community Medicine"
	SubjectForensicMedicine  Subject = "Forensic Medicine"
	SubjectPathology         Subject = "Pathology"
	SubjectPharmacology      Subject = "Pharmacology"
	SubjectGynecology        Subject = "Gynecology"
	SubjectPsychiatry        Subject = "Psychiatry"
)

// Subjects lists every known subject in display order.
func Subjects() []Subject {
	return []Subject{
		SubjectENT,
		SubjectOphthalmology,
		SubjectMedicine,
		SubjectSurgery,
		SubjectCommunityMedicine,
		SubjectForensicMedicine,
		SubjectPathology,
		SubjectPharmacology,
		SubjectGynecology,
		SubjectPsychiatry,
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// OptionCount is the fixed number of choices per question.
const OptionCount = 4

// Question is immutable once seeded; the store is read-only for questions.
type Question struct {
	ID           string     `json:"id"`
	Subject      Subject    `json:"subject"`
	Text         string     `json:"text"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correctIndex"`
	Explanation  string     `json:"explanation"`
	Tags         []string   `json:"tags"`
	Difficulty   Difficulty `json:"difficulty"`
}

// Valid reports whether the seeded row satisfies the option invariants.
func (q Question) Valid() bool {
	return len(q.Options) == OptionCount &&
		q.CorrectIndex >= 0 &&
		q.CorrectIndex < len(q.Options)
}

// Attempt is an append-only answer event. Timestamp (epoch millis) doubles
// as the attempt identity during merge; there is no separate id.
type Attempt struct {
	QuestionID          string `json:"questionId"`
	SelectedOptionIndex int    `json:"selectedOptionIndex"`
	IsCorrect           bool   `json:"isCorrect"`
	Timestamp           int64  `json:"timestamp"`
	TimeSpentSeconds    int    `json:"timeSpentSeconds"`
}

// SubjectAccuracy tracks attempted/correct tallies for one subject.
type SubjectAccuracy struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
}

// UserStats are derived, cache-resident aggregates over main-pool attempts.
type UserStats struct {
	TotalQuestionsAttempted int                        `json:"totalQuestionsAttempted"`
	CorrectAnswers          int                        `json:"correctAnswers"`
	StreakDays              int                        `json:"streakDays"`
	LastActiveDate          string                     `json:"lastActiveDate"` // ISO date, YYYY-MM-DD
	SubjectAccuracy         map[Subject]SubjectAccuracy `json:"subjectAccuracy"`
}

// CachedCounts are display-only tallies recomputed on every full question
// read. Never a source of truth.
type CachedCounts struct {
	Total    int             `json:"total"`
	Subjects map[Subject]int `json:"subjects"`
}

// Pool identifies an independently tracked attempt/bookmark namespace.
// Practicing an AI-generated or archive question must never affect main
// subject-mastery statistics.
type Pool string

const (
	PoolMain    Pool = "main"
	PoolAI      Pool = "ai"
	PoolArchive Pool = "archive"
)

// ArchiveQuestion is a row from a secondary exam-archive ("preproff") pool.
// These live in their own table and are never merged into the main bank.
type ArchiveQuestion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Block        string   `json:"block"`
	College      string   `json:"college"`
	Year         string   `json:"year"`
}
