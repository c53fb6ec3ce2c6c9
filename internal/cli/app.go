// Package cli is the interactive practice shell over the storage engine.
// It stands in for the app UI: every command goes through the same engine
// operations the real screens use.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"qbank/internal/kvcache"
	"qbank/internal/qbank"
	"qbank/internal/qbank/sqlite"
	"qbank/internal/syncengine"
)

type App struct {
	Store  *sqlite.Store
	Engine *syncengine.Engine
	Cache  *kvcache.Cache
}

func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "qbank")
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(out)
		case "exit":
			return nil
		case "subjects":
			a.runSubjects(out)
		case "browse":
			if len(args) < 2 {
				fmt.Fprintln(out, "usage: browse <subject>")
				continue
			}
			if err := a.runBrowse(ctx, out, strings.Join(args[1:], " ")); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "topic":
			if len(args) < 2 {
				fmt.Fprintln(out, "usage: topic <topic>")
				continue
			}
			if err := a.runTopic(ctx, out, strings.Join(args[1:], " ")); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "archive":
			if len(args) != 4 {
				fmt.Fprintln(out, "usage: archive <block> <college> <year>")
				continue
			}
			if err := a.runArchive(ctx, out, args[1], args[2], args[3]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "practice":
			if len(args) < 2 {
				fmt.Fprintln(out, "usage: practice <subject>")
				continue
			}
			if err := a.runPractice(ctx, reader, out, strings.Join(args[1:], " ")); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "weak":
			if err := a.runWeak(ctx, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "stats":
			if err := a.runStats(out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "bookmark":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: bookmark <question_id>")
				continue
			}
			if err := a.runBookmark(out, args[1]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "sync":
			if err := a.Engine.SyncAttempts(ctx); err != nil {
				fmt.Fprintf(out, "sync failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "sync complete.")
			}
		case "reset":
			if err := a.runReset(ctx, reader, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  subjects              list subjects and question counts
  browse <subject>      list questions for a subject
  topic <topic>         list questions for a topic
  archive <block> <college> <year>
                        list an exam-archive pool
  practice <subject>    answer questions interactively
  weak                  list questions whose latest attempt was wrong
  stats                 show totals, accuracy and streak
  bookmark <id>         toggle a bookmark
  sync                  pull remote attempts and merge
  reset                 clear all progress (keeps the AI key)
  help, exit`)
}

func (a *App) runSubjects(out io.Writer) {
	counts, err := a.Cache.Counts()
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	for _, subject := range qbank.Subjects() {
		fmt.Fprintf(out, "%-20s %d\n", subject, counts.Subjects[subject])
	}
	fmt.Fprintf(out, "%-20s %d\n", "total", counts.Total)
}

func (a *App) runBrowse(ctx context.Context, out io.Writer, subject string) error {
	questions, err := a.Store.QuestionsBySubject(ctx, qbank.Subject(subject))
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintf(out, "no questions for %q.\n", subject)
		return nil
	}
	for _, question := range questions {
		fmt.Fprintf(out, "%s  %s\n", question.ID, question.Text)
	}
	return nil
}

func (a *App) runTopic(ctx context.Context, out io.Writer, topic string) error {
	questions, err := a.Store.QuestionsByTopic(ctx, topic)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintf(out, "no questions for topic %q.\n", topic)
		return nil
	}
	for _, question := range questions {
		fmt.Fprintf(out, "%s  [%s]  %s\n", question.ID, question.Subject, question.Text)
	}
	return nil
}

// runArchive lists a "preproff" pool. Archive attempts live in their own
// namespace and never count toward subject mastery, so this stays a listing
// rather than a practice loop.
func (a *App) runArchive(ctx context.Context, out io.Writer, block, college, year string) error {
	questions, err := a.Store.ArchiveQuestions(ctx, block, college, year)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintf(out, "no archive questions for %s / %s / %s.\n", block, college, year)
		return nil
	}
	for _, question := range questions {
		fmt.Fprintf(out, "%s  %s\n", question.ID, question.Text)
	}
	return nil
}

func (a *App) runPractice(ctx context.Context, reader *bufio.Reader, out io.Writer, subject string) error {
	questions, err := a.Store.QuestionsBySubject(ctx, qbank.Subject(subject))
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintf(out, "no questions for %q.\n", subject)
		return nil
	}

	for _, question := range questions {
		fmt.Fprintf(out, "\n%s\n", question.Text)
		for idx, option := range question.Options {
			fmt.Fprintf(out, "  %c. %s\n", 'A'+idx, option)
		}
		fmt.Fprint(out, "answer (A-D, or q to stop): ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.ToUpper(strings.TrimSpace(line))
		if line == "Q" {
			return nil
		}
		if len(line) != 1 || line[0] < 'A' || int(line[0]-'A') >= len(question.Options) {
			fmt.Fprintln(out, "invalid answer, skipping.")
			continue
		}

		attempt, err := a.Engine.RecordAttempt(ctx, qbank.PoolMain, question, int(line[0]-'A'), 0)
		if err != nil {
			return err
		}
		if attempt.IsCorrect {
			fmt.Fprintln(out, "correct!")
		} else {
			fmt.Fprintf(out, "incorrect. %s\n", question.Explanation)
		}
	}
	return nil
}

func (a *App) runWeak(ctx context.Context, out io.Writer) error {
	questions, err := a.Store.WeakQuestions(ctx)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintln(out, "no weak questions.")
		return nil
	}
	for _, question := range questions {
		fmt.Fprintf(out, "%s  [%s]  %s\n", question.ID, question.Subject, question.Text)
	}
	return nil
}

func (a *App) runStats(out io.Writer) error {
	stats, err := a.Cache.Stats()
	if err != nil {
		return err
	}

	accuracy := 0.0
	if stats.TotalQuestionsAttempted > 0 {
		accuracy = 100 * float64(stats.CorrectAnswers) / float64(stats.TotalQuestionsAttempted)
	}
	fmt.Fprintf(out, "attempted=%d correct=%d accuracy=%s%% streak=%d days\n",
		stats.TotalQuestionsAttempted,
		stats.CorrectAnswers,
		strconv.FormatFloat(accuracy, 'f', 1, 64),
		stats.StreakDays,
	)
	for subject, acc := range stats.SubjectAccuracy {
		fmt.Fprintf(out, "  %-20s %d/%d\n", subject, acc.Correct, acc.Attempted)
	}
	return nil
}

func (a *App) runBookmark(out io.Writer, questionID string) error {
	bookmarks, err := a.Cache.ToggleBookmark(qbank.PoolMain, questionID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d bookmarks.\n", len(bookmarks))
	return nil
}

func (a *App) runReset(ctx context.Context, reader *bufio.Reader, out io.Writer) error {
	fmt.Fprint(out, "this clears all progress everywhere. type 'yes' to confirm: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != "yes" {
		fmt.Fprintln(out, "cancelled.")
		return nil
	}

	if err := a.Engine.ResetAllProgress(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "progress reset.")
	return nil
}
