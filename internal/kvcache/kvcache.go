// Package kvcache is the fast local key/value layer: per-pool attempt
// history, bookmarks, derived stats and counts, the version marker, and the
// AI-provider credential. It is independent of the embedded engine's own
// copy so the UI can read synchronously without touching sqlite.
package kvcache

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"qbank/internal/qbank"
)

// Well-known cache keys. Each pool gets its own attempts/bookmarks
// namespace; pools never share statistics.
const (
	KeyAttempts        = "qbank_attempts"
	KeyAIAttempts      = "qbank_ai_attempts"
	KeyArchiveAttempts = "qbank_preproff_attempts"

	KeyBookmarks        = "qbank_bookmarks"
	KeyAIBookmarks      = "qbank_ai_bookmarks"
	KeyArchiveBookmarks = "qbank_preproff_bookmarks"

	KeyStats         = "qbank_stats"
	KeyCounts        = "qbank_counts"
	KeyVersionMarker = "qbank_app_version"
	KeySession       = "qbank_active_session"
	KeyDeviceID      = "qbank_device_id"
	KeyPendingSync   = "qbank_pending_sync"

	// KeyAPIKey holds the user's AI-provider credential. It is the one key
	// a full progress reset preserves.
	KeyAPIKey = "ai_api_key"
)

// Cache is a namespaced map persisted as a single JSON file, rewritten
// atomically on every mutation.
type Cache struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// Open loads the cache file at path, starting empty when none exists.
func Open(path string) (*Cache, error) {
	c := &Cache{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read cache file")
	}
	if err := json.Unmarshal(raw, &c.data); err != nil {
		return nil, errors.Wrap(err, "decode cache file")
	}
	return c, nil
}

// Get decodes the value at key into out. The second return is false when the
// key is absent; absence is not an error.
func (c *Cache) Get(key string, out any) (bool, error) {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "decode cache key %q", key)
	}
	return true, nil
}

// Set stores value under key and persists the whole cache.
func (c *Cache) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode cache key %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return c.persistLocked()
}

// Has reports whether key is present.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// Delete removes key. Removing an absent key is a no-op.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; !ok {
		return nil
	}
	delete(c.data, key)
	return c.persistLocked()
}

// Clear drops every key except the listed ones.
func (c *Cache) Clear(preserve ...string) error {
	keep := make(map[string]bool, len(preserve))
	for _, key := range preserve {
		keep[key] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if !keep[key] {
			delete(c.data, key)
		}
	}
	return c.persistLocked()
}

// Snapshot returns the serialized cache contents, used by tests to assert
// byte-for-byte merge idempotence.
func (c *Cache) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encodeLocked()
}

func (c *Cache) persistLocked() error {
	raw, err := c.encodeLocked()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(raw)); err != nil {
		return errors.Wrap(err, "write cache file")
	}
	return nil
}

func (c *Cache) encodeLocked() ([]byte, error) {
	raw, err := json.Marshal(c.data)
	if err != nil {
		return nil, errors.Wrap(err, "encode cache")
	}
	return raw, nil
}

// AttemptsKey returns the attempts namespace for a pool.
func AttemptsKey(pool qbank.Pool) string {
	switch pool {
	case qbank.PoolAI:
		return KeyAIAttempts
	case qbank.PoolArchive:
		return KeyArchiveAttempts
	default:
		return KeyAttempts
	}
}

// BookmarksKey returns the bookmarks namespace for a pool.
func BookmarksKey(pool qbank.Pool) string {
	switch pool {
	case qbank.PoolAI:
		return KeyAIBookmarks
	case qbank.PoolArchive:
		return KeyArchiveBookmarks
	default:
		return KeyBookmarks
	}
}

// Attempts returns the question→attempts map for a pool.
func (c *Cache) Attempts(pool qbank.Pool) (map[string][]qbank.Attempt, error) {
	attempts := make(map[string][]qbank.Attempt)
	if _, err := c.Get(AttemptsKey(pool), &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// AppendAttempt adds one attempt to its question's history in the pool's
// namespace and persists.
func (c *Cache) AppendAttempt(pool qbank.Pool, attempt qbank.Attempt) error {
	attempts, err := c.Attempts(pool)
	if err != nil {
		return err
	}
	attempts[attempt.QuestionID] = append(attempts[attempt.QuestionID], attempt)
	return c.Set(AttemptsKey(pool), attempts)
}

// HasAttempt reports whether an attempt with the same (question, timestamp)
// pair already exists. Timestamp is the de facto attempt identity.
func (c *Cache) HasAttempt(pool qbank.Pool, questionID string, timestamp int64) (bool, error) {
	attempts, err := c.Attempts(pool)
	if err != nil {
		return false, err
	}
	for _, attempt := range attempts[questionID] {
		if attempt.Timestamp == timestamp {
			return true, nil
		}
	}
	return false, nil
}

// Bookmarks returns the pool's bookmarked question ids.
func (c *Cache) Bookmarks(pool qbank.Pool) ([]string, error) {
	bookmarks := make([]string, 0)
	if _, err := c.Get(BookmarksKey(pool), &bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// ToggleBookmark adds or removes a question id and returns the new set.
func (c *Cache) ToggleBookmark(pool qbank.Pool, questionID string) ([]string, error) {
	bookmarks, err := c.Bookmarks(pool)
	if err != nil {
		return nil, err
	}

	found := -1
	for idx, id := range bookmarks {
		if id == questionID {
			found = idx
			break
		}
	}
	if found >= 0 {
		bookmarks = append(bookmarks[:found], bookmarks[found+1:]...)
	} else {
		bookmarks = append(bookmarks, questionID)
	}

	if err := c.Set(BookmarksKey(pool), bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// Stats returns the main-pool user stats, or a fresh zero value dated today
// when none are stored yet.
func (c *Cache) Stats() (qbank.UserStats, error) {
	var stats qbank.UserStats
	ok, err := c.Get(KeyStats, &stats)
	if err != nil {
		return qbank.UserStats{}, err
	}
	if !ok {
		stats = qbank.UserStats{
			LastActiveDate:  time.Now().UTC().Format("2006-01-02"),
			SubjectAccuracy: make(map[qbank.Subject]qbank.SubjectAccuracy),
		}
	}
	if stats.SubjectAccuracy == nil {
		stats.SubjectAccuracy = make(map[qbank.Subject]qbank.SubjectAccuracy)
	}
	return stats, nil
}

// SetStats overwrites the stored user stats.
func (c *Cache) SetStats(stats qbank.UserStats) error {
	return c.Set(KeyStats, stats)
}

// Counts returns the cached display counts.
func (c *Cache) Counts() (qbank.CachedCounts, error) {
	counts := qbank.CachedCounts{Subjects: make(map[qbank.Subject]int)}
	if _, err := c.Get(KeyCounts, &counts); err != nil {
		return qbank.CachedCounts{}, err
	}
	return counts, nil
}

// SetCounts overwrites the cached display counts.
func (c *Cache) SetCounts(counts qbank.CachedCounts) error {
	return c.Set(KeyCounts, counts)
}

// VersionMarker returns the last app version recorded as having run here,
// or "" when this is a fresh profile.
func (c *Cache) VersionMarker() (string, error) {
	var marker string
	if _, err := c.Get(KeyVersionMarker, &marker); err != nil {
		return "", err
	}
	return marker, nil
}

// SetVersionMarker records the running app version.
func (c *Cache) SetVersionMarker(version string) error {
	return c.Set(KeyVersionMarker, version)
}

// PendingAttempts returns attempts recorded locally whose remote push
// failed; they are retried on the next sync pass.
func (c *Cache) PendingAttempts() ([]qbank.Attempt, error) {
	pending := make([]qbank.Attempt, 0)
	if _, err := c.Get(KeyPendingSync, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// SetPendingAttempts overwrites the pending-push queue.
func (c *Cache) SetPendingAttempts(pending []qbank.Attempt) error {
	return c.Set(KeyPendingSync, pending)
}

// AppendPendingAttempt queues one attempt for a retried remote push.
func (c *Cache) AppendPendingAttempt(attempt qbank.Attempt) error {
	pending, err := c.PendingAttempts()
	if err != nil {
		return err
	}
	return c.SetPendingAttempts(append(pending, attempt))
}
