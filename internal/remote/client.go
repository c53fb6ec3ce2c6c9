// Package remote is the HTTP client for the hosted backend: attempt rows,
// remote question fetch, the minimum-version gate, and device registration.
// The backend is eventually consistent and independently fallible; callers
// treat every failure here as recoverable.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"qbank/internal/qbank"
)

var ErrBackendUnavailable = errors.New("backend unavailable")

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

const defaultGateCacheTTL = 5 * time.Minute

type Client struct {
	baseURL    string
	httpClient *http.Client

	// The version gate is polled on every boot; a short client-side cache
	// keeps that from hammering the backend.
	gateMu        sync.Mutex
	cachedGate    *VersionGate
	gateFetchedAt time.Time
	gateTTL       time.Duration
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		gateTTL:    defaultGateCacheTTL,
	}
}

type attemptRow struct {
	UserID              string `json:"user_id"`
	QuestionID          string `json:"question_id"`
	SelectedOptionIndex int    `json:"selected_option_index"`
	IsCorrect           bool   `json:"is_correct"`
	Timestamp           int64  `json:"timestamp"`
	TimeSpentSeconds    int    `json:"time_spent_seconds"`
}

type attemptsResponse struct {
	Attempts []attemptRow `json:"attempts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// InsertAttempt pushes one attempt row for the user.
func (c *Client) InsertAttempt(ctx context.Context, userID string, attempt qbank.Attempt) error {
	row := attemptRow{
		UserID:              userID,
		QuestionID:          attempt.QuestionID,
		SelectedOptionIndex: attempt.SelectedOptionIndex,
		IsCorrect:           attempt.IsCorrect,
		Timestamp:           attempt.Timestamp,
		TimeSpentSeconds:    attempt.TimeSpentSeconds,
	}
	return c.doJSON(ctx, http.MethodPost, "/attempts", row, nil)
}

// ListAttempts pulls every attempt row stored for the user.
func (c *Client) ListAttempts(ctx context.Context, userID string) ([]qbank.Attempt, error) {
	query := url.Values{}
	query.Set("user_id", userID)

	var payload attemptsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/attempts?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}

	attempts := make([]qbank.Attempt, 0, len(payload.Attempts))
	for _, row := range payload.Attempts {
		attempts = append(attempts, qbank.Attempt{
			QuestionID:          row.QuestionID,
			SelectedOptionIndex: row.SelectedOptionIndex,
			IsCorrect:           row.IsCorrect,
			Timestamp:           row.Timestamp,
			TimeSpentSeconds:    row.TimeSpentSeconds,
		})
	}
	return attempts, nil
}

// DeleteAttempts removes every attempt row stored for the user.
func (c *Client) DeleteAttempts(ctx context.Context, userID string) error {
	query := url.Values{}
	query.Set("user_id", userID)
	return c.doJSON(ctx, http.MethodDelete, "/attempts?"+query.Encode(), nil, nil)
}

type questionRow struct {
	ID           string `json:"id"`
	Subject      string `json:"subject"`
	Topic        string `json:"topic"`
	Question     string `json:"question"`
	Options      string `json:"options"`
	CorrectIndex int    `json:"correct_index"`
	Explanation  string `json:"explanation"`
	Difficulty   string `json:"difficulty"`
}

type questionsResponse struct {
	Questions []questionRow `json:"questions"`
}

// ListQuestions fetches the hosted copy of the question bank. The embedded
// store stays authoritative offline; this exists for content refreshes.
func (c *Client) ListQuestions(ctx context.Context) ([]qbank.Question, error) {
	var payload questionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/questions", nil, &payload); err != nil {
		return nil, err
	}

	questions := make([]qbank.Question, 0, len(payload.Questions))
	for _, row := range payload.Questions {
		var options []string
		if err := json.Unmarshal([]byte(row.Options), &options); err != nil {
			return nil, fmt.Errorf("question %s: malformed options: %w", row.ID, err)
		}

		tags := []string{}
		if row.Topic != "" {
			tags = []string{row.Topic}
		}

		questions = append(questions, qbank.Question{
			ID:           row.ID,
			Subject:      qbank.Subject(row.Subject),
			Text:         row.Question,
			Options:      options,
			CorrectIndex: row.CorrectIndex,
			Explanation:  row.Explanation,
			Tags:         tags,
			Difficulty:   qbank.Difficulty(row.Difficulty),
		})
	}
	return questions, nil
}

// VersionGate is the server-declared floor version.
type VersionGate struct {
	MinimumVersion     string `json:"minimum_version"`
	ForceUpdateMessage string `json:"force_update_message"`
}

// MinimumVersion fetches the remote version gate, serving a cached copy for
// a few minutes between fetches.
func (c *Client) MinimumVersion(ctx context.Context) (VersionGate, error) {
	c.gateMu.Lock()
	if c.cachedGate != nil && time.Since(c.gateFetchedAt) < c.gateTTL {
		gate := *c.cachedGate
		c.gateMu.Unlock()
		return gate, nil
	}
	c.gateMu.Unlock()

	var gate VersionGate
	if err := c.doJSON(ctx, http.MethodGet, "/config/version", nil, &gate); err != nil {
		return VersionGate{}, err
	}

	c.gateMu.Lock()
	c.cachedGate = &gate
	c.gateFetchedAt = time.Now()
	c.gateMu.Unlock()
	return gate, nil
}

type deviceRegistration struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

// RegisterDevice records the device a session runs on.
func (c *Client) RegisterDevice(ctx context.Context, userID, deviceID string) error {
	return c.doJSON(ctx, http.MethodPost, "/devices", deviceRegistration{
		UserID:   userID,
		DeviceID: deviceID,
	}, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
