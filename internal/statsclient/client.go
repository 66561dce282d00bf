// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package statsclient is the Go client of the collector and analyzer HTTP
// surfaces. It is what other services embed to report user actions and to
// fetch recommendations and interaction totals.
//
// Every call goes through one circuit breaker per surface, so a failing
// analyzer does not slow down every caller waiting on timeouts. Ratings is
// the enrichment helper: it never fails, returning an empty map instead.
package statsclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/metrics"
	"github.com/tomtom215/eventstats/internal/models"
)

// DefaultTimeout is used when the configured timeout is not positive.
const DefaultTimeout = 5 * time.Second

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

// StatusError is a non-success HTTP response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Client calls the collector and analyzer.
type Client struct {
	collectorURL string
	analyzerURL  string
	http         *http.Client

	collectorCB *gobreaker.CircuitBreaker[interface{}]
	analyzerCB  *gobreaker.CircuitBreaker[interface{}]

	now    func() time.Time
	logger zerolog.Logger
}

// New creates a client from the client config section. httpClient may be
// nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg *config.ClientConfig, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger = logger.With().Str("component", "statsclient").Logger()
	return &Client{
		collectorURL: strings.TrimRight(cfg.CollectorURL, "/"),
		analyzerURL:  strings.TrimRight(cfg.AnalyzerURL, "/"),
		http:         httpClient,
		collectorCB:  newBreaker("collector", logger),
		analyzerCB:   newBreaker("analyzer", logger),
		now:          time.Now,
		logger:       logger,
	}
}

// newBreaker opens after 60% failures over at least 10 requests in a
// minute and probes again after 30 seconds.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newBreaker(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker[interface{}] {
	metrics.ClientBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A rejected request says nothing about the server's health.
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.ClientBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// execute runs fn through cb and records the outcome.
func execute(cb *gobreaker.CircuitBreaker[interface{}], operation string, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	switch {
	case err == nil:
		metrics.RecordClientRequest(operation, "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordClientRequest(operation, "rejected")
	default:
		metrics.RecordClientRequest(operation, "failure")
	}
	return err
}

// SendView reports that userID viewed eventID.
func (c *Client) SendView(ctx context.Context, userID, eventID int64) error {
	return c.SendAction(ctx, userID, eventID, models.ActionView)
}

// SendRegister reports that userID registered for eventID.
func (c *Client) SendRegister(ctx context.Context, userID, eventID int64) error {
	return c.SendAction(ctx, userID, eventID, models.ActionRegister)
}

// SendLike reports that userID liked eventID.
func (c *Client) SendLike(ctx context.Context, userID, eventID int64) error {
	return c.SendAction(ctx, userID, eventID, models.ActionLike)
}

// SendAction posts one action stamped with the current time.
func (c *Client) SendAction(ctx context.Context, userID, eventID int64, kind models.ActionKind) error {
	body, err := json.Marshal(models.ActionEvent{
		UserID:     userID,
		EventID:    eventID,
		Kind:       kind,
		OccurredAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}

	err = execute(c.collectorCB, "send_action", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectorURL+"/api/v1/actions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request failed: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return readStatusError(resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
	if err != nil {
		c.logger.Error().Err(err).
			Int64("user_id", userID).
			Int64("event_id", eventID).
			Str("kind", kind.String()).
			Msg("Failed to send user action")
		return fmt.Errorf("send %s action: %w", kind, err)
	}
	return nil
}

// Recommendations streams the user's recommendations.
func (c *Client) Recommendations(ctx context.Context, userID int64, limit int) ([]models.ScoredEvent, error) {
	path := "/api/v1/users/" + strconv.FormatInt(userID, 10) + "/recommendations"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.query(ctx, "recommendations", path, q)
}

// SimilarEvents streams events similar to eventID that userID has not
// recently interacted with.
func (c *Client) SimilarEvents(ctx context.Context, eventID, userID int64, limit int) ([]models.ScoredEvent, error) {
	path := "/api/v1/events/" + strconv.FormatInt(eventID, 10) + "/similar"
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("limit", strconv.Itoa(limit))
	return c.query(ctx, "similar_events", path, q)
}

// InteractionsCount streams the total interaction weight of each event. An
// empty list makes no request.
func (c *Client) InteractionsCount(ctx context.Context, eventIDs []int64) ([]models.ScoredEvent, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(eventIDs))
	for i, id := range eventIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	return c.query(ctx, "interactions_count", "/api/v1/events/interactions", q)
}

// Ratings returns the interaction total of each event for display next to
// it. Failures are logged and yield an empty map; events without
// interactions are absent.
func (c *Client) Ratings(ctx context.Context, eventIDs []int64) map[int64]float64 {
	ratings := make(map[int64]float64, len(eventIDs))
	if len(eventIDs) == 0 {
		return ratings
	}
	scores, err := c.InteractionsCount(ctx, eventIDs)
	if err != nil {
		c.logger.Warn().Err(err).Ints64("event_ids", eventIDs).Msg("Ratings unavailable, continuing without them")
		return map[int64]float64{}
	}
	for _, s := range scores {
		ratings[s.EventID] = s.Score
	}
	return ratings
}

func (c *Client) query(ctx context.Context, operation, path string, q url.Values) ([]models.ScoredEvent, error) {
	reqURL := c.analyzerURL + path + "?" + q.Encode()

	var out []models.ScoredEvent
	err := execute(c.analyzerCB, operation, func() error {
		out = nil
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request failed: %w", err)
		}
		req.Header.Set("Accept", "application/x-ndjson")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return readStatusError(resp)
		}

		out, err = decodeStream(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return out, nil
}

// decodeStream reads NDJSON lines until EOF.
func decodeStream(r io.Reader) ([]models.ScoredEvent, error) {
	var out []models.ScoredEvent
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var se models.ScoredEvent
		if err := json.Unmarshal(line, &se); err != nil {
			return nil, fmt.Errorf("failed to decode response line %d: %w", len(out)+1, err)
		}
		out = append(out, se)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response stream: %w", err)
	}
	return out, nil
}

// readStatusError builds a StatusError from the error envelope, falling
// back to the raw body.
func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var envelope models.APIResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		se.Code = envelope.Error.Code
		se.Message = envelope.Error.Message
	}
	return se
}
