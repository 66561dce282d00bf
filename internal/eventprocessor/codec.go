// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hamba/avro/v2"

	"github.com/tomtom215/eventstats/internal/models"
)

// ActionSchema is the Avro schema of messages on the action topic.
const ActionSchema = `{
  "type": "record",
  "name": "UserActionAvro",
  "namespace": "eventstats.avro",
  "fields": [
    {"name": "userId", "type": "long"},
    {"name": "eventId", "type": "long"},
    {"name": "actionType", "type": {"type": "enum", "name": "ActionTypeAvro", "symbols": ["VIEW", "REGISTER", "LIKE"]}},
    {"name": "timestamp", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

// SimilaritySchema is the Avro schema of messages on the similarity topic.
const SimilaritySchema = `{
  "type": "record",
  "name": "EventSimilarityAvro",
  "namespace": "eventstats.avro",
  "fields": [
    {"name": "eventA", "type": "long"},
    {"name": "eventB", "type": "long"},
    {"name": "score", "type": "double"},
    {"name": "timestamp", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

var (
	actionSchema     = avro.MustParse(ActionSchema)
	similaritySchema = avro.MustParse(SimilaritySchema)
)

type actionRecord struct {
	UserID     int64     `avro:"userId"`
	EventID    int64     `avro:"eventId"`
	ActionType string    `avro:"actionType"`
	Timestamp  time.Time `avro:"timestamp"`
}

type similarityRecord struct {
	EventA    int64     `avro:"eventA"`
	EventB    int64     `avro:"eventB"`
	Score     float64   `avro:"score"`
	Timestamp time.Time `avro:"timestamp"`
}

// EncodeAction serializes an action for the action topic.
func EncodeAction(a models.ActionEvent) ([]byte, error) {
	if !a.Kind.Valid() {
		return nil, fmt.Errorf("encode action: %w: %q", models.ErrUnknownActionKind, a.Kind)
	}
	data, err := avro.Marshal(actionSchema, actionRecord{
		UserID:     a.UserID,
		EventID:    a.EventID,
		ActionType: a.Kind.String(),
		Timestamp:  a.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return data, nil
}

var (
	errTrailingBytes = errors.New("payload has trailing or missing bytes")
	errNoTimestamp   = errors.New("timestamp is zero")
)

// decodeExact reads one value of schema from data. The read must succeed and
// consume the payload exactly.
func decodeExact[T any](schema avro.Schema, data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errors.New("empty payload")
	}
	r := avro.NewReader(bytes.NewReader(data), len(data))
	r.ReadVal(schema, &v)
	if r.Error != nil {
		return v, r.Error
	}
	// Avro varints are minimal, so a re-encoding has the length of the input.
	encoded, err := avro.Marshal(schema, v)
	if err != nil {
		return v, err
	}
	if len(encoded) != len(data) {
		return v, errTrailingBytes
	}
	return v, nil
}

// DecodeAction parses an action topic payload. Any failure wraps ErrMalformedMessage.
func DecodeAction(data []byte) (models.ActionEvent, error) {
	rec, err := decodeExact[actionRecord](actionSchema, data)
	if err != nil {
		return models.ActionEvent{}, fmt.Errorf("%w: action: %v", ErrMalformedMessage, err)
	}
	if rec.Timestamp.IsZero() || rec.Timestamp.UnixMilli() == 0 {
		return models.ActionEvent{}, fmt.Errorf("%w: action: %v", ErrMalformedMessage, errNoTimestamp)
	}
	kind, err := models.ParseActionKind(rec.ActionType)
	if err != nil {
		return models.ActionEvent{}, fmt.Errorf("%w: action: %v", ErrMalformedMessage, err)
	}
	return models.ActionEvent{
		UserID:     rec.UserID,
		EventID:    rec.EventID,
		Kind:       kind,
		OccurredAt: rec.Timestamp,
	}, nil
}

// EncodeSimilarity serializes a similarity update for the similarity topic.
func EncodeSimilarity(u models.SimilarityUpdate) ([]byte, error) {
	if !u.Canonical() {
		return nil, fmt.Errorf("encode similarity: pair %d,%d is not canonical", u.EventLow, u.EventHigh)
	}
	data, err := avro.Marshal(similaritySchema, similarityRecord{
		EventA:    u.EventLow,
		EventB:    u.EventHigh,
		Score:     u.Score,
		Timestamp: u.ComputedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode similarity: %w", err)
	}
	return data, nil
}

// DecodeSimilarity parses a similarity topic payload. A pair arriving out of
// order is canonicalized; a self pair is malformed.
func DecodeSimilarity(data []byte) (models.SimilarityUpdate, error) {
	rec, err := decodeExact[similarityRecord](similaritySchema, data)
	if err != nil {
		return models.SimilarityUpdate{}, fmt.Errorf("%w: similarity: %v", ErrMalformedMessage, err)
	}
	if rec.Timestamp.IsZero() || rec.Timestamp.UnixMilli() == 0 {
		return models.SimilarityUpdate{}, fmt.Errorf("%w: similarity: %v", ErrMalformedMessage, errNoTimestamp)
	}
	u, err := models.NewSimilarityUpdate(rec.EventA, rec.EventB, rec.Score, rec.Timestamp)
	if err != nil {
		return models.SimilarityUpdate{}, fmt.Errorf("%w: similarity: %v", ErrMalformedMessage, err)
	}
	return u, nil
}
