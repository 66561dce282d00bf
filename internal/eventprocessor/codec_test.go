// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/hamba/avro/v2"

	"github.com/tomtom215/eventstats/internal/models"
)

func TestActionCodec(t *testing.T) {
	at := time.UnixMilli(1700000000123).UTC()
	in := models.ActionEvent{UserID: 7, EventID: 42, Kind: models.ActionRegister, OccurredAt: at}

	data, err := EncodeAction(in)
	if err != nil {
		t.Fatalf("EncodeAction: %v", err)
	}
	out, err := DecodeAction(data)
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}
	if out.UserID != 7 || out.EventID != 42 || out.Kind != models.ActionRegister {
		t.Errorf("decoded %+v", out)
	}
	if !out.OccurredAt.Equal(at) {
		t.Errorf("timestamp = %v, want %v", out.OccurredAt, at)
	}
}

func TestEncodeActionRejectsUnknownKind(t *testing.T) {
	_, err := EncodeAction(models.ActionEvent{UserID: 1, EventID: 1, Kind: "SHARE"})
	if !errors.Is(err, models.ErrUnknownActionKind) {
		t.Errorf("expected ErrUnknownActionKind, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	valid, err := EncodeAction(models.ActionEvent{UserID: 1, EventID: 2, Kind: models.ActionLike, OccurredAt: at})
	if err != nil {
		t.Fatal(err)
	}
	epoch, err := avro.Marshal(actionSchema, actionRecord{UserID: 1, EventID: 2, ActionType: "VIEW", Timestamp: time.UnixMilli(0)})
	if err != nil {
		t.Fatal(err)
	}
	sim, err := EncodeSimilarity(models.SimilarityUpdate{EventLow: 1, EventHigh: 2, Score: 0.5, ComputedAt: at})
	if err != nil {
		t.Fatal(err)
	}

	action := func(b []byte) error { _, err := DecodeAction(b); return err }
	similarity := func(b []byte) error { _, err := DecodeSimilarity(b); return err }

	tests := []struct {
		name   string
		decode func([]byte) error
		data   []byte
	}{
		{"nil action", action, nil},
		{"empty action", action, []byte{}},
		{"unterminated varint", action, []byte{0xff}},
		{"truncated action", action, []byte{0x02}},
		{"ids only", action, []byte{0x02, 0x04}},
		{"action missing last byte", action, valid[:len(valid)-1]},
		{"action with trailing bytes", action, append(append([]byte{}, valid...), 0x00)},
		{"epoch timestamp", action, epoch},
		{"empty similarity", similarity, nil},
		{"truncated similarity", similarity, sim[:len(sim)-2]},
		{"similarity with trailing bytes", similarity, append(append([]byte{}, sim...), 0x02)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode(tt.data); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestSimilarityCodec(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	in, err := models.NewSimilarityUpdate(11, 10, 0.632, at)
	if err != nil {
		t.Fatal(err)
	}

	data, err := EncodeSimilarity(in)
	if err != nil {
		t.Fatalf("EncodeSimilarity: %v", err)
	}
	out, err := DecodeSimilarity(data)
	if err != nil {
		t.Fatalf("DecodeSimilarity: %v", err)
	}
	if out.EventLow != 10 || out.EventHigh != 11 || out.Score != 0.632 || !out.ComputedAt.Equal(at) {
		t.Errorf("decoded %+v", out)
	}
}

func TestDecodeSimilarityCanonicalizesAndRejectsSelfPairs(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()

	reversed, err := avro.Marshal(similaritySchema, similarityRecord{EventA: 9, EventB: 3, Score: 0.5, Timestamp: at})
	if err != nil {
		t.Fatal(err)
	}
	u, err := DecodeSimilarity(reversed)
	if err != nil {
		t.Fatalf("DecodeSimilarity: %v", err)
	}
	if u.EventLow != 3 || u.EventHigh != 9 {
		t.Errorf("expected canonical pair, got %+v", u)
	}

	self, err := avro.Marshal(similaritySchema, similarityRecord{EventA: 4, EventB: 4, Score: 1, Timestamp: at})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeSimilarity(self); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage for self pair, got %v", err)
	}

	if _, err := EncodeSimilarity(models.SimilarityUpdate{EventLow: 9, EventHigh: 3}); err == nil {
		t.Error("expected error encoding a non-canonical pair")
	}
}

func TestOffsetTracker(t *testing.T) {
	tr := NewOffsetTracker()
	tr.Track(Record{Topic: "a", Partition: 0, Offset: 5})
	tr.Track(Record{Topic: "a", Partition: 0, Offset: 3})
	tr.Track(Record{Topic: "a", Partition: 1, Offset: 1})
	tr.Track(Record{Topic: "a", Partition: 0, Offset: 6})

	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	for _, rec := range tr.Pending() {
		if rec.Partition == 0 && rec.Offset != 6 {
			t.Errorf("partition 0 offset = %d, want 6", rec.Offset)
		}
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Error("Reset did not clear tracker")
	}
}
