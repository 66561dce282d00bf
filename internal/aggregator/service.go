// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/eventprocessor"
	"github.com/tomtom215/eventstats/internal/metrics"
	"github.com/tomtom215/eventstats/internal/models"
)

// Service consumes the action topic, folds every action into the matrix, and
// publishes the resulting similarity updates.
//
// Offsets are committed only when Serve exits, after the last updates have
// been flushed. The matrix, the offset tracker and any unflushed updates
// belong to the Service rather than to one Serve call, so a supervisor
// restart continues where the failed run stopped. Actions re-delivered into
// a retained matrix change nothing because weights only grow.
type Service struct {
	matrix        *Matrix
	newConsumer   eventprocessor.ConsumerFactory
	newProducer   eventprocessor.ProducerFactory
	topic         string
	skipMalformed bool
	logger        zerolog.Logger

	tracker *eventprocessor.OffsetTracker
	pending []models.SimilarityUpdate
}

// Config holds the Service settings.
type Config struct {
	// SimilarityTopic receives the encoded updates.
	SimilarityTopic string

	// SkipMalformed commits and skips undecodable actions instead of failing.
	SkipMalformed bool
}

// NewService creates the aggregator service around matrix.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(matrix *Matrix, consumers eventprocessor.ConsumerFactory, producers eventprocessor.ProducerFactory, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		matrix:        matrix,
		newConsumer:   consumers,
		newProducer:   producers,
		topic:         cfg.SimilarityTopic,
		skipMalformed: cfg.SkipMalformed,
		logger:        logger.With().Str("component", "aggregator").Logger(),
		tracker:       eventprocessor.NewOffsetTracker(),
	}
}

// Serve runs the aggregation loop until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	consumer, err := s.newConsumer(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: open consumer: %w", err)
	}
	producer, err := s.newProducer(ctx)
	if err != nil {
		_ = consumer.Close()
		return fmt.Errorf("aggregator: open producer: %w", err)
	}
	defer s.shutdown(consumer, producer)

	if err := s.flushPending(ctx, producer); err != nil {
		return err
	}

	s.logger.Info().Msg("Aggregator started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		records, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Msg("Poll failed")
			return fmt.Errorf("aggregator: poll: %w", err)
		}
		if len(records) == 0 {
			continue
		}

		batchCtx := context.WithoutCancel(ctx)
		for i := range records {
			if err := s.handle(records[i]); err != nil {
				return err
			}
		}
		if err := s.flushPending(batchCtx, producer); err != nil {
			return err
		}

		events, pairs := s.matrix.Size()
		metrics.RecordMatrixSize(events, pairs)
		s.logger.Debug().Int("records", len(records)).Int("events", events).Int("pairs", pairs).Msg("Batch aggregated")
	}
}

func (s *Service) handle(rec eventprocessor.Record) error {
	action, err := eventprocessor.DecodeAction(rec.Value)
	if err != nil {
		metrics.RecordMalformed("aggregator")
		if !s.skipMalformed || !errors.Is(err, eventprocessor.ErrMalformedMessage) {
			s.logger.Error().Err(err).Int64("offset", rec.Offset).Msg("Failed to decode action")
			return fmt.Errorf("aggregator: decode offset %d: %w", rec.Offset, err)
		}
		s.logger.Warn().Err(err).Int64("offset", rec.Offset).Msg("Skipping malformed action")
		s.tracker.Track(rec)
		return nil
	}

	result, err := s.matrix.Apply(action)
	if err != nil {
		return fmt.Errorf("aggregator: offset %d: %w", rec.Offset, err)
	}
	metrics.RecordAggregatorAction(len(result.Updates), result.Changed)

	s.pending = append(s.pending, result.Updates...)
	s.tracker.Track(rec)
	return nil
}

// flushPending publishes every unflushed update and waits for delivery. On
// failure the updates stay pending and are re-sent by the next attempt;
// each message carries the current score, so duplicates are harmless.
func (s *Service) flushPending(ctx context.Context, producer eventprocessor.Producer) error {
	if len(s.pending) == 0 {
		return nil
	}
	for _, u := range s.pending {
		payload, err := eventprocessor.EncodeSimilarity(u)
		if err != nil {
			return fmt.Errorf("aggregator: encode %s: %w", u.Pair(), err)
		}
		if err := producer.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Error().Err(err).Str("pair", u.Pair().String()).Msg("Publish failed")
			return fmt.Errorf("aggregator: publish: %w", err)
		}
	}
	if err := producer.Flush(ctx); err != nil {
		s.logger.Error().Err(err).Int("updates", len(s.pending)).Msg("Flush failed")
		return fmt.Errorf("aggregator: flush: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// shutdown flushes what is left and commits the offsets of every applied
// action. The commit is best effort; on failure the actions are re-delivered
// on the next start.
func (s *Service) shutdown(consumer eventprocessor.Consumer, producer eventprocessor.Producer) {
	ctx := context.Background()

	if err := s.flushPending(ctx, producer); err != nil {
		s.logger.Warn().Err(err).Msg("Unflushed updates at shutdown, offsets not committed")
	} else if s.tracker.Len() > 0 {
		if err := consumer.Commit(ctx, s.tracker.Pending()...); err != nil {
			metrics.RecordCommitFailure("aggregator")
			s.logger.Warn().Err(err).Msg("Final offset commit failed")
		} else {
			s.tracker.Reset()
			s.logger.Info().Msg("Offsets committed")
		}
	}

	if err := producer.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close producer")
	}
	if err := consumer.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close consumer")
	}
	s.logger.Info().Msg("Aggregator stopped")
}

// String returns the service name for the supervisor.
func (s *Service) String() string {
	return "aggregator"
}
