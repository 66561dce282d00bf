// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/metrics"
	"github.com/tomtom215/eventstats/internal/models"
)

// InteractionWriter applies an action to the interaction table.
type InteractionWriter interface {
	ProcessUserAction(ctx context.Context, action models.ActionEvent) error
}

// SimilarityWriter applies a similarity update to the similarity table.
type SimilarityWriter interface {
	ProcessEventSimilarity(ctx context.Context, update models.SimilarityUpdate) error
}

// StoreWorker drains one topic into the store. For every record it decodes,
// applies, and commits before touching the next one, so a crash re-delivers
// at most one already-applied record. The writes are idempotent upserts.
//
// StoreWorker implements suture.Service. Serve returns an error on any
// broker, decode, or store failure so that the supervisor restarts it from
// the last committed offset.
type StoreWorker[T any] struct {
	name          string
	newConsumer   ConsumerFactory
	decode        func([]byte) (T, error)
	apply         func(context.Context, T) error
	skipMalformed bool
	logger        zerolog.Logger
}

// NewInteractionWorker drains the action topic into w.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewInteractionWorker(consumers ConsumerFactory, w InteractionWriter, skipMalformed bool, logger zerolog.Logger) *StoreWorker[models.ActionEvent] {
	return newStoreWorker("interaction-worker", consumers, DecodeAction, w.ProcessUserAction, skipMalformed, logger)
}

// NewSimilarityWorker drains the similarity topic into w.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSimilarityWorker(consumers ConsumerFactory, w SimilarityWriter, skipMalformed bool, logger zerolog.Logger) *StoreWorker[models.SimilarityUpdate] {
	return newStoreWorker("similarity-worker", consumers, DecodeSimilarity, w.ProcessEventSimilarity, skipMalformed, logger)
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newStoreWorker[T any](
	name string,
	consumers ConsumerFactory,
	decode func([]byte) (T, error),
	apply func(context.Context, T) error,
	skipMalformed bool,
	logger zerolog.Logger,
) *StoreWorker[T] {
	return &StoreWorker[T]{
		name:          name,
		newConsumer:   consumers,
		decode:        decode,
		apply:         apply,
		skipMalformed: skipMalformed,
		logger:        logger.With().Str("component", "store-worker").Str("worker", name).Logger(),
	}
}

// Serve runs the consume loop until ctx is cancelled.
func (w *StoreWorker[T]) Serve(ctx context.Context) error {
	consumer, err := w.newConsumer(ctx)
	if err != nil {
		return fmt.Errorf("%s: open consumer: %w", w.name, err)
	}
	defer func() {
		if cerr := consumer.Close(); cerr != nil {
			w.logger.Warn().Err(cerr).Msg("Failed to close consumer")
		}
	}()

	w.logger.Info().Msg("Store worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("Store worker stopped")
			return ctx.Err()
		}

		records, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("Store worker stopped")
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("Poll failed")
			return fmt.Errorf("%s: poll: %w", w.name, err)
		}

		// A received batch is finished even if shutdown is requested meanwhile.
		batchCtx := context.WithoutCancel(ctx)
		for i := range records {
			if err := w.handle(ctx, batchCtx, consumer, records[i]); err != nil {
				return err
			}
		}
		if len(records) > 0 {
			w.logger.Debug().Int("records", len(records)).Msg("Batch applied")
		}
	}
}

func (w *StoreWorker[T]) handle(ctx, batchCtx context.Context, consumer Consumer, rec Record) error {
	log := w.logger.With().Str("topic", rec.Topic).Int32("partition", rec.Partition).Int64("offset", rec.Offset).Logger()

	value, err := w.decode(rec.Value)
	if err != nil {
		metrics.RecordMalformed(w.name)
		if !w.skipMalformed || !errors.Is(err, ErrMalformedMessage) {
			log.Error().Err(err).Msg("Failed to decode record")
			return fmt.Errorf("%s: decode offset %d: %w", w.name, rec.Offset, err)
		}
		log.Warn().Err(err).Msg("Skipping malformed record")
		return w.commit(ctx, batchCtx, consumer, rec, log)
	}

	err = w.apply(batchCtx, value)
	metrics.RecordWorkerRecord(w.name, err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to apply record")
		return fmt.Errorf("%s: apply offset %d: %w", w.name, rec.Offset, err)
	}

	return w.commit(ctx, batchCtx, consumer, rec, log)
}

// commit acknowledges rec. Once shutdown has been requested a failed commit
// is only logged; the record will be re-delivered and re-applied harmlessly.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (w *StoreWorker[T]) commit(ctx, batchCtx context.Context, consumer Consumer, rec Record, log zerolog.Logger) error {
	if err := consumer.Commit(batchCtx, rec); err != nil {
		metrics.RecordCommitFailure(w.name)
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("Commit failed during shutdown")
			return nil
		}
		log.Error().Err(err).Msg("Commit failed")
		return fmt.Errorf("%s: commit offset %d: %w", w.name, rec.Offset, err)
	}
	return nil
}

// String returns the worker name for the supervisor.
func (w *StoreWorker[T]) String() string {
	return w.name
}
