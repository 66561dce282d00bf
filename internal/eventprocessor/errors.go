// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import "errors"

var (
	// ErrMalformedMessage is returned when a payload cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownBackend is returned for a broker backend other than kafka or nats.
	ErrUnknownBackend = errors.New("unknown broker backend")

	// ErrConsumerClosed is returned by Poll after the consumer has been closed.
	ErrConsumerClosed = errors.New("consumer is closed")

	// ErrPublisherClosed is returned by Publish after the producer has been closed.
	ErrPublisherClosed = errors.New("publisher is closed")
)
