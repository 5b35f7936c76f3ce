// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package broker abstracts the message broker used for inbound tenant
// lifecycle events and outbound audit events, so the rest of the
// service depends on a small interface rather than a NATS client
// directly.
package broker

import "context"

// Message is a single inbound message with manual-ack semantics.
//
// Purpose: Transport-agnostic envelope for at-least-once delivery.
// Domain: Events
type Message struct {
	Key     string
	Data    []byte
	Attempt int
}

// Handler processes one message. Returning a retryable error (see
// Retryable in this package) leaves the message unacknowledged for
// redelivery; a non-retryable error or nil acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Producer publishes raw, already-encoded payloads to a topic.
//
// Purpose: Outbound transport for audit events.
// Domain: Events
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Subscriber consumes a topic with manual acknowledgement and bounded
// concurrency.
//
// Purpose: Inbound transport for tenant lifecycle events.
// Domain: Events
type Subscriber interface {
	// Subscribe runs handler over topic with the given worker count and
	// batch size until ctx is cancelled.
	Subscribe(ctx context.Context, topic string, workers int, batchSize int, handler Handler) error
	Close() error
}
