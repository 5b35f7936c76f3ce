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

package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/authzcore/authzcore/eventpb"
	"github.com/authzcore/authzcore/metrics"
)

// Producer publishes an already-encoded payload to a topic. Satisfied
// by broker.Producer; redeclared here so this package does not import
// broker (avoiding a dependency edge the audit envelope does not need).
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

const publishTimeout = 5 * time.Second

// BrokerPublisher publishes every event to the broker as a protobuf
// AuditEvent, resolving a topic per event type and never letting a
// publish failure propagate to the caller (spec.md §4.3, §5:
// "Implementations MUST be fire-and-forget").
//
// Purpose: Production Publisher wiring the decision/admin paths to the
// durable audit trail.
// Domain: Events
type BrokerPublisher struct {
	producer   Producer
	topicFor   func(eventType string) string
	defaultTop string
}

// NewBrokerPublisher constructs a BrokerPublisher. topicFor resolves an
// event type to its broker topic/subject; events of an unrecognized
// type fall back to defaultTopic.
func NewBrokerPublisher(p Producer, topicFor func(eventType string) string, defaultTopic string) *BrokerPublisher {
	return &BrokerPublisher{producer: p, topicFor: topicFor, defaultTop: defaultTopic}
}

// Publish encodes ev and hands it to the broker on its own goroutine
// and a fresh timeout context, so a slow or unreachable broker never
// blocks the authorization decision that produced the event.
func (p *BrokerPublisher) Publish(ctx context.Context, ev Event) {
	topic := p.defaultTop
	if p.topicFor != nil {
		if t := p.topicFor(ev.Type); t != "" {
			topic = t
		}
	}

	payload := eventpb.AuditEvent{
		EventID:       ev.Metadata.EventID,
		SourceService: ev.Metadata.SourceService,
		Version:       ev.Metadata.Version,
		Timestamp:     ev.Metadata.Timestamp,
		CorrelationID: ev.Metadata.CorrelationID,
		Type:          ev.Type,
		TenantID:      ev.TenantID,
		ActorID:       ev.ActorID,
		Resource:      ev.Resource,
		TargetID:      ev.TargetID,
		TargetName:    ev.TargetName,
		Attrs:         eventpb.EncodeAttrs(ev.Attrs),
	}.Marshal()

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.producer.Publish(pubCtx, topic, ev.Metadata.EventID, payload); err != nil {
			slog.ErrorContext(ctx, "events: failed to publish audit event", "type", ev.Type, "topic", topic, "error", err)
			metrics.RecordEventPublished(ev.Type, "error")
			return
		}
		metrics.RecordEventPublished(ev.Type, "ok")
	}()
}
