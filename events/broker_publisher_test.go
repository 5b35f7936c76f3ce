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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/authzcore/authzcore/eventpb"
)

type recordingProducer struct {
	mu      sync.Mutex
	topics  []string
	payload []byte
	err     error
	done    chan struct{}
}

func newRecordingProducer() *recordingProducer {
	return &recordingProducer{done: make(chan struct{}, 1)}
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.payload = payload
	p.mu.Unlock()
	p.done <- struct{}{}
	return p.err
}

func (p *recordingProducer) waitForPublish(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async publish")
	}
}

func TestBrokerPublisherResolvesTopicAndEncodes(t *testing.T) {
	p := newRecordingProducer()
	bp := NewBrokerPublisher(p, func(eventType string) string {
		if eventType == TypeRoleCreated {
			return "authz.role.created"
		}
		return ""
	}, "authz.default")

	ev := NewEvent("evt-1", TypeRoleCreated, "tenant-1", "actor-1")
	ev.Resource = "reports"
	ev.Attrs["note"] = "test"

	bp.Publish(context.Background(), ev)
	p.waitForPublish(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.topics) != 1 || p.topics[0] != "authz.role.created" {
		t.Fatalf("expected topic authz.role.created, got %v", p.topics)
	}

	decoded, err := eventpb.UnmarshalAuditEvent(p.payload)
	if err != nil {
		t.Fatalf("failed to decode published payload: %v", err)
	}
	if decoded.Type != TypeRoleCreated || decoded.TenantID != "tenant-1" || decoded.ActorID != "actor-1" {
		t.Errorf("decoded event mismatch: %+v", decoded)
	}
	if decoded.Attrs["note"] != `"test"` {
		t.Errorf("expected JSON-encoded attr value, got %q", decoded.Attrs["note"])
	}
}

func TestBrokerPublisherFallsBackToDefaultTopic(t *testing.T) {
	p := newRecordingProducer()
	bp := NewBrokerPublisher(p, func(string) string { return "" }, "authz.default")

	bp.Publish(context.Background(), NewEvent("evt-2", TypeAuthorizationChecked, "tenant-1", "actor-1"))
	p.waitForPublish(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topics[0] != "authz.default" {
		t.Errorf("expected fallback to default topic, got %v", p.topics)
	}
}

func TestBrokerPublisherDoesNotPanicOnProducerError(t *testing.T) {
	p := newRecordingProducer()
	p.err = errors.New("broker unavailable")
	bp := NewBrokerPublisher(p, nil, "authz.default")

	bp.Publish(context.Background(), NewEvent("evt-3", TypeAuthorizationChecked, "tenant-1", "actor-1"))
	p.waitForPublish(t)
}
