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
)

// Repository persists events for later retrieval (audit trail reads,
// compliance export), separate from Publisher's broker fan-out.
//
// Purpose: Abstraction over durable event storage.
// Domain: Events
type Repository interface {
	Persist(ctx context.Context, ev Event) error
}

// RepositoryPublisher wraps another Publisher and additionally
// persists every event through a Repository, matching the teacher's
// audit.RepositoryLogger dual-sink shape: one sink for live delivery
// (broker/slog), one for durable storage.
type RepositoryPublisher struct {
	next Publisher
	repo Repository
}

// NewRepositoryPublisher builds a RepositoryPublisher delegating live
// delivery to next and durable storage to repo.
func NewRepositoryPublisher(next Publisher, repo Repository) *RepositoryPublisher {
	return &RepositoryPublisher{next: next, repo: repo}
}

// Publish forwards ev to the wrapped Publisher, then persists it.
// Persistence failure is logged, never propagated: Publisher's
// contract is fire-and-forget regardless of which sink is slow or down.
func (p *RepositoryPublisher) Publish(ctx context.Context, ev Event) {
	p.next.Publish(ctx, ev)

	if err := p.repo.Persist(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "events: failed to persist event", "type", ev.Type, "event_id", ev.Metadata.EventID, "error", err)
	}
}
