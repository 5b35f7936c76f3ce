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

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/authzcore/authzcore/events"
)

// EventRepository implements events.Repository against the
// audit_events table, the durable sink half of events.RepositoryPublisher's
// dual-sink delivery.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Persist inserts ev, deduplicating on event_id so a redelivered event
// (e.g. a broker retry upstream of this sink) is not recorded twice.
func (r *EventRepository) Persist(ctx context.Context, ev events.Event) error {
	attrs := ev.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO audit_events (
			event_id, type, tenant_id, actor_id, resource, target_id, target_name,
			correlation_id, attrs, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`,
		ev.Metadata.EventID, ev.Type, ev.TenantID, ev.ActorID, ev.Resource, ev.TargetID, ev.TargetName,
		ev.Metadata.CorrelationID, attrs, ev.Metadata.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}
	return nil
}

// EventFilter narrows an audit trail listing.
type EventFilter struct {
	TenantID  *string
	ActorID   *string
	Type      *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// PersistedEvent is an audit_events row as read back for trail queries.
type PersistedEvent struct {
	EventID       string
	Type          string
	TenantID      string
	ActorID       string
	Resource      string
	TargetID      string
	TargetName    string
	CorrelationID string
	Attrs         map[string]any
	CreatedAt     time.Time
}

// List retrieves persisted events matching filter, most recent first,
// adapted from the teacher's AuditRepository.List.
func (r *EventRepository) List(ctx context.Context, filter EventFilter) ([]PersistedEvent, int, error) {
	var clauses []string
	var args []any
	argIdx := 1

	if filter.TenantID != nil {
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", argIdx))
		args = append(args, *filter.TenantID)
		argIdx++
	}
	if filter.ActorID != nil {
		clauses = append(clauses, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, *filter.ActorID)
		argIdx++
	}
	if filter.Type != nil {
		clauses = append(clauses, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *filter.Type)
		argIdx++
	}
	if filter.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.EndDate)
		argIdx++
	}

	whereSQL := ""
	if len(clauses) > 0 {
		whereSQL = "WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_events " + whereSQL
	if err := r.db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := `
		SELECT event_id, type, tenant_id, actor_id, resource, target_id, target_name,
		       correlation_id, attrs, created_at
		FROM audit_events ` + whereSQL + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []PersistedEvent
	for rows.Next() {
		var e PersistedEvent
		if err := rows.Scan(
			&e.EventID, &e.Type, &e.TenantID, &e.ActorID, &e.Resource, &e.TargetID, &e.TargetName,
			&e.CorrelationID, &e.Attrs, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}
