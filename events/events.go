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

// Package events defines the outbound audit-event envelope and the
// Publisher abstraction the rest of the service depends on. Production
// code never talks to the broker directly — only through Publisher —
// so decisions never block on event delivery.
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event type constants (spec.md §6 "Outbound audit events").
const (
	TypeAuthorizationChecked    = "AuthorizationChecked"
	TypeRoleCreated             = "RoleCreated"
	TypeRoleUpdated             = "RoleUpdated"
	TypeRoleDeleted             = "RoleDeleted"
	TypeRoleAssigned            = "RoleAssigned"
	TypeRoleRevoked             = "RoleRevoked"
	TypePermissionGranted       = "PermissionGranted"
	TypePermissionRevoked       = "PermissionRevoked"
	TypePolicyCreated           = "PolicyCreated"
	TypePolicyEvaluated         = "PolicyEvaluated"
	TypeCrossTenantAccessGranted = "CrossTenantAccessGranted"
	TypeCrossTenantAccessRevoked = "CrossTenantAccessRevoked"
)

const sourceService = "authorization-service"
const eventVersion = "1.0"

// Metadata is the envelope carried by every outbound event.
type Metadata struct {
	EventID       string
	SourceService string
	Version       string
	Timestamp     time.Time
	CorrelationID string
}

// Event is a single outbound audit event.
//
// Purpose: Canonical representation of an auditable decision-engine or
// administrative action.
// Domain: Events
type Event struct {
	Metadata   Metadata
	Type       string
	TenantID   string
	ActorID    string
	Resource   string
	TargetID   string
	TargetName string
	Attrs      map[string]any
}

// NewEvent builds an Event with the metadata envelope populated,
// mirroring the teacher's audit.Event construction.
func NewEvent(eventID, typ, tenantID, actorID string) Event {
	return Event{
		Metadata: Metadata{
			EventID:       eventID,
			SourceService: sourceService,
			Version:       eventVersion,
			Timestamp:     time.Now(),
		},
		Type:     typ,
		TenantID: tenantID,
		ActorID:  actorID,
		Attrs:    map[string]any{},
	}
}

// Publisher publishes audit events. Implementations MUST be
// fire-and-forget: a publish failure must never alter the outcome of
// the operation that produced the event (spec.md §4.3, §5).
//
// Purpose: Decouples domain/decision code from the broker client.
// Domain: Events
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NoopPublisher discards every event. Used in tests and wherever event
// publication is not wired.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}

// SlogPublisher logs events via slog, the same shape as the teacher's
// audit.SlogLogger, with secret-looking attribute values redacted.
type SlogPublisher struct{}

func NewSlogPublisher() *SlogPublisher { return &SlogPublisher{} }

func (p *SlogPublisher) Publish(ctx context.Context, ev Event) {
	attrs := []any{
		slog.String("event_type", ev.Type),
		slog.String("tenant_id", ev.TenantID),
		slog.String("actor_id", ev.ActorID),
		slog.String("resource", ev.Resource),
		slog.String("target_id", ev.TargetID),
		slog.String("target_name", ev.TargetName),
		slog.String("event_id", ev.Metadata.EventID),
		slog.String("correlation_id", ev.Metadata.CorrelationID),
		slog.Time("timestamp", ev.Metadata.Timestamp),
	}

	if len(ev.Attrs) > 0 {
		group := make([]any, 0, len(ev.Attrs)*2)
		for k, v := range ev.Attrs {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("attrs", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", attrs...)
}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "authorization", "credential"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
