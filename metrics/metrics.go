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

// Package metrics exposes the Prometheus instrumentation for the
// authorization service: decision outcomes/latency, role and policy
// mutations, cross-tenant grants, cache hit ratio, event publication,
// and the maintenance scheduler's sweep results.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the authorization engine and its supporting
// services.
var (
	// AuthorizationDecisions counts authorization decisions by outcome.
	AuthorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "engine",
			Name:      "authorization_decisions_total",
			Help:      "Total number of authorization decisions",
		},
		[]string{"decision"},
	)

	// DecisionDuration measures end-to-end Authorize latency.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "authzcore",
			Subsystem: "engine",
			Name:      "decision_duration_seconds",
			Help:      "Duration of authorization decisions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"decision"},
	)

	// DecisionCacheHits counts decision-cache lookups by outcome.
	DecisionCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "cache",
			Name:      "decision_lookups_total",
			Help:      "Total number of decision cache lookups",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	// RoleOperations counts role CRUD and assignment operations.
	RoleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "role",
			Name:      "operations_total",
			Help:      "Total number of role management operations",
		},
		[]string{"operation", "status"},
	)

	// PolicyEvaluations counts ABAC/TBAC policy evaluations by outcome.
	PolicyEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "policy",
			Name:      "evaluations_total",
			Help:      "Total number of policy evaluations",
		},
		[]string{"effect"}, // "allow", "deny", "not_applicable"
	)

	// CrossTenantGrants counts cross-tenant access grant/revoke operations.
	CrossTenantGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "crosstenant",
			Name:      "grant_operations_total",
			Help:      "Total number of cross-tenant grant operations",
		},
		[]string{"operation", "status"},
	)

	// EventsPublished counts events published to the broker by type.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events published",
		},
		[]string{"type", "status"},
	)

	// EventsConsumed counts tenant-lifecycle events processed by the sync consumer.
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Total number of events consumed",
		},
		[]string{"type", "status"},
	)

	// SweepOperations counts the maintenance scheduler's sweep runs.
	SweepOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "scheduler",
			Name:      "sweep_operations_total",
			Help:      "Total number of maintenance sweep operations",
		},
		[]string{"sweeper", "status"},
	)

	// SweepItemsRemoved counts rows affected per sweep.
	SweepItemsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authzcore",
			Subsystem: "scheduler",
			Name:      "sweep_items_removed_total",
			Help:      "Total number of rows removed or deactivated by maintenance sweeps",
		},
		[]string{"sweeper"},
	)
)

// RecordDecision records an authorization decision and its latency.
func RecordDecision(decision string, seconds float64) {
	AuthorizationDecisions.WithLabelValues(decision).Inc()
	DecisionDuration.WithLabelValues(decision).Observe(seconds)
}

// RecordCacheLookup records a decision-cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DecisionCacheHits.WithLabelValues("hit").Inc()
		return
	}
	DecisionCacheHits.WithLabelValues("miss").Inc()
}

// RecordRoleOperation records a role management operation.
func RecordRoleOperation(operation, status string) {
	RoleOperations.WithLabelValues(operation, status).Inc()
}

// RecordPolicyEvaluation records a policy evaluation outcome.
func RecordPolicyEvaluation(effect string) {
	PolicyEvaluations.WithLabelValues(effect).Inc()
}

// RecordCrossTenantGrant records a cross-tenant grant/revoke operation.
func RecordCrossTenantGrant(operation, status string) {
	CrossTenantGrants.WithLabelValues(operation, status).Inc()
}

// RecordEventPublished records an attempted event publication.
func RecordEventPublished(eventType, status string) {
	EventsPublished.WithLabelValues(eventType, status).Inc()
}

// RecordEventConsumed records a processed tenant-lifecycle event.
func RecordEventConsumed(eventType, status string) {
	EventsConsumed.WithLabelValues(eventType, status).Inc()
}

// RecordSweep records a maintenance sweep's outcome and item count.
func RecordSweep(sweeper, status string, itemsRemoved int) {
	SweepOperations.WithLabelValues(sweeper, status).Inc()
	if itemsRemoved > 0 {
		SweepItemsRemoved.WithLabelValues(sweeper).Add(float64(itemsRemoved))
	}
}
