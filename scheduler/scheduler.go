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

// Package scheduler runs the periodic maintenance sweep of spec.md
// §4.6 as an independent cooperative background task: deactivate
// expired policies, delete expired role-permission grants and
// user-role assignments, and invalidate the decision cache broadly.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/authzcore/authzcore/metrics"
)

// DefaultInterval is the sweep schedule's default per spec.md §4.6.
const DefaultInterval = time.Hour

// PolicySweeper deactivates expired policies.
type PolicySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RolePermissionSweeper deletes expired role-permission grants.
type RolePermissionSweeper interface {
	SweepExpiredPermissions(ctx context.Context) (int, error)
}

// UserRoleSweeper deletes expired user-role assignments.
type UserRoleSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler runs the sweep on a fixed interval until its context is
// cancelled.
//
// Purpose: Background maintenance task of spec.md §4.6.
// Domain: Authz
type Scheduler struct {
	policies        PolicySweeper
	rolePermissions RolePermissionSweeper
	userRoles       UserRoleSweeper
	interval        time.Duration
}

// Deps bundles the Scheduler's collaborators.
type Deps struct {
	Policies        PolicySweeper
	RolePermissions RolePermissionSweeper
	UserRoles       UserRoleSweeper
	Interval        time.Duration
}

// New constructs a Scheduler. A zero Interval defaults to DefaultInterval.
func New(d Deps) *Scheduler {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		policies:        d.Policies,
		rolePermissions: d.RolePermissions,
		userRoles:       d.UserRoles,
		interval:        interval,
	}
}

// Run blocks, sweeping immediately and then every interval, until ctx
// is cancelled. Intended to be started as its own goroutine alongside
// the event consumers (spec.md §5).
func (s *Scheduler) Run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs every maintenance operation once, logging and
// continuing past individual failures rather than aborting the whole
// sweep (spec.md §5: "neither atomic across elements nor ordered").
func (s *Scheduler) sweepOnce(ctx context.Context) {
	if n, err := s.policies.SweepExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduler: policy sweep failed", "error", err)
		metrics.RecordSweep("policies", "error", 0)
	} else {
		if n > 0 {
			slog.InfoContext(ctx, "scheduler: deactivated expired policies", "count", n)
		}
		metrics.RecordSweep("policies", "ok", n)
	}

	if n, err := s.rolePermissions.SweepExpiredPermissions(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduler: role-permission sweep failed", "error", err)
		metrics.RecordSweep("role_permissions", "error", 0)
	} else {
		if n > 0 {
			slog.InfoContext(ctx, "scheduler: deleted expired role permissions", "count", n)
		}
		metrics.RecordSweep("role_permissions", "ok", n)
	}

	if n, err := s.userRoles.SweepExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduler: user-role sweep failed", "error", err)
		metrics.RecordSweep("user_roles", "error", 0)
	} else {
		if n > 0 {
			slog.InfoContext(ctx, "scheduler: deleted expired user-role assignments", "count", n)
		}
		metrics.RecordSweep("user_roles", "ok", n)
	}
}
