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

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls int32
	n     int
	err   error
}

func (c *countingSweeper) SweepExpired(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.n, c.err
}

func (c *countingSweeper) SweepExpiredPermissions(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.n, c.err
}

func TestSchedulerSweepsImmediatelyAndOnInterval(t *testing.T) {
	policies := &countingSweeper{n: 2}
	rolePerms := &countingSweeper{n: 1}
	userRoles := &countingSweeper{n: 0}

	s := New(Deps{Policies: policies, RolePermissions: rolePerms, UserRoles: userRoles, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if atomic.LoadInt32(&policies.calls) < 2 {
		t.Errorf("expected at least 2 sweeps (immediate + at least one tick), got %d", policies.calls)
	}
	if atomic.LoadInt32(&rolePerms.calls) != atomic.LoadInt32(&policies.calls) {
		t.Error("expected all three sweepers to run the same number of times per cycle")
	}
}

func TestSchedulerContinuesPastIndividualFailures(t *testing.T) {
	policies := &countingSweeper{err: errors.New("boom")}
	rolePerms := &countingSweeper{}
	userRoles := &countingSweeper{}

	s := New(Deps{Policies: policies, RolePermissions: rolePerms, UserRoles: userRoles, Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if rolePerms.calls != 1 || userRoles.calls != 1 {
		t.Errorf("expected role-permission and user-role sweeps to still run despite policy sweep failure, got %d/%d", rolePerms.calls, userRoles.calls)
	}
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	s := New(Deps{Policies: &countingSweeper{}, RolePermissions: &countingSweeper{}, UserRoles: &countingSweeper{}})
	if s.interval != DefaultInterval {
		t.Errorf("expected default interval %v, got %v", DefaultInterval, s.interval)
	}
}
