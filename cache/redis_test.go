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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authzcore/authzcore/authz"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client)
}

func TestRedisCacheGetSet(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()
	key := Key{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"}

	resp := authz.Allowed("Resource owner access granted", []string{"OWNER"})
	if err := c.Set(ctx, key, resp, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Reason != resp.Reason || !got.Allowed {
		t.Errorf("mismatch: got %+v", got)
	}
}

func TestRedisCacheInvalidateUser(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	k1 := Key{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"}
	k2 := Key{UserID: "u2", TenantID: "t1", Resource: "DATASET", Action: "READ"}
	_ = c.Set(ctx, k1, authz.Allowed("ok", nil), time.Minute)
	_ = c.Set(ctx, k2, authz.Allowed("ok", nil), time.Minute)

	if err := c.InvalidateUser(ctx, "u1", "t1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, ok, _ := c.Get(ctx, k1); ok {
		t.Error("expected k1 evicted")
	}
	if _, ok, _ := c.Get(ctx, k2); !ok {
		t.Error("expected k2 to survive")
	}
}
