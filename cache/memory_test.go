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

	"github.com/authzcore/authzcore/authz"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key{UserID: "u1", TenantID: "t1", Resource: "REPORT", Action: "READ"}

	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}

	resp := authz.Allowed("Direct permission granted", []string{"REPORT:READ"})
	if err := c.Set(ctx, key, resp, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Reason != resp.Reason {
		t.Errorf("reason mismatch: got %q want %q", got.Reason, resp.Reason)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key{UserID: "u1", TenantID: "t1", Resource: "REPORT", Action: "READ"}

	_ = c.Set(ctx, key, authz.Allowed("ok", nil), -time.Second)

	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestMemoryCacheInvalidateUser(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	k1 := Key{UserID: "u1", TenantID: "t1", Resource: "REPORT", Action: "READ"}
	k2 := Key{UserID: "u1", TenantID: "t1", Resource: "REPORT", Action: "WRITE"}
	k3 := Key{UserID: "u2", TenantID: "t1", Resource: "REPORT", Action: "READ"}

	for _, k := range []Key{k1, k2, k3} {
		_ = c.Set(ctx, k, authz.Allowed("ok", nil), time.Minute)
	}

	if err := c.InvalidateUser(ctx, "u1", "t1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, ok, _ := c.Get(ctx, k1); ok {
		t.Error("expected k1 evicted")
	}
	if _, ok, _ := c.Get(ctx, k2); ok {
		t.Error("expected k2 evicted")
	}
	if _, ok, _ := c.Get(ctx, k3); !ok {
		t.Error("expected k3 (different user) to survive")
	}
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	k1 := Key{UserID: "u1", TenantID: "t1", Resource: "REPORT", Action: "READ"}
	_ = c.Set(ctx, k1, authz.Allowed("ok", nil), time.Minute)

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if _, ok, _ := c.Get(ctx, k1); ok {
		t.Error("expected cache cleared")
	}
}
