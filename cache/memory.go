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
	"fmt"
	"sync"
	"time"

	"github.com/authzcore/authzcore/authz"
)

type entry struct {
	resp    authz.Response
	expires time.Time
}

// MemoryCache is an in-process DecisionCache, used by unit tests and
// as a standalone fallback when no cache backend is configured.
//
// Purpose: Dependency-free DecisionCache implementation.
// Domain: Authz
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry)}
}

func keyString(k Key) string {
	return fmt.Sprintf("authz:%s:%s:%s:%s", k.TenantID, k.UserID, k.Resource, k.Action)
}

func (c *MemoryCache) Get(_ context.Context, key Key) (*authz.Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[keyString(key)]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expires) {
		delete(c.entries, keyString(key))
		return nil, false, nil
	}
	resp := e.resp
	return &resp, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, resp authz.Response, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyString(key)] = entry{resp: resp, expires: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) InvalidateUser(_ context.Context, userID, tenantID string) error {
	prefix := fmt.Sprintf("authz:%s:%s:", tenantID, userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	return nil
}
