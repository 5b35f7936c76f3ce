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
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authzcore/authzcore/authz"
	"github.com/authzcore/authzcore/internal/hash"
)

// RedisCache is the production DecisionCache backend.
//
// Purpose: Process-wide, read-mostly decision cache (spec.md §5).
// Domain: Authz
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// redisKeyspace namespaces decision-cache entries in a Redis instance
// that may be shared with other consumers. Not a secret: hash.Key is
// used here for opaque, fixed-width keys rather than for access
// control, so raw user/tenant identifiers don't appear verbatim in a
// shared keyspace.
const redisKeyspace = "authzcore-decisions"

func redisPrefix(tenantID, userID string) string {
	return "authz:" + hash.Key(redisKeyspace, tenantID, userID)
}

func redisKeyString(k Key) string {
	return redisPrefix(k.TenantID, k.UserID) + ":" + hash.Key(redisKeyspace, k.Resource, k.Action)
}

func (c *RedisCache) Get(ctx context.Context, key Key) (*authz.Response, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyString(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("decision cache get failed: %w", err)
	}

	var resp authz.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decision cache entry corrupt: %w", err)
	}
	return &resp, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key Key, resp authz.Response, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode decision cache entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyString(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("decision cache set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID, tenantID string) error {
	pattern := redisPrefix(tenantID, userID) + ":*"
	return c.deletePattern(ctx, pattern)
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.deletePattern(ctx, "authz:*")
}

func (c *RedisCache) deletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("decision cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("decision cache invalidation failed: %w", err)
	}
	return nil
}
