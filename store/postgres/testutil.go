// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
)

// SetupTestDB creates a connection to the test database and runs migrations.
func SetupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 5434 // Default port in docker-compose.test.yml
	if p := os.Getenv("TEST_DB_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	cfg := Config{
		Host:         host,
		Port:         port,
		User:         "authzcore",
		Password:     "authzcore_test_password",
		Database:     "authzcore_test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 10,
	}

	ctx := context.Background()
	db, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Clean up before starting (in case previous run failed badly)
	tables := []string{
		"audit_events",
		"cross_tenant_access",
		"resource_policy_links",
		"policy_permissions",
		"policies",
		"resources",
		"user_roles",
		"role_permissions",
		"roles",
		"permissions",
	}
	for _, table := range tables {
		_, _ = db.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}

	if err := db.Migrate(ctx, InitialSchema); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		for _, table := range tables {
			_, _ = db.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		}
		db.Close()
	}

	return db, cleanup
}
