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

// Package config loads authzcore's runtime configuration from a YAML
// file and environment variables (prefixed AUTHZCORE_) using Viper,
// covering the recognized options of spec.md §6: broker bootstrap
// addresses, decision-cache backend, relational store connection, role
// hierarchy/permission-cap limits, sweep schedule, and event topic
// names.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete runtime configuration for the authorization
// service.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Role     RoleConfig     `mapstructure:"role"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Topics   TopicsConfig   `mapstructure:"topics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StoreConfig is the relational store connection (spec.md §6
// "relational store connection").
type StoreConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// CacheConfig selects and configures the decision-cache backend
// (spec.md §6 "decision-cache backend connection").
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend  string        `mapstructure:"backend"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// BrokerConfig is the message broker bootstrap configuration (spec.md
// §6 "bootstrap addresses for the message broker").
type BrokerConfig struct {
	URLs       []string `mapstructure:"urls"`
	StreamName string   `mapstructure:"stream_name"`
	Workers    int      `mapstructure:"workers"`
	BatchSize  int      `mapstructure:"batch_size"`
}

// RoleConfig holds the role-hierarchy limits of spec.md §6:
// `authz.role.max-hierarchy-depth` and
// `authz.role.max-permissions-per-role`.
type RoleConfig struct {
	MaxHierarchyDepth     int `mapstructure:"max_hierarchy_depth"`
	MaxPermissionsPerRole int `mapstructure:"max_permissions_per_role"`
}

// SweepConfig is the maintenance scheduler's interval (spec.md §6
// "sweep schedules", §4.6 default hourly).
type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TopicsConfig names the broker topics/subjects for each event kind
// (spec.md §6 "topic names for each event kind").
type TopicsConfig struct {
	TenantCreated      string `mapstructure:"tenant_created"`
	TenantDeactivated  string `mapstructure:"tenant_deactivated"`
	AuditEvents        string `mapstructure:"audit_events"`
}

// LoggingConfig controls the slog handler (ambient, not named by
// spec.md's recognized options but carried the way the teacher's
// config layer always does).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "AUTHZCORE"

// Load reads configuration from configPath (if non-empty) or the
// default search locations, layering AUTHZCORE_-prefixed environment
// variables on top, and returns the populated Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/authzcore")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.database", "authzcore")
	v.SetDefault("store.ssl_mode", "disable")
	v.SetDefault("store.max_open_conns", 20)
	v.SetDefault("store.max_idle_conns", 5)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "2m")

	v.SetDefault("broker.urls", []string{"nats://localhost:4222"})
	v.SetDefault("broker.stream_name", "AUTHZCORE_EVENTS")
	v.SetDefault("broker.workers", 2)
	v.SetDefault("broker.batch_size", 5)

	v.SetDefault("role.max_hierarchy_depth", 10)
	v.SetDefault("role.max_permissions_per_role", 100)

	v.SetDefault("sweep.interval", "1h")

	v.SetDefault("topics.tenant_created", "tenant.created")
	v.SetDefault("topics.tenant_deactivated", "tenant.deactivated")
	v.SetDefault("topics.audit_events", "authz.audit")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the configuration for invalid values, mirroring the
// HTTP-boundary Validation error kind of spec.md §7.
func (c *Config) Validate() error {
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("invalid cache.backend: %s (must be memory or redis)", c.Cache.Backend)
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		return fmt.Errorf("invalid store.port: %d (must be 1-65535)", c.Store.Port)
	}
	if c.Role.MaxHierarchyDepth < 1 {
		return fmt.Errorf("invalid role.max_hierarchy_depth: %d (must be >= 1)", c.Role.MaxHierarchyDepth)
	}
	if c.Role.MaxPermissionsPerRole < 1 {
		return fmt.Errorf("invalid role.max_permissions_per_role: %d (must be >= 1)", c.Role.MaxPermissionsPerRole)
	}
	if c.Broker.Workers < 1 {
		return fmt.Errorf("invalid broker.workers: %d (must be >= 1)", c.Broker.Workers)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("invalid sweep.interval: %s (must be > 0)", c.Sweep.Interval)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging.format: %s (must be json or console)", c.Logging.Format)
	}
	return nil
}
