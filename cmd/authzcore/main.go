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

// Package main is the entry point for the authzcore authorization
// decision service.
//
// The application performs the following initialization sequence:
//  1. Load configuration from file and AUTHZCORE_-prefixed environment
//     variables
//  2. Initialize structured logging
//  3. Connect to the relational store and run migrations
//  4. Connect to the decision-cache backend (memory or Redis)
//  5. Connect to the broker and wire the outbound event publisher
//  6. Construct the decision engine, admin services, tenant-sync
//     consumer, and maintenance scheduler
//  7. Run the tenant-sync subscriber and scheduler until SIGINT/SIGTERM
//
// Graceful shutdown is triggered by SIGINT (Ctrl+C) or SIGTERM.
//
// Example usage:
//
//	# Start with default config search path
//	./authzcore
//
//	# Start with an explicit config file
//	./authzcore --config=/etc/authzcore/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/authzcore/authzcore/broker"
	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/config"
	"github.com/authzcore/authzcore/crosstenant"
	"github.com/authzcore/authzcore/engine"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/logging"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/policy"
	"github.com/authzcore/authzcore/resource"
	"github.com/authzcore/authzcore/role"
	"github.com/authzcore/authzcore/scheduler"
	"github.com/authzcore/authzcore/store/postgres"
	"github.com/authzcore/authzcore/tenantsync"
)

// Version is the service version (set via build flags).
const Version = "0.1.0"

var (
	configPath  = flag.String("config", "", "Path to configuration file (defaults to ./config/config.yaml, ./config.yaml, /etc/authzcore)")
	showVersion = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stdout, "authzcore version %s\n", Version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a shutdown signal arrives.
func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("authzcore starting", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := wire(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer comps.close(logger)

	return comps.run(ctx, cfg, logger)
}

// components holds every long-lived collaborator the service runs
// against, assembled once at startup.
type components struct {
	db     *postgres.DB
	broker *broker.NATS
	redis  *redis.Client
	cache  cache.DecisionCache
	engine *engine.Engine
	sched  *scheduler.Scheduler
	tsync  *tenantsync.Consumer

	roleSvc     *role.Service
	userRoleSvc *role.UserRoleService
	permSvc     *permission.Service
	policySvc   *policy.Service
	resSvc      *resource.Service
	ctSvc       *crosstenant.Service
}

// wire constructs every component from cfg but starts nothing running.
func wire(ctx context.Context, cfg *config.Config) (*components, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Store.Host,
		Port:         cfg.Store.Port,
		User:         cfg.Store.User,
		Password:     cfg.Store.Password,
		Database:     cfg.Store.Database,
		SSLMode:      cfg.Store.SSLMode,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	roleRepo := postgres.NewRoleRepository(db)
	rolePermRepo := postgres.NewRolePermissionRepository(db)
	userRoleRepo := postgres.NewUserRoleRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	resRepo := postgres.NewResourceRepository(db)
	linkRepo := postgres.NewPolicyLinkRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	ctRepo := postgres.NewCrossTenantRepository(db)
	eventRepo := postgres.NewEventRepository(db)

	var decisionCache cache.DecisionCache
	var redisClient *redis.Client
	switch cfg.Cache.Backend {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		decisionCache = cache.NewRedisCache(redisClient)
	default:
		decisionCache = cache.NewMemoryCache()
	}

	nb, err := broker.Dial(ctx, broker.Config{
		URLs:       cfg.Broker.URLs,
		StreamName: cfg.Broker.StreamName,
		Subjects: []string{
			cfg.Topics.TenantCreated,
			cfg.Topics.TenantDeactivated,
			cfg.Topics.AuditEvents,
		},
	})
	if err != nil {
		db.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	topicFor := func(eventType string) string {
		return cfg.Topics.AuditEvents
	}
	publisher := events.NewRepositoryPublisher(
		events.NewBrokerPublisher(nb, topicFor, cfg.Topics.AuditEvents),
		eventRepo,
	)

	roleSvc := role.NewService(roleRepo, rolePermRepo, userRoleRepo, permRepo, decisionCache, publisher)
	userRoleSvc := role.NewUserRoleService(roleRepo, userRoleRepo, decisionCache, publisher)
	permSvc := permission.NewService(permRepo)
	policySvc := policy.NewService(policyRepo, decisionCache, publisher)
	resSvc := resource.NewService(resRepo, linkRepo, decisionCache, publisher)
	ctSvc := crosstenant.NewService(ctRepo, decisionCache, publisher)

	eng := engine.New(engine.Deps{
		UserRoles:       userRoleRepo,
		Roles:           roleRepo,
		RolePermissions: rolePermRepo,
		Permissions:     permRepo,
		Resources:       resRepo,
		ResourceLinks:   linkRepo,
		Policies:        policyRepo,
		Cache:           decisionCache,
		Publisher:       publisher,
	})

	sched := scheduler.New(scheduler.Deps{
		Policies:        policySvc,
		RolePermissions: roleSvc,
		UserRoles:       userRoleSvc,
		Interval:        cfg.Sweep.Interval,
	})

	tsync := tenantsync.New(tenantsync.Deps{
		Roles:           roleRepo,
		RolePermissions: rolePermRepo,
		Permissions:     permRepo,
		UserRoles:       userRoleRepo,
		Cache:           decisionCache,
	})

	return &components{
		db:          db,
		broker:      nb,
		redis:       redisClient,
		cache:       decisionCache,
		engine:      eng,
		sched:       sched,
		tsync:       tsync,
		roleSvc:     roleSvc,
		userRoleSvc: userRoleSvc,
		permSvc:     permSvc,
		policySvc:   policySvc,
		resSvc:      resSvc,
		ctSvc:       ctSvc,
	}, nil
}

// run starts every background loop and blocks until ctx is cancelled
// (a shutdown signal) or one of the loops fails irrecoverably.
func (c *components) run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sched.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := c.broker.Subscribe(runCtx, cfg.Topics.TenantCreated, cfg.Broker.Workers, cfg.Broker.BatchSize, c.tsync.HandleTenantCreated)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("tenant-created subscriber stopped: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := c.broker.Subscribe(runCtx, cfg.Topics.TenantDeactivated, cfg.Broker.Workers, cfg.Broker.BatchSize, c.tsync.HandleTenantDeactivated)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("tenant-deactivated subscriber stopped: %w", err)
		}
	}()

	logger.Info("authzcore ready",
		"cache_backend", cfg.Cache.Backend,
		"sweep_interval", cfg.Sweep.Interval,
		"broker_workers", cfg.Broker.Workers,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("background loop failed, shutting down", "error", runErr)
	}

	cancel()
	wg.Wait()
	return runErr
}

// close tears down every component in reverse order of construction.
// Errors are logged, never returned: by the time close runs the
// process is exiting regardless.
func (c *components) close(logger *slog.Logger) {
	if c.broker != nil {
		if err := c.broker.Close(); err != nil {
			logger.Error("failed to close broker", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			logger.Error("failed to close redis", "error", err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
}
