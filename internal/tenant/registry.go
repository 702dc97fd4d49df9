package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/repository"
)

// ErrInvalidID is returned when the tenant identifier is empty or not a
// usable database name fragment.
var ErrInvalidID = errors.New("invalid tenant id")

// Tenant ids become part of a logical database name, so they are restricted
// to a safe slug alphabet.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Store is the handle for one tenant's isolated data store.
type Store struct {
	Tenant string
	Pool   *pgxpool.Pool
	Users  repository.UserRepository
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// ConnectFunc opens the isolated store for a tenant. Injectable so tests can
// substitute in-memory stores.
type ConnectFunc func(ctx context.Context, tenantID string) (*Store, error)

// Registry caches open tenant store handles for the process lifetime.
// First access per tenant is single-flight: concurrent Resolve calls for an
// unseen tenant establish exactly one connection. Cached handles are served
// without additional locking beyond the read lock.
type Registry struct {
	connect ConnectFunc
	logger  *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates a registry connecting to Postgres, one logical
// database per tenant named from the configured prefix.
func NewRegistry(cfg config.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.L()
	}
	return &Registry{
		connect: pgxConnect(cfg),
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// NewRegistryWithConnect creates a registry with a custom connector.
func NewRegistryWithConnect(connect ConnectFunc, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		connect: connect,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// Resolve returns the store handle for the tenant, opening and caching it on
// first use.
func (r *Registry) Resolve(ctx context.Context, tenantID string) (*Store, error) {
	cleaned := strings.ToLower(strings.TrimSpace(tenantID))
	if !tenantIDPattern.MatchString(cleaned) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, tenantID)
	}

	r.mu.RLock()
	store, ok := r.stores[cleaned]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	value, err, _ := r.group.Do(cleaned, func() (any, error) {
		r.mu.RLock()
		store, ok := r.stores[cleaned]
		r.mu.RUnlock()
		if ok {
			return store, nil
		}

		store, err := r.connect(ctx, cleaned)
		if err != nil {
			return nil, fmt.Errorf("connect tenant store %q: %w", cleaned, err)
		}

		r.mu.Lock()
		r.stores[cleaned] = store
		r.mu.Unlock()

		r.logger.Info("tenant store opened", zap.String("tenant", cleaned))
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Store), nil
}

// Close tears down every cached store handle. Called once at shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tenantID, store := range r.stores {
		store.Close()
		delete(r.stores, tenantID)
		r.logger.Info("tenant store closed", zap.String("tenant", tenantID))
	}
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY,
	external_id TEXT NOT NULL,
	email TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	password_salt TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT users_email_key UNIQUE (email),
	CONSTRAINT users_external_id_key UNIQUE (external_id)
)`

const duplicateDatabase = "42P04"

// pgxConnect opens the tenant's logical database, creating it and its schema
// when missing. The unique constraints installed here are what actually
// guarantees per-tenant email/external id uniqueness under concurrency.
func pgxConnect(cfg config.Config) ConnectFunc {
	return func(ctx context.Context, tenantID string) (*Store, error) {
		dbName := cfg.TenantDBPrefix + tenantID

		if err := ensureDatabase(ctx, cfg.DatabaseURL, dbName); err != nil {
			return nil, err
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		poolCfg.ConnConfig.Database = dbName

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("open pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping tenant database: %w", err)
		}
		if _, err := pool.Exec(ctx, schemaSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}

		return &Store{
			Tenant: tenantID,
			Pool:   pool,
			Users:  repository.NewPostgresUserRepo(pool),
		}, nil
	}
}

func ensureDatabase(ctx context.Context, baseURL, dbName string) error {
	conn, err := pgx.Connect(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("connect base database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}
