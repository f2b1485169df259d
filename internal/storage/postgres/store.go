package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	driverName         = "pgx"
	defaultPingTimeout = 5 * time.Second
)

// ErrStoreNotInitialized возвращается методами nil-Store или Store без подключения.
var ErrStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolOptions задаёт параметры пула database/sql.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolOptions подходит для одного экземпляра сервиса с умеренной нагрузкой.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     defaultPingTimeout,
	}
}

func (o PoolOptions) apply(db *sql.DB) {
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)
}

// Store держит пул подключений к PostgreSQL, общий для всех репозиториев.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// Open подключается с настройками пула по умолчанию.
func Open(ctx context.Context, dsn string) (*Store, error) {
	return OpenWithPool(ctx, dsn, DefaultPoolOptions())
}

// OpenWithPool открывает пул и дожидается ответа базы. При неудачном ping пул закрывается.
func OpenWithPool(ctx context.Context, dsn string, pool PoolOptions) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	pool.apply(db)

	store := &Store{db: db, pingTimeout: pool.PingTimeout}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// NewStoreFromDB оборачивает уже открытое подключение (например, sqlmock в тестах).
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db, pingTimeout: defaultPingTimeout}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrStoreNotInitialized
	}
	return nil
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Ping используется проверкой готовности; таймаут ограничен pingTimeout.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	timeout := s.pingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все неприменённые миграции; вызывается при ORDERPAY_POSTGRES_AUTO_MIGRATE=true.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s.ready() != nil {
		return nil
	}
	return s.db.Close()
}
