// Package storage выбирает и пересоздаёт активное хранилище.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/memory"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/ormstore"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqldb"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqlstore"
)

// Config описывает, как строить реляционные хранилища.
type Config struct {
	Kind        domain.BackendKind
	Dialect     sqldb.Dialect
	DSN         string
	AutoMigrate bool
}

// DefaultConfig возвращает in-memory хранилище и SQLite в памяти для sql/orm.
func DefaultConfig() Config {
	return Config{
		Kind:        domain.BackendMemory,
		Dialect:     sqldb.DialectSQLite,
		AutoMigrate: true,
	}
}

// Build создаёт новое хранилище указанного типа.
func Build(ctx context.Context, kind domain.BackendKind, cfg Config) (domain.Store, error) {
	switch kind {
	case domain.BackendMemory:
		return memory.NewStore(), nil
	case domain.BackendSQL, domain.BackendORM:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, kind)
	}

	db, err := sqldb.Open(ctx, cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}
	// In-memory SQLite всегда пустая, без схемы она бесполезна.
	if cfg.AutoMigrate || (cfg.Dialect == sqldb.DialectSQLite && isMemoryDSN(cfg.DSN)) {
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if kind == domain.BackendSQL {
		return sqlstore.New(db), nil
	}
	store, err := ormstore.New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || dsn == ":memory:" || dsn == "file::memory:"
}

// Selector хранит единственное активное хранилище процесса.
type Selector struct {
	mu      sync.RWMutex
	cfg     Config
	kind    domain.BackendKind
	current domain.Store
	logger  *log.Entry
}

// NewSelector строит стартовое хранилище по cfg.Kind.
func NewSelector(ctx context.Context, cfg Config) (*Selector, error) {
	if cfg.Kind == "" {
		cfg.Kind = domain.BackendMemory
	}
	store, err := Build(ctx, cfg.Kind, cfg)
	if err != nil {
		return nil, err
	}
	return &Selector{
		cfg:     cfg,
		kind:    cfg.Kind,
		current: store,
		logger:  log.WithField("component", "storage-selector"),
	}, nil
}

// NewStaticSelector оборачивает готовое хранилище; Reset всё равно строит новое по cfg.
func NewStaticSelector(store domain.Store, kind domain.BackendKind, cfg Config) *Selector {
	return &Selector{
		cfg:     cfg,
		kind:    kind,
		current: store,
		logger:  log.WithField("component", "storage-selector"),
	}
}

// Current возвращает активное хранилище.
func (s *Selector) Current() domain.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Kind возвращает тип активного хранилища.
func (s *Selector) Kind() domain.BackendKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// Reset отбрасывает текущее состояние и подменяет хранилище новым экземпляром kind.
// Новое хранилище очищается, старое закрывается.
func (s *Selector) Reset(ctx context.Context, kind domain.BackendKind) (domain.Store, error) {
	fresh, err := Build(ctx, kind, s.cfg)
	if err != nil {
		return nil, err
	}
	if err := fresh.Clear(ctx); err != nil {
		_ = closeStore(fresh)
		return nil, fmt.Errorf("clear fresh %s store: %w", kind, err)
	}

	s.mu.Lock()
	old := s.current
	s.current = fresh
	s.kind = kind
	s.mu.Unlock()

	if old != nil {
		if err := closeStore(old); err != nil {
			s.logger.WithError(err).Warn("failed to close previous store")
		}
	}
	s.logger.WithField("backend", kind).Info("storage reset")
	return fresh, nil
}

// Close освобождает ресурсы активного хранилища.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := closeStore(s.current)
	s.current = nil
	return err
}

func closeStore(store domain.Store) error {
	closer, ok := store.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
