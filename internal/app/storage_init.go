package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/storage/memory"
	"github.com/vladislavdragonenkov/ledger/internal/storage/postgres"
)

// ledgerStore общий контракт memory- и postgres-хранилищ.
type ledgerStore interface {
	domain.Pinger
	Customers() domain.CustomerRepository
	CustomerDeleter() domain.CustomerDeleter
	Orders() domain.OrderLifecycleStore
	Totals() domain.TotalStore
	Items() domain.ItemRepository
	Spend() domain.SpendReader
}

type runtimeDependencies struct {
	store    ledgerStore
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	close    func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory ledger storage")
		return &runtimeDependencies{
			store:    memory.NewLedger(),
			outbox:   memory.NewOutboxRepository(),
			timeline: memory.NewTimelineRepository(),
			close:    func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres ledger storage")
		return &runtimeDependencies{
			store:    store,
			outbox:   store.Outbox(),
			timeline: store.Timeline(),
			close:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
