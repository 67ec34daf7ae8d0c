package repositories

import (
	"fmt"
	"io"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
)

// OpenStore builds the [models.KVStore] selected by cfg.Cache.Driver.
//
// The returned closer releases the database connection for the sqlite driver and is a no-op otherwise.
// The sqlite driver runs pending migrations before returning.
func OpenStore(cfg *shared.Config) (models.KVStore, io.Closer, error) {
	switch cfg.Cache.Driver {
	case "sqlite", "":
		db, err := shared.NewDatabase(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
		if cfg.Cache.Path != shared.MemoryDatabase {
			shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		}
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%w: failed to run migrations: %v", shared.ErrStorage, err)
		}
		return NewSQLiteStore(db), db, nil
	case "file":
		return NewFileStore(nil, cfg.Cache.Path), nopCloser{}, nil
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown cache driver %q", shared.ErrInvalidConfig, cfg.Cache.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
