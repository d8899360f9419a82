package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftsync/internal/server/filestore"
	"github.com/openmined/syftsync/internal/server/lockstore"
)

type Services struct {
	Locks *lockstore.Store
	Files *filestore.Store
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	locks, err := lockstore.New(db, config.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}

	files, err := filestore.NewFromConfig(ctx, db, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	return &Services{
		Locks: locks,
		Files: files,
	}, nil
}
