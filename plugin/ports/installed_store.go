package ports

import (
	"context"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
)

// InstalledStore persists the installed-state snapshot.
type InstalledStore interface {
	// Load returns the snapshot; a missing store yields an empty repository.
	Load(ctx context.Context) (*entities.InstalledRepository, error)
	Save(ctx context.Context, installed *entities.InstalledRepository) error
}
