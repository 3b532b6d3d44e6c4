package ports

import (
	"context"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// BundleStore persists fitted model bundles under a name.
type BundleStore interface {
	SaveBundle(ctx context.Context, name string, bundle domain.ModelBundle) error
	// LoadBundle returns domain.ErrBundleNotFound when nothing was saved under name.
	LoadBundle(ctx context.Context, name string) (domain.ModelBundle, error)
}

// ObservationArchive receives observations evicted from the in-memory log.
type ObservationArchive interface {
	ArchiveObservations(ctx context.Context, obs []domain.Observation) error
}

// Storage is the full persistence adapter.
type Storage interface {
	BundleStore
	ObservationArchive

	// Close closes the storage connection.
	Close() error
}
