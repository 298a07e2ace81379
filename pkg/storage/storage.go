package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/tariffscope/tariffscope/pkg/types"
)

// ErrTariffNotFound is returned when a tariff label has no stored document.
var ErrTariffNotFound = errors.New("tariff not found")

// Database defines the interface for persisting tariffs.
type Database interface {
	// ListTariffs returns summaries of every stored tariff.
	ListTariffs(ctx context.Context) ([]types.TariffSummary, error)
	// GetTariff retrieves a tariff by its label. Returns ErrTariffNotFound
	// if no tariff with that label exists.
	GetTariff(ctx context.Context, label string) (types.Tariff, error)
	// SaveTariff adds or replaces the tariff stored under its label.
	SaveTariff(ctx context.Context, t types.Tariff) error
	// DeleteTariff removes the tariff stored under the label. Deleting a
	// label that does not exist is not an error.
	DeleteTariff(ctx context.Context, label string) error

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
