package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each tariff is a document in the "tariffs" collection keyed
// by its label. The document carries the canonical API-format record as a
// JSON string plus the summary fields at the top level so listings never
// have to decode the full record.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) tariffs() *firestore.CollectionRef {
	return f.client.Collection("tariffs")
}

// SaveTariff adds or replaces the tariff document keyed by its label.
func (f *FirestoreProvider) SaveTariff(ctx context.Context, t types.Tariff) error {
	if t.Label == "" {
		return fmt.Errorf("tariff label cannot be empty")
	}
	jsonBytes, err := json.Marshal(urdb.TariffToAPI(t))
	if err != nil {
		return fmt.Errorf("failed to marshal tariff %s: %w", t.Label, err)
	}

	_, err = f.tariffs().Doc(t.Label).Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"utility": t.Utility,
		"name":    t.Name,
		"sector":  t.Sector,
	})
	if err != nil {
		return fmt.Errorf("failed to save tariff %s: %w", t.Label, err)
	}
	return nil
}

// GetTariff retrieves a tariff by its label.
func (f *FirestoreProvider) GetTariff(ctx context.Context, label string) (types.Tariff, error) {
	if label == "" {
		return types.Tariff{}, fmt.Errorf("label cannot be empty")
	}
	doc, err := f.tariffs().Doc(label).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Tariff{}, fmt.Errorf("%w: %s", ErrTariffNotFound, label)
		}
		return types.Tariff{}, fmt.Errorf("failed to get tariff %s: %w", label, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "tariff doc missing json", slog.String("label", label))
		return types.Tariff{}, fmt.Errorf("tariff %s missing json: %w", label, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "tariff doc json not string", slog.String("label", label))
		return types.Tariff{}, fmt.Errorf("tariff %s json not string", label)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &record); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal tariff", slog.String("label", label), slog.Any("err", err))
		return types.Tariff{}, fmt.Errorf("failed to unmarshal tariff %s: %w", label, err)
	}
	t, err := urdb.ParseTariff(record)
	if err != nil {
		return types.Tariff{}, fmt.Errorf("failed to decode tariff %s: %w", label, err)
	}
	return t, nil
}

// ListTariffs retrieves summaries of every stored tariff. Summaries come
// from the top-level document fields, not the json blob.
func (f *FirestoreProvider) ListTariffs(ctx context.Context) ([]types.TariffSummary, error) {
	iter := f.tariffs().Documents(ctx)
	defer iter.Stop()

	var summaries []types.TariffSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating tariffs: %w", err)
		}

		s := types.TariffSummary{Label: doc.Ref.ID}
		if v, err := doc.DataAt("utility"); err == nil {
			s.Utility, _ = v.(string)
		}
		if v, err := doc.DataAt("name"); err == nil {
			s.Name, _ = v.(string)
		}
		if v, err := doc.DataAt("sector"); err == nil {
			s.Sector, _ = v.(string)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// DeleteTariff removes the tariff document for the label. Firestore deletes
// are idempotent so a missing label is not an error.
func (f *FirestoreProvider) DeleteTariff(ctx context.Context, label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}
	_, err := f.tariffs().Doc(label).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete tariff %s: %w", label, err)
	}
	return nil
}
