package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/storage"
	"github.com/tariffscope/tariffscope/pkg/urdb"
	"github.com/tariffscope/tariffscope/pkg/validate"
)

// seed loads URDB tariff JSON files from a directory into storage. Files
// may be in either dialect, bare records or items envelopes. Records
// without a label get one from the file name.
func main() {
	dataDir := lflag.String("data-dir", "data", "directory of tariff JSON files to load")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	entries, err := os.ReadDir(*dataDir)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read data dir", slog.String("dir", *dataDir), slog.Any("error", err))
		os.Exit(1)
	}

	var loaded, skipped int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(*dataDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to read file", slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}

		t, err := urdb.ParseItems(data)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping unparseable tariff", slog.String("path", path), slog.Any("error", err))
			skipped++
			continue
		}
		if t.Label == "" {
			t.Label = strings.TrimSuffix(entry.Name(), ".json")
		}

		issues := validate.Validate(t)
		for _, issue := range issues {
			log.Ctx(ctx).WarnContext(ctx, "validation issue",
				slog.String("label", t.Label),
				slog.String("severity", string(issue.Severity)),
				slog.String("field", issue.Field),
				slog.String("message", issue.Message))
		}
		if validate.HasErrors(issues) {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid tariff", slog.String("path", path), slog.String("label", t.Label))
			skipped++
			continue
		}

		if err := s.SaveTariff(ctx, t); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to save tariff", slog.String("label", t.Label), slog.Any("error", err))
			os.Exit(1)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded tariff",
			slog.String("label", t.Label),
			slog.String("utility", t.Utility),
			slog.String("name", t.Name))
		loaded++
	}

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete", slog.Int("loaded", loaded), slog.Int("skipped", skipped))
}
