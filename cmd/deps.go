package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mediprint/compositor/internal/config"
	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/images"
	"github.com/mediprint/compositor/internal/ingest"
	"github.com/mediprint/compositor/internal/placement"
	"github.com/mediprint/compositor/internal/project"
)

// openProjects picks the project source: an explicit JSON file or
// directory, the project API, or the local SQLite store. The returned
// closer is never nil.
func openProjects(cfg *config.Config, file string) (project.Source, func(), error) {
	switch {
	case file != "":
		slog.Debug("Reading projects from disk", "path", file)
		return project.NewFileSource(file), func() {}, nil
	case cfg.Projects.APIURL != "":
		slog.Debug("Reading projects from API", "url", cfg.Projects.APIURL)
		return project.NewClient(cfg.Projects.APIURL, cfg.Projects.APIToken), func() {}, nil
	}

	store, err := project.OpenStore(cfg.Projects.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project database: %w", err)
	}
	slog.Debug("Reading projects from database", "path", cfg.Projects.Database)
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close project database", "err", err)
		}
	}, nil
}

// newFetcher creates the asset loader. Locally ingested assets are read from
// the uploads directory instead of going through the HTTP server.
func newFetcher(cfg *config.Config) *images.Fetcher {
	f := images.NewFetcher(cfg.Assets.HTTPTimeout)
	if cfg.Assets.IngestURL == "" && cfg.Assets.BaseURL != "" {
		f.Mount(strings.TrimSuffix(cfg.Assets.BaseURL, "/")+"/", cfg.Assets.Dir)
	}
	return f
}

// newPlacement wires the asset ingestor: the remote service when configured,
// the uploads directory otherwise.
func newPlacement(cfg *config.Config) *placement.Adapter {
	if cfg.Assets.IngestURL != "" {
		return placement.NewAdapter(ingest.NewHTTPIngestor(cfg.Assets.IngestURL, cfg.Assets.IngestToken))
	}
	return placement.NewAdapter(ingest.NewLocalIngestor(cfg.Assets.Dir, cfg.Assets.BaseURL))
}

func parseOptions(cfg *config.Config) designdata.Options {
	return designdata.Options{Variants: cfg.Variants}
}
