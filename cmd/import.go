package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/project"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "import [file.json...]",
		Short: "Import project files into the local database",
		Long: `Stores project records in the SQLite database used when no project API is
configured. Each file holds one project, either bare or wrapped in the API
envelope ({"data": {...}}). Files without an id are stored under their file
name.

Projects are parsed before they are stored; files whose design data cannot be
interpreted are reported and skipped.`,
		Example: `  # Import two projects
  compositor import card.json album.json

  # List stored projects
  compositor import --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return fmt.Errorf("no project files given")
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			store, err := project.OpenStore(cfg.Projects.Database)
			if err != nil {
				return fmt.Errorf("failed to open project database: %w", err)
			}
			defer store.Close()

			failed := 0
			for _, path := range args {
				if err := importFile(cmd, store, path, designdata.Options{Variants: cfg.Variants}); err != nil {
					slog.Error("Failed to import project", "file", path, "err", err)
					failed++
				}
			}

			if list {
				projects, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tUPDATED")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.CategorySlug, p.UpdatedAt.Format(time.RFC3339))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List stored projects")

	return cmd
}

func importFile(cmd *cobra.Command, store *project.Store, path string, opts designdata.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rec, err := project.DecodeRecord(data)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = projectID(path)
	}

	res, err := designdata.Parse(rec, opts)
	if err != nil {
		return err
	}
	pages := 0
	if res != nil {
		pages = len(res.Designs)
	}

	if err := store.Put(cmd.Context(), rec); err != nil {
		return err
	}
	slog.Info("Project imported", "id", rec.ID, "title", rec.Title, "pages", pages)
	return nil
}
