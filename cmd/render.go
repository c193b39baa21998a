package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/export"
	"github.com/mediprint/compositor/internal/render"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		projectFile string
		outDir      string
		dpi         float64
		format      string
		quality     int
		noBleed     bool
		concurrency int
		manifests   []string
	)

	cmd := &cobra.Command{
		Use:   "render [project-id]",
		Short: "Export every page of a project as print-ready files",
		Long: `Renders every page of a project at print resolution and writes one image
per page plus a manifest describing the run.

manifest.yaml lists every page with its file and status. manifest.parquet has
one row per physical print, expanding each page by its quantity.`,
		Example: `  # Export a project from the configured source
  compositor render 42

  # Export a project file as JPEG previews without bleed
  compositor render --file ./card.json --format jpeg --dpi 150 --no-bleed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" && projectFile == "" {
				return errors.New("a project id or --file is required")
			}
			if id == "" {
				id = projectID(projectFile)
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			projects, closeProjects, err := openProjects(cfg, projectFile)
			if err != nil {
				return err
			}
			defer closeProjects()

			rec, err := projects.Fetch(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to fetch project %s: %w", id, err)
			}
			res, err := designdata.Parse(rec, parseOptions(cfg))
			if err != nil {
				return fmt.Errorf("failed to parse project %s: %w", id, err)
			}
			if res == nil {
				return fmt.Errorf("project %s: %w", id, designdata.ErrNoDesignData)
			}

			exportOpts := cfg.PrintOptions(res.VariantConfig)
			if cmd.Flags().Changed("dpi") {
				exportOpts.DPI = dpi
			}
			if cmd.Flags().Changed("format") {
				if exportOpts.Format, err = render.ParseFormat(format); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("quality") {
				exportOpts.Quality = quality
			}
			if noBleed {
				exportOpts.IncludeBleed = false
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Export.Concurrency = concurrency
			}
			if !cmd.Flags().Changed("out") {
				outDir = filepath.Join(cfg.Export.OutDir, id)
			}

			pipeline, err := render.New(newFetcher(cfg))
			if err != nil {
				return fmt.Errorf("failed to create render pipeline: %w", err)
			}

			manifest, err := export.NewRunner(pipeline).Run(cmd.Context(), res, export.Options{
				OutDir:      outDir,
				Export:      exportOpts,
				Concurrency: cfg.Export.Concurrency,
				Formats:     manifests,
			})
			if err != nil {
				return err
			}

			slog.Info("Export finished",
				"project", id,
				"dir", outDir,
				"exported", manifest.Exported,
				"failed", manifest.Failed,
				"prints", manifest.Prints)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectFile, "file", "f", "", "Read the project from a JSON file or directory")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to <export.outdir>/<project-id>)")
	cmd.Flags().Float64Var(&dpi, "dpi", 0, "Export resolution (defaults to the variant DPI)")
	cmd.Flags().StringVar(&format, "format", "png", "Image format (png or jpeg)")
	cmd.Flags().IntVar(&quality, "quality", 95, "JPEG quality")
	cmd.Flags().BoolVar(&noBleed, "no-bleed", false, "Render the trim area only")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Pages rendered in parallel")
	cmd.Flags().StringSliceVar(&manifests, "manifest", nil, "Manifests to write (yaml, parquet); default both")

	return cmd
}

// projectID derives an id from a project file name.
func projectID(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
