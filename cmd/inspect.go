package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/export"
	"github.com/mediprint/compositor/internal/models"
)

type pageSummary struct {
	ID          string             `yaml:"id"`
	Label       string             `yaml:"label"`
	Side        models.Side        `yaml:"side,omitempty"`
	Orientation models.Orientation `yaml:"orientation"`
	Quantity    int                `yaml:"quantity"`
	Objects     int                `yaml:"objects"`
	Background  models.Background  `yaml:"background,omitempty"`
}

// spreadSummary reports a book spread rebuilt from its two pages.
type spreadSummary struct {
	Left    string `yaml:"left"`
	Right   string `yaml:"right"`
	Objects int    `yaml:"objects"`
	// Gutter counts objects that appear on both pages.
	Gutter int `yaml:"gutter"`
}

type projectSummary struct {
	Title       string               `yaml:"title"`
	Category    string               `yaml:"category"`
	Kind        designdata.Kind      `yaml:"kind"`
	Variant     models.VariantConfig `yaml:"variant"`
	PageWidthPx float64              `yaml:"pagewidthpx,omitempty"`
	Pages       []pageSummary        `yaml:"pages"`
	Spreads     []spreadSummary      `yaml:"spreads,omitempty"`
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		projectFile  string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect [project-id]",
		Short: "Show how a project's design data is interpreted",
		Long: `Parses a project and prints the normalized pages and variant as YAML.
Book projects also list each spread rebuilt from its pages, with the number
of objects crossing the gutter.

With --manifest, prints an export manifest instead: manifest.yaml as written,
manifest.parquet as one row per physical print.`,
		Example: `  # Show the pages of a stored project
  compositor inspect 42

  # Show the print rows of an export
  compositor inspect --manifest exports/42/manifest.parquet`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()

			if manifestPath != "" {
				return printManifest(enc, manifestPath)
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" && projectFile == "" {
				return errors.New("a project id, --file or --manifest is required")
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

			return enc.Encode(summarize(res))
		},
	}

	cmd.Flags().StringVarP(&projectFile, "file", "f", "", "Read the project from a JSON file or directory")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Print an export manifest (.yaml or .parquet)")

	return cmd
}

func summarize(res *designdata.Result) projectSummary {
	s := projectSummary{
		Title:       res.ProjectTitle,
		Category:    res.CategorySlug,
		Kind:        res.Kind,
		Variant:     res.VariantConfig,
		PageWidthPx: res.PageWidthPx,
		Pages:       make([]pageSummary, 0, len(res.Designs)),
	}
	for _, d := range res.Designs {
		s.Pages = append(s.Pages, pageSummary{
			ID:          d.ID,
			Label:       d.Label,
			Side:        d.Side,
			Orientation: d.Orientation,
			Quantity:    d.Quantity,
			Objects:     len(d.Objects),
			Background:  d.PageBackground(),
		})
	}
	if res.PageWidthPx <= 0 {
		return s
	}
	for i := 0; i+1 < len(res.Designs); i++ {
		left, right := res.Designs[i], res.Designs[i+1]
		if left.Side != models.SideLeft || right.Side != models.SideRight {
			continue
		}
		n := len(designdata.Recombine(left.Objects, right.Objects, res.PageWidthPx))
		s.Spreads = append(s.Spreads, spreadSummary{
			Left:    left.ID,
			Right:   right.ID,
			Objects: n,
			Gutter:  len(left.Objects) + len(right.Objects) - n,
		})
		i++
	}
	return s
}

func printManifest(enc *yaml.Encoder, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		rows, err := export.ReadParquetManifest(path)
		if err != nil {
			return err
		}
		return enc.Encode(rows)
	}
	m, err := export.ReadYAMLManifest(path)
	if err != nil {
		return err
	}
	return enc.Encode(m)
}
