package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediprint/compositor/internal/handlers"
	"github.com/mediprint/compositor/internal/preview"
	"github.com/mediprint/compositor/internal/render"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port        string
		projectFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the preview API",
		Long: `Starts the compositor preview API on the specified port.

Clients open a session for a project, then fetch rendered pages and
thumbnails, drag objects with snapping, drive the pinch/pan view and place
uploaded images on a page.`,
		Example: `  # Start server on default port 8888
  compositor serve

  # Serve projects from a directory of JSON files on a custom port
  compositor serve --port 3000 --projects ./projects`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			projects, closeProjects, err := openProjects(cfg, projectFile)
			if err != nil {
				return err
			}
			defer closeProjects()

			pipeline, err := render.New(newFetcher(cfg))
			if err != nil {
				return fmt.Errorf("failed to create render pipeline: %w", err)
			}

			previewOpts := preview.DefaultOptions()
			previewOpts.Export = cfg.PreviewOptions()
			previewOpts.ThumbnailSize = cfg.Preview.ThumbnailSize

			handler := handlers.New(handlers.Dependencies{
				Projects:   projects,
				Renderer:   pipeline,
				Placement:  newPlacement(cfg),
				Parse:      parseOptions(cfg),
				Preview:    previewOpts,
				Snap:       cfg.SnapConfig(),
				Gesture:    cfg.GestureOptions(),
				UploadsDir: cfg.Assets.Dir,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Compositor API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				handler.Sessions().CloseAll(shutdownCtx)
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&projectFile, "projects", "", "Serve projects from a JSON file or directory instead of the API or database")

	return cmd
}
