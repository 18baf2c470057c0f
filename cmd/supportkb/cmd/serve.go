package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/api"
	"github.com/HlibHav/support-kb/internal/store"
	"github.com/HlibHav/support-kb/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve exposes the knowledge base over HTTP. With --watch, content
changes trigger incremental rebuilds automatically after a quiet window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cfg, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch || cfg.Watch.Enabled {
				w := watcher.New(cfg.Paths.ContentDir, cfg.Watch.Debounce)
				go func() {
					err := w.Run(ctx, func(paths []string) {
						if _, err := eng.Build(ctx, store.BuildTypeIncremental); err != nil {
							slog.Warn("watch-triggered rebuild failed", "error", err)
						}
					})
					if err != nil && ctx.Err() == nil {
						slog.Error("watcher stopped", "error", err)
					}
				}()
			}

			server := api.NewServer(cfg.Server.Addr, eng)
			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild incrementally on content changes")
	return cmd
}
