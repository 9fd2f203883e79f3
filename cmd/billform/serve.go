package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/billform/internal/config"
	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/internal/watch"
	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/server"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		addr    string
		locales string
		watchOn bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live form server",
		Long: `Start the HTTP server. Each page load opens a live session that is
edited over a WebSocket; the document state is mirrored into the URL.

Examples:
  billform serve
  billform serve --addr=:9000
  billform serve --locales=./locales --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if locales != "" {
				cfg.Locale.Dir = locales
			}
			if cmd.Flags().Changed("watch") {
				cfg.Locale.Watch = watchOn
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from configuration)")
	cmd.Flags().StringVarP(&locales, "locales", "l", "", "Directory of locale overrides")
	cmd.Flags().BoolVarP(&watchOn, "watch", "w", false, "Reload locale overrides when they change")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger(os.Stderr)
	if cfg.Path() != "" {
		logger.Info("configuration loaded", "file", cfg.Path())
	}

	cat, err := catalog(cfg)
	if err != nil {
		return err
	}
	m := cfg.NewMetrics()

	store, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	exporter := export.NewExporter(store, cat,
		export.WithStyleSheets(cfg.Server.StyleSheets...),
		export.WithMetrics(m),
		export.WithLogger(logger.With("component", "export")),
	)
	if store != nil {
		logger.Info("export enabled", "store", store.Kind())
	}

	srv := server.New(cfg.ServerConfig(), cat,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithExporter(exporter),
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := srv.ListenAndServe(gctx); err != nil {
			return errors.New("E180").Wrap(err)
		}
		return nil
	})

	if cfg.Locale.Watch {
		w, err := watch.New(cat, watch.Options{
			Debounce: cfg.Locale.Debounce.D(),
			OnReload: srv.Sessions().InvalidateCatalog,
			Logger:   logger,
			Metrics:  m,
		})
		switch {
		case stderrors.Is(err, watch.ErrNoDir):
			logger.Warn("locale watch requested without a locale directory")
		case err != nil:
			logger.Warn("locale watch disabled", "error", err)
		default:
			grp.Go(func() error { return w.Run(gctx) })
		}
	}

	return grp.Wait()
}
