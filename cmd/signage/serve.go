package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/community-signage/internal/api"
	"github.com/sweeney/community-signage/internal/config"
	"github.com/sweeney/community-signage/internal/logging"
	"github.com/sweeney/community-signage/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content server",
	Long:  "Serve the content API, the admin data files and static assets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, applyServeFlags)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg.Server, nil, logger)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "listen address")
	f.String("data-dir", "", "directory holding the JSON data files")
	f.String("assets-dir", "", "directory served under /assets")
	f.Int("write-limit", 0, "mutating requests per minute per client (0 disables)")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	changedString(cmd, "addr", &cfg.Server.Addr)
	changedString(cmd, "data-dir", &cfg.Server.DataDir)
	changedString(cmd, "assets-dir", &cfg.Server.AssetsDir)
	changedInt(cmd, "write-limit", &cfg.Server.WriteRateLimit)
}

// runServe serves the API until ctx is done. A nil listener listens on
// cfg.Addr.
func runServe(ctx context.Context, cfg config.ServerConfig, ln net.Listener, logger zerolog.Logger) error {
	log := logging.Component(logger, "server")

	st, err := store.Open(cfg.DataDir, logging.Component(logger, "store"))
	if err != nil {
		return err
	}
	log.Info().Str("dir", st.Dir()).Uint64("revision", st.Revision()).Msg("data loaded")

	if cfg.WatchDebounce > 0 {
		err := st.Watch(ctx, cfg.WatchDebounce, func(rev uint64) {
			log.Info().Uint64("revision", rev).Msg("data files changed on disk")
		})
		if err != nil {
			log.Warn().Err(err).Msg("file watch unavailable, external edits need a restart")
		}
	}

	srv := api.New(st, api.Options{
		Addr:        cfg.Addr,
		AssetsDir:   cfg.AssetsDir,
		WriteLimit:  cfg.WriteRateLimit,
		WriteWindow: cfg.WriteRateWindow,
		Logger:      logging.Component(logger, "api"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if ln != nil {
			log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
			err = srv.Serve(ln)
		} else {
			log.Info().Str("addr", cfg.Addr).Msg("http server listening")
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down gracefully")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}
