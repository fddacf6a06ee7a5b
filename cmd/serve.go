package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pable/go-osu-metrics/internal/matchcost"
	"github.com/pable/go-osu-metrics/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve match costs and recent plays over HTTP",
	Long: `Starts an HTTP server exposing:

  GET /matches/{matchID}/costs?formula=bathbot&warmups=0
  GET /users/{user}/recent?mode=osu&offset=0&fails=true
  GET /metrics
  GET /healthz

The recent-play route requires difficulty.url to be configured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	m, reg := newMetrics()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	api, err := newOsuClient(m)
	if err != nil {
		return err
	}

	scfg := server.Config{
		Costs:    matchcost.NewService(api, m, logger),
		Gatherer: prometheus.Gatherer(reg),
		Logger:   logger,
	}
	if cfg.Difficulty.URL != "" {
		scfg.Recent = newPerformanceService(api, m)
	} else {
		logger.Warn("difficulty.url not set, recent-play route disabled")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(scfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
