package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/api"
	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/monitoring"
)

var servePort int

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ranking API server",
	Long:  "Serves the ranking API and Prometheus metrics, and reloads ranking settings when the config file changes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := monitoring.NewMetrics()
		if err := metrics.Register(reg); err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, "serve", metrics)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		env.Store = st

		loader.Watch(func(c *config.Config) {
			if err := reloadSettings(env.Holder, c); err != nil {
				zap.L().Error("ranking settings reload rejected, keeping previous settings", zap.Error(err))
			}
		})

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, metrics),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		handler := buildRouter(env, reg)
		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

// buildRouter wires the API routes with metrics served from reg.
func buildRouter(env *rankEnv, reg *prometheus.Registry) http.Handler {
	opts := []api.Option{api.WithCORSOrigins(cfg.Server.CORSOrigins)}
	if env.Store != nil {
		opts = append(opts, api.WithStore(env.Store))
	}
	if reg != nil {
		opts = append(opts, api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return api.New(env.Engine, opts...).Routes()
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
