// Command horus-router runs the TCP router daemon: a subscription
// table that fans published frames out to interested TCPHub clients,
// with Prometheus metrics on a separate HTTP listener.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/horus-rt/horus/config"
	"github.com/horus-rt/horus/router"
)

func main() {
	_ = godotenv.Load() // optional; missing .env is not an error

	fleet, err := config.LoadOptional(os.Getenv("HORUS_CONFIG"))
	if err != nil {
		panic(err)
	}

	addr := firstNonEmpty(os.Getenv("HORUS_ROUTER_ADDR"), fleet.Router.Addr, router.DefaultAddr)
	metricsAddr := firstNonEmpty(os.Getenv("HORUS_ROUTER_METRICS_ADDR"), fleet.Router.MetricsAddr, ":9090")

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := router.NewServer(sugar)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, addr) })
	g.Go(func() error { return serveMetrics(ctx, metricsAddr) })

	sugar.Infow("horus-router starting", "addr", addr, "metrics_addr", metricsAddr)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		sugar.Fatalw("horus-router exited with error", "error", err)
	}
	sugar.Info("horus-router stopped")
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
