package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/geopoly/core"
	"github.com/signalsfoundry/geopoly/geometry"
	"github.com/signalsfoundry/geopoly/internal/config"
	"github.com/signalsfoundry/geopoly/internal/logging"
	"github.com/signalsfoundry/geopoly/internal/observability"
	"github.com/signalsfoundry/geopoly/kb"
)

func main() {
	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP address the region API listens on")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "HTTP address for Prometheus /metrics; empty serves it on the API listener")
	regionsPath := flag.String("regions", cfg.RegionsPath, "Path to a JSON, YAML or GeoJSON region definition file")
	workers := flag.Int("workers", cfg.Workers, "Worker pool size for batch containment")
	batchSize := flag.Int("batch", cfg.BatchSize, "Points per batch containment task")
	earthName := flag.String("earth", cfg.Earth.Name, "Earth model used to convert lat/lon: wgs84, grs80 or sphere")
	flag.Parse()

	cfg.HTTPAddr = *httpAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.RegionsPath = *regionsPath
	cfg.Workers = *workers
	cfg.BatchSize = *batchSize
	if cfg.Earth, err = geometry.EllipsoidByName(*earthName); err != nil {
		log.Error(ctx, "invalid earth model", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "region server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the region API on lis until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("initialise metrics collector: %w", err)
	}

	store := kb.NewRegionStore(collector)
	if cfg.RegionsPath != "" {
		n, err := loadRegions(store, cfg.RegionsPath, cfg.Earth)
		if err != nil {
			return err
		}
		log.Info(ctx, "loaded regions", logging.String("path", cfg.RegionsPath), logging.Int("count", n))
	}

	srv := newServer(store, collector, log, cfg)
	mux := srv.routes()

	var metricsSrv *http.Server
	if cfg.MetricsAddr == "" {
		mux.Handle("GET /metrics", collector.Handler())
	} else {
		metricsSrv = serveMetrics(cfg.MetricsAddr, collector, log)
	}

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting region server", logging.String("addr", lis.Addr().String()))
		errCh <- httpSrv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down region server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func loadRegions(store *kb.RegionStore, path string, earth geometry.Ellipsoid) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open regions %q: %w", path, err)
	}
	defer f.Close()

	regions, err := core.LoadRegions(f, core.FormatFromPath(path), earth)
	if err != nil {
		return 0, fmt.Errorf("load regions %q: %w", path, err)
	}
	for _, r := range regions {
		if err := store.Add(r); err != nil {
			return 0, err
		}
	}
	return len(regions), nil
}
