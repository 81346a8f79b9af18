// Command bucketfsd serves an object-storage bucket as a filesystem over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/filestore/minio"
	"github.com/koustreak/bucketfs/internal/filestore/s3"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/koustreak/bucketfs/internal/objfs"
	"github.com/koustreak/bucketfs/internal/obs/metrics"
	"github.com/koustreak/bucketfs/internal/obs/tracing"
	"github.com/koustreak/bucketfs/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
)

var version = "0.1.0-dev"

// envKeys can be set from the environment even when absent from the file.
var envKeys = []string{
	"server.addr",
	"log.level",
	"log.format",
	"storage.provider",
	"storage.endpoint",
	"storage.bucket",
	"storage.prefix",
	"storage.access_key",
	"storage.secret_key",
	"storage.region",
	"storage.ssl",
	"storage.debug",
	"tracing.enabled",
	"tracing.endpoint",
}

func main() {
	cfgPath := flag.String("config", os.Getenv("BUCKETFS_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		logger.Global().ErrorWith("bucketfsd exited", err, nil)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	values, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	values = values.WithEnv(envKeys...)

	log := logger.New(logger.ConfigFromValues(values.Sub("log")))
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceOpts := tracing.OptionsFromValues(values.Sub("tracing"))
	traceShutdown, err := tracing.Init(ctx, traceOpts)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = traceShutdown(sctx)
	}()

	storage := values.Sub("storage")
	client, err := newClient(ctx, storage)
	if err != nil {
		return err
	}
	defer client.Close()
	if traceOpts.Enabled {
		client = tracing.WrapClient(client, otel.GetTracerProvider())
	}

	settings, err := objfs.NewSettings(storage)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fs := objfs.New(client, settings,
		objfs.WithLogger(log),
		objfs.WithObserver(metrics.NewAdapterMetrics(reg)),
	)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithMetrics(reg),
		server.WithHTTPMetrics(metrics.NewHTTPMetrics(reg, server.RoutePattern)),
	}
	if traceOpts.Enabled {
		opts = append(opts, server.WithTracerProvider(otel.GetTracerProvider()))
	}

	srv := &http.Server{
		Addr:         values.String("server.addr", ":8080"),
		Handler:      server.New(fs, opts...),
		ReadTimeout:  values.Duration("server.read_timeout", 30*time.Second),
		WriteTimeout: values.Duration("server.write_timeout", 5*time.Minute),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWith("bucketfsd listening", map[string]interface{}{
			"addr":     srv.Addr,
			"version":  version,
			"provider": storage.String("provider", string(filestore.ProviderMinIO)),
			"bucket":   settings.Bucket,
			"prefix":   settings.Prefix,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newClient connects to the configured storage provider.
func newClient(ctx context.Context, v config.Values) (filestore.Client, error) {
	cfg := filestore.ConfigFromValues(v)
	switch cfg.Provider {
	case filestore.ProviderMinIO:
		return minio.New(ctx, cfg)
	case filestore.ProviderS3:
		return s3.New(ctx, cfg)
	case filestore.ProviderMemory:
		return memstore.New(v.String("bucket", "")), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
