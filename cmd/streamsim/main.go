// Command streamsim replays a stored sensor dataset as a live feed over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/torosent/streamsim/internal/config"
	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/logging"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/replay"
	"github.com/torosent/streamsim/internal/server"
	"github.com/torosent/streamsim/internal/tracing"
)

var logger = loggo.GetLogger("streamsim")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader("streamsim")
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(config.RoleServer); err != nil {
		return err
	}
	if err := logging.Configure(os.Stderr, cfg.Logging.Level); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, "streamsim")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("flushing traces: %v", err)
		}
	}()

	svc, stats, err := newReplayService(cfg, tp)
	if err != nil {
		return err
	}
	if err := svc.Prime(ctx); err != nil {
		return jujuerrors.Annotate(err, "initial dataset load")
	}

	handler := server.NewHandler(svc, server.Options{
		Path:            cfg.Server.RoutePath(),
		MetricsPath:     cfg.Server.MetricsPath,
		TimestampLayout: cfg.Server.TimestampLayout(),
		Metrics:         stats,
		Tracer:          tp.Tracer(),
	})

	logger.Infof("replaying %s source in batches of %d (reload %s)",
		cfg.Source.Type, cfg.Replay.BatchSize, svc.Reload())
	return server.New(cfg.Server.Addr(), handler, cfg.Server.ShutdownTimeout).Run(ctx)
}

func newReplayService(cfg *config.Config, tp *tracing.Provider) (*replay.Service, *metrics.ReplayMetrics, error) {
	spec, err := cfg.DatasetSpec()
	if err != nil {
		return nil, nil, err
	}
	source, err := dataset.NewSource(spec)
	if err != nil {
		return nil, nil, err
	}
	reload, err := replay.ParseReloadPolicy(cfg.Replay.Reload)
	if err != nil {
		return nil, nil, err
	}

	stats := metrics.NewReplayMetrics()
	svc, err := replay.NewService(source, replay.Options{
		BatchSize: cfg.Replay.BatchSize,
		Reload:    reload,
		Observer:  stats,
		Tracer:    tp.Tracer(),
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, stats, nil
}
