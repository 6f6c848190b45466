// Command streamsim-consumer polls a streamsim server and prints each batch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/loggo/v2"

	"github.com/torosent/streamsim/internal/config"
	"github.com/torosent/streamsim/internal/consumer"
	"github.com/torosent/streamsim/internal/httpclient"
	"github.com/torosent/streamsim/internal/logging"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/output"
	"github.com/torosent/streamsim/internal/tracing"
)

var logger = loggo.GetLogger("streamsim.consumer.main")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader("streamsim-consumer")
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(config.RoleConsumer); err != nil {
		return err
	}
	if err := logging.Configure(os.Stderr, cfg.Logging.Level); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, "streamsim-consumer")
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

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	poller, err := consumer.NewPoller(
		consumer.PrintProcessor(os.Stdout, cfg.Source.TimestampColumn),
		consumer.Options{
			Client:          httpclient.NewClient(cfg.Consumer.Timeout),
			Requests:        builder,
			Interval:        cfg.Consumer.PollInterval,
			MaxPolls:        cfg.Consumer.MaxPolls,
			TimestampField:  cfg.Source.TimestampColumn,
			TimestampLayout: cfg.Server.TimestampLayout(),
			Collector:       collector,
			Tracer:          tp.Tracer(),
		},
	)
	if err != nil {
		return err
	}

	logger.Infof("polling %s every %s", builder.Target(), cfg.Consumer.PollInterval)
	runErr := poller.Run(ctx)
	stats := collector.Stats(collector.Elapsed())
	if cfg.Consumer.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, stats); err != nil {
			logger.Errorf("writing summary: %v", err)
		}
	} else {
		output.PrintReport(os.Stdout, stats)
	}
	return runErr
}
