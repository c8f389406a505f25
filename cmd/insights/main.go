// Command insights runs one configured feature pipeline: it builds the instrument registry
// and DAG from a YAML config, drives the Tick Clock & Scheduler against an NDJSON event log,
// and persists emitted insights to Postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/meltica/internal/app/ingress"
	"github.com/coachpo/meltica/internal/app/scheduler"
	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/infra/config"
	"github.com/coachpo/meltica/internal/infra/eventsource"
	"github.com/coachpo/meltica/internal/infra/persistence"
	"github.com/coachpo/meltica/internal/infra/persistence/migrations"
	pgstore "github.com/coachpo/meltica/internal/infra/persistence/postgres"
	"github.com/coachpo/meltica/internal/infra/statestore"
	lib "github.com/coachpo/meltica/lib/telemetry"
)

const (
	defaultConfigPath    = "config/pipeline.yaml"
	insightsLoggerPrefix = "insights "
	sinkQueueCapacity    = 4096
	sweeperInterval      = 30 * time.Second
	writerBatchSize      = 256
	writerFlushInterval  = 2 * time.Second
	startupTimeout       = 30 * time.Second
	shutdownTimeout      = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", defaultConfigPath, "Path to pipeline configuration YAML file")
	eventsPath := flag.String("events", "", "Path to an NDJSON event log (defaults to stdin)")
	migrate := flag.Bool("migrate", false, "Apply database migrations before starting")
	flag.Parse()

	logger := log.New(os.Stdout, insightsLoggerPrefix, log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appCfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Printf("configuration loaded: pipeline=%s environment=%s instruments=%d",
		appCfg.Pipeline.Name, appCfg.Environment, len(appCfg.Instruments))

	os.Setenv("MELTICA_ENVIRONMENT", string(appCfg.Environment))

	if *migrate {
		startupCtx, startupCancel := context.WithTimeout(ctx, startupTimeout)
		defer startupCancel()
		if err := migrations.Apply(startupCtx, appCfg.Database.DSN, "", logger); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	providers, shutdownTelemetry, err := lib.Init(ctx, lib.Settings{
		ServiceName:  appCfg.Telemetry.ServiceName,
		OTLPEndpoint: appCfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()
	meter := providers.MeterProvider.Meter("github.com/coachpo/meltica/cmd/insights")

	registry, err := appCfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("build instrument registry: %w", err)
	}
	logger.Printf("instrument registry built: %d instruments", len(registry.All()))

	resolver, err := feature.NewResolver(registry, appCfg.Pipeline)
	if err != nil {
		return fmt.Errorf("build feature resolver: %w", err)
	}
	dag, err := resolver.Plan()
	if err != nil {
		return fmt.Errorf("plan dag: %w", err)
	}
	logger.Printf("pipeline planned: %d nodes across %d levels", len(dag.Nodes), len(dag.Levels))

	store := statestore.New(time.Duration(appCfg.Pipeline.StateTTLSeconds) * time.Second)
	go store.RunEvictionSweeper(ctx, sweeperInterval)

	sink := scheduler.NewSink(sinkQueueCapacity)
	metrics, err := scheduler.NewMetrics(meter, appCfg.Pipeline.Name)
	if err != nil {
		return fmt.Errorf("init scheduler metrics: %w", err)
	}

	minInterval := time.Duration(appCfg.Pipeline.MinIntervalSeconds) * time.Second
	driver := scheduler.NewDriver(appCfg.Pipeline.Name, dag, store, sink, metrics, minInterval,
		uint64(appCfg.Pipeline.WarmupSteps), appCfg.Pipeline.Parallel)

	pool, err := pgxpool.New(ctx, appCfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres pool: %w", err)
	}
	defer pool.Close()
	dbStore := persistence.NewStore(pool)

	writer, err := pgstore.NewInsightWriter(dbStore.Pool(), meter)
	if err != nil {
		return fmt.Errorf("init insight writer: %w", err)
	}

	eventsReader, closeEvents, err := openEventSource(*eventsPath)
	if err != nil {
		return fmt.Errorf("open event source: %w", err)
	}
	defer closeEvents()

	ingestor := ingress.New(store)
	events, decodeErrs := eventsource.NewReader(eventsReader).Stream(ctx)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var firstErr error
	var errMu sync.Mutex
	fail := func(stage string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", stage, err)
		}
		errMu.Unlock()
		logger.Printf("%s failed: %v", stage, err)
		runCancel()
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case err, ok := <-decodeErrs:
				if !ok {
					return
				}
				logger.Printf("event decode error: %v", err)
			}
		}
	})
	lifecycle.Go(func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				ingestor.Ingest(evt)
			}
		}
	})
	lifecycle.Go(func() {
		fail("scheduler", driver.Run(runCtx))
	})
	lifecycle.Go(func() {
		fail("insight writer", writer.Run(runCtx, sink.Consume(), writerBatchSize, writerFlushInterval))
	})

	logger.Print("insights pipeline started; awaiting shutdown signal")
	lifecycle.Wait()
	sink.Close()

	if firstErr != nil {
		return firstErr
	}
	logger.Print("insights pipeline shut down cleanly")
	return nil
}

func openEventSource(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
