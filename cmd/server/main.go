package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"feedesk/internal/audit"
	"feedesk/internal/platform/config"
	"feedesk/internal/platform/httpserver"
	"feedesk/internal/platform/kafka"
	"feedesk/internal/platform/logger"
	"feedesk/internal/platform/metrics"
	platformmongo "feedesk/internal/platform/mongo"
	"feedesk/internal/platform/postgres"
	platformredis "feedesk/internal/platform/redis"
	"feedesk/internal/receipt/artifact"
	"feedesk/internal/receipt/converter"
	"feedesk/internal/receipt/handler"
	"feedesk/internal/receipt/identifier"
	"feedesk/internal/receipt/lock"
	receiptmetrics "feedesk/internal/receipt/metrics"
	"feedesk/internal/receipt/notifier"
	"feedesk/internal/receipt/service"
	"feedesk/internal/receipt/store/ledger"
	"feedesk/internal/receipt/template"
	httptransport "feedesk/internal/transport/http"
	"feedesk/pkg/platform/circuit"
)

const shutdownTimeout = 15 * time.Second

// main loads configuration, builds the receipt pipeline, and serves HTTP until SIGINT or
// SIGTERM. Business logic lives in internal/receipt.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)

	ledgerStore, closeLedger, err := buildLedger(ctx, cfg.Ledger, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeLedger)

	artifacts, err := buildArtifacts(cfg.Artifacts)
	if err != nil {
		return err
	}

	locker, closeLock, err := buildLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeLock)

	eventStore, closeEvents, err := buildEventStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeEvents)
	publisher := audit.NewAsyncPublisher(1024, log)
	worker := audit.NewWorker(eventStore, publisher.Inbox(), log)

	svc, err := service.New(
		ledgerStore,
		identifier.New(
			identifier.WithPrefix(cfg.Receipt.Prefix),
			identifier.WithSuffixLength(cfg.Receipt.SuffixLen),
		),
		template.NewFiller(cfg.Receipt.TemplatePath),
		artifacts,
		buildConverter(cfg.Converter, log),
		buildNotifier(cfg.Notifier, log),
		service.WithLogger(log),
		service.WithMetrics(receiptmetrics.New(reg)),
		service.WithAuditPublisher(publisher),
		service.WithLocker(locker),
	)
	if err != nil {
		return fmt.Errorf("build receipt service: %w", err)
	}

	router := httptransport.NewRouter(handler.New(svc, log), httptransport.RouterConfig{
		Logger:         log,
		Metrics:        httpMetrics,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	// The worker outlives the HTTP server so events from in-flight requests are drained.
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(workerCtx)
	})
	g.Go(func() error {
		log.Info("starting feedesk",
			"addr", cfg.Server.Addr,
			"ledger", cfg.Ledger.Backend,
			"converter", cfg.Converter.Backend,
			"notifier", cfg.Notifier.Backend,
			"lock", cfg.Lock.Backend,
			"events", cfg.Events.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopWorker()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func buildLedger(ctx context.Context, cfg config.Ledger, log *slog.Logger) (service.LedgerStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.LedgerMemory:
		return ledger.NewInMemory(), noop, nil
	case config.LedgerPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := ledger.NewPostgres(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate ledger: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	case config.LedgerMongo:
		client, err := platformmongo.Connect(ctx, cfg.MongoURL)
		if err != nil {
			return nil, nil, err
		}
		store := ledger.NewMongo(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, nil, fmt.Errorf("ensure ledger indexes: %w", err)
		}
		return store, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn("mongo disconnect failed", "error", err)
			}
		}, nil
	default:
		return ledger.NewYAML(cfg.Path), noop, nil
	}
}

func buildArtifacts(cfg config.Artifacts) (service.ArtifactStore, error) {
	if cfg.Backend == config.ArtifactsCloudinary {
		c := cfg.Cloudinary
		store, err := artifact.NewCloudinary(c.CloudName, c.APIKey, c.APISecret, c.Folder)
		if err != nil {
			return nil, fmt.Errorf("cloudinary: %w", err)
		}
		return store, nil
	}
	return artifact.NewLocal(cfg.OutputDir), nil
}

func buildConverter(cfg config.Converter, log *slog.Logger) service.Converter {
	switch cfg.Backend {
	case config.ConverterGotenberg:
		return converter.NewGotenberg(cfg.GotenbergURL)
	case config.ConverterFailover:
		return converter.NewFailover(
			converter.NewGotenberg(cfg.GotenbergURL),
			converter.NewSoffice(cfg.SofficePath),
			converter.WithBreaker(circuit.New("gotenberg")),
			converter.WithFailoverLogger(log),
		)
	default:
		return converter.NewSoffice(cfg.SofficePath)
	}
}

func buildNotifier(cfg config.Notifier, log *slog.Logger) service.Notifier {
	switch cfg.Backend {
	case config.NotifierZeptoMail:
		return notifier.NewZeptoMail(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.SenderEmail)
	case config.NotifierLog:
		return notifier.NewLog(log)
	default:
		return notifier.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword, cfg.SenderEmail)
	}
}

func buildLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (service.TransactionLocker, func(), error) {
	noop := func() {}
	switch cfg.Lock.Backend {
	case config.LockRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		l := lock.NewRedis(client.Client, lock.WithTTL(cfg.Lock.TTL), lock.WithLogger(log))
		return l, func() { _ = client.Close() }, nil
	case config.LockNone:
		log.Warn("transaction lock disabled; concurrent requests for one transaction may both be issued")
		return lock.Noop{}, noop, nil
	default:
		return lock.NewInMemory(), noop, nil
	}
}

func buildEventStore(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	switch cfg.Events.Backend {
	case config.EventsKafka:
		client, err := kafka.NewProducer(ctx, cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return audit.NewKafkaStore(client, cfg.Events.KafkaTopic), client.Close, nil
	case config.EventsPostgres:
		db, err := postgres.Open(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := audit.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return audit.NewLogStore(log), func() {}, nil
	}
}
