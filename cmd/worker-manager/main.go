// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nylta-workers/internal/api"
	"nylta-workers/internal/common/aws"
	"nylta-workers/internal/common/camunda"
	"nylta-workers/internal/common/config"
	"nylta-workers/internal/common/database"
	"nylta-workers/internal/common/highlevel"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/observability"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/submission"

	pcc "nylta-workers/internal/workers/bulk-filing/parse-client-csv"
	sbf "nylta-workers/internal/workers/bulk-filing/submit-bulk-filing"
	vws "nylta-workers/internal/workers/bulk-filing/validate-wizard-step"
)

// jobWorker is the common surface of the bulk filing worker handlers.
type jobWorker interface {
	Register() error
	Close()
	GetTaskType() string
	IsEnabled() bool
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zapLog.Warn("observability setup incomplete", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFromApp(cfg.Camunda))
		return err
	}, 5, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Draft store ---
	drafts, err := draftstore.New(redis.Client, draftstore.Options{
		KeyPrefix: cfg.Wizard.DraftKeyPrefix,
		TTL:       time.Duration(cfg.Wizard.DraftTTL) * time.Second,
	}, log)
	if err != nil {
		zapLog.Fatal("draft store init failed", zap.Error(err))
	}

	// --- HighLevel CRM ---
	crm, err := highlevel.NewClient(highlevel.ConfigFromApp(cfg.Integrations.HighLevel))
	if err != nil {
		zapLog.Fatal("highlevel client init failed", zap.Error(err))
	}

	// --- Submission sinks ---
	indexer := submission.NewResultIndexer(esClient.Client, cfg.Submission.SearchIndex)
	sinks := []submission.Sink{indexer}

	if cfg.Submission.AuditEnabled {
		sinks = append(sinks, submission.NewAuditSink(pg.DB))
	}

	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		sdkCfg, err := aws.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}

		var mailer submission.Mailer
		if awsCfg.SES.Enabled {
			mailer = aws.NewMailer(sdkCfg, awsCfg.SES.FromEmail)
		}
		var alerter submission.Alerter
		if awsCfg.SNS.Enabled && awsCfg.SNS.AlertTopicARN != "" {
			alerter = aws.NewAlerter(sdkCfg, awsCfg.SNS.AlertTopicARN)
		}
		sinks = append(sinks, submission.NewNotifier(mailer, alerter))
	}

	driver, err := submission.NewDriver(crm, submission.Options{
		Concurrency:    cfg.Submission.Concurrency,
		SubmitInterval: config.GetDuration(cfg.Submission.SubmitInterval),
		ItemTimeout:    config.GetDuration(cfg.Submission.ItemTimeout),
	}, log, sinks...)
	if err != nil {
		zapLog.Fatal("submission driver init failed", zap.Error(err))
	}
	driver.WithRecorder(obs)

	zapLog.Info("Submission driver ready",
		zap.Int("concurrency", cfg.Submission.Concurrency),
		zap.Int("sinks", len(sinks)),
	)

	// --- Register the bulk filing workers ---
	parseHandler, err := pcc.NewHandler(pcc.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Drafts:    drafts,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create parse-client-csv handler", zap.Error(err))
	}

	validateHandler, err := vws.NewHandler(vws.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Drafts:    drafts,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create validate-wizard-step handler", zap.Error(err))
	}

	submitHandler, err := sbf.NewHandler(sbf.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Drafts:    drafts,
		Submitter: driver,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create submit-bulk-filing handler", zap.Error(err))
	}

	workers := []jobWorker{parseHandler, validateHandler, submitHandler}
	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
		zapLog.Info("worker started", zap.String("taskType", w.GetTaskType()), zap.Bool("enabled", w.IsEnabled()))
	}
	zapLog.Info("All bulk filing workers registered", zap.Int("count", len(workers)))

	// --- Wizard API, health & metrics ---
	apiServer, err := api.NewServer(api.Options{
		Drafts:    drafts,
		Importer:  parseHandler,
		Submitter: submitHandler,
		Orders:    indexer,
		Checks: map[string]api.ReadinessCheck{
			"zeebe":     camundaClient.HealthCheck,
			"postgres":  pg.Ping,
			"redis":     redis.Ping,
			"highlevel": crm.TestConnection,
			"elasticsearch": func(context.Context) error {
				return esClient.Ping()
			},
		},
		Logger: log,
	})
	if err != nil {
		zapLog.Fatal("api server init failed", zap.Error(err))
	}

	router := apiServer.Router()
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // synchronous batch submissions
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
