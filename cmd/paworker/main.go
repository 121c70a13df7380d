package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"paworker/internal/auth"
	"paworker/internal/config"
	"paworker/internal/db"
	httpx "paworker/internal/http"
	"paworker/internal/jobs"
	"paworker/internal/logging"
	"paworker/internal/metrics"
	"paworker/internal/pipeline"
	"paworker/internal/policy"
	"paworker/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	evaluator, ok := policy.Lookup(cfg.PolicyID)
	if !ok {
		return fmt.Errorf("unknown POLICY_ID %q (known: %s)", cfg.PolicyID, strings.Join(policy.IDs(), ", "))
	}

	gdb, err := db.Connect(cfg.DatabaseURL, db.Options{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		ConnMaxLifetime:  cfg.DBConnMaxLifetime,
		ConnectTimeout:   cfg.DBConnectTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := jobs.Connect(ctx, cfg.RedisURL, cfg.RedisDialTimeout, cfg.RedisIOTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	st := store.New(gdb)
	m := metrics.New()
	queue := jobs.NewRedisQueue(rdb, cfg.QueueName, cfg.DLQName, cfg.QueuePopTimeout)

	var wg sync.WaitGroup

	if cfg.WorkerEnabled {
		consumer := &jobs.Consumer{
			ID:    workerID(),
			Queue: queue,
			Processor: &pipeline.Pipeline{
				Texts:     st.Documents,
				Documents: st.Documents,
				Requests:  st.Requests,
				Packs:     st.Packs,
				States:    st.Jobs,
				Audit:     st.Audit,
				Policy:    evaluator,
				Logger:    log.Named("pipeline"),
				Metrics:   m,
			},
			Failures: &jobs.RetryManager{
				Queue:       queue,
				States:      st.Jobs,
				DeadLetters: st.DeadLetters,
				Audit:       st.Audit,
				MaxRetries:  cfg.MaxJobRetries,
				Logger:      log.Named("retry"),
				Metrics:     m,
			},
			Logger:  log.Named("worker"),
			Metrics: m,
			Pause:   cfg.WorkerErrorPause,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	var srv *http.Server
	if cfg.APIEnabled {
		srv = &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpx.NewRouter(cfg, httpx.Deps{
				DB:      gdb,
				Store:   st,
				Queue:   queue,
				JWT:     auth.NewJWT(cfg.JWTSecret, auth.DefaultTokenTTL),
				Metrics: m,
				Logger:  log.Named("http"),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	// Wait for the in-flight job.
	wg.Wait()
	return nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
