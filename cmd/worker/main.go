package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/notifications"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/queue/redisclient"
	"github.com/geocoder89/authhub/internal/queue/redisqueue"
	"github.com/geocoder89/authhub/internal/queue/worker"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-worker",
		Endpoint:    cfg.Tracing.Endpoint,
	})

	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	defer func() {
		tctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	rc, err := redisclient.Connect(ctx, redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}

	defer rc.Close()

	q := redisqueue.New(rc.Raw(), cfg.Redis.QueuePrefix)

	// without SMTP settings the worker logs the rendered mail instead
	var transport notifications.Mailer = notifications.NewLogMailer(log)

	if cfg.Email.SMTPHost != "" {
		transport = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	}

	mailer := notifications.NewProtectedMailer(transport, notifications.ProtectedMailerConfig{
		Timeout:          cfg.Email.SendTimeout,
		FailureThreshold: cfg.Email.FailureThreshold,
		Cooldown:         cfg.Email.Cooldown,
	})

	workerID := cfg.Worker.ID
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = host + "-" + strconv.Itoa(os.Getpid())
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	w := worker.New(worker.Config{
		WorkerID:        workerID,
		Concurrency:     cfg.Worker.Concurrency,
		PollWait:        cfg.Worker.PollWait,
		PromoteInterval: cfg.Worker.PromoteInterval,
		JobTimeout:      cfg.Worker.JobTimeout,
		ShutdownGrace:   cfg.Worker.ShutdownGrace,
	}, q, notifications.NewEmailNotifier(mailer, cfg.AppName), log, prom)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           w.HealthHandler(prometheus.DefaultGatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.Worker.HealthPort)
		err := healthSrv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID, "concurrency", cfg.Worker.Concurrency)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
