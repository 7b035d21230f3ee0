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

	"github.com/geocoder89/authhub/internal/account"
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/db"
	httpx "github.com/geocoder89/authhub/internal/http"
	"github.com/geocoder89/authhub/internal/notifications"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/otp"
	"github.com/geocoder89/authhub/internal/queue/redisclient"
	"github.com/geocoder89/authhub/internal/queue/redisqueue"
	"github.com/geocoder89/authhub/internal/repo/memory"
	"github.com/geocoder89/authhub/internal/repo/postgres"
	"github.com/geocoder89/authhub/internal/upload"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
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

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	st, err := openStores(ctx, cfg, prom, log)

	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}

	defer st.close()

	uploads, uploadDir, err := openUploads(ctx, cfg)

	if err != nil {
		log.Error("upload storage init failed", "err", err)
		os.Exit(1)
	}

	notifier, closeNotifier, err := openNotifier(ctx, cfg, log)

	if err != nil {
		log.Error("email init failed", "err", err)
		os.Exit(1)
	}

	defer closeNotifier()

	tokens := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})

	otps := otp.NewEngine(st.otps, otp.Config{
		Expiry:       cfg.Otp.Expiry,
		RateWindow:   cfg.Otp.RateWindow,
		MaxPerWindow: cfg.Otp.MaxPerWindow,
	}, prom)

	accounts := account.NewService(st.users, otps, tokens, uploads, notifier, account.Config{
		BaseURL:          cfg.BaseURL,
		ExposeDevSecrets: cfg.ExposeSecrets(),
	}, log, prom)

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:       log,
		Config:    cfg,
		Accounts:  accounts,
		Tokens:    tokens,
		Ping:      st.ping,
		Prom:      prom,
		Gatherer:  prometheus.DefaultGatherer,
		UploadDir: uploadDir,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver, "email", cfg.Email.Mode)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}

	log.Info("shutdown complete")
}

type stores struct {
	users account.UserStore
	otps  otp.Store
	ping  func(ctx context.Context) error
	close func()
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("using in-memory storage; data is lost on restart")

		users := memory.NewUsersRepo()
		return stores{users: users, otps: memory.NewOtpsRepo(), ping: users.Ping, close: func() {}}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL(), cfg.DB.MaxConns)

	if err != nil {
		return stores{}, err
	}

	if cfg.DB.Migrate {
		err = db.Migrate(ctx, pool)

		if err != nil {
			pool.Close()
			return stores{}, err
		}
	}

	users := postgres.NewUsersRepo(pool, prom)

	return stores{
		users: users,
		otps:  postgres.NewOtpsRepo(pool, prom),
		ping:  users.Ping,
		close: pool.Close,
	}, nil
}

// openUploads returns the storage and, for disk, the directory the router serves.
func openUploads(ctx context.Context, cfg config.Config) (upload.Storage, string, error) {
	if cfg.Upload.Driver == "minio" {
		mcfg := upload.MinioConfig{
			Endpoint:  cfg.Upload.MinioEndpoint,
			AccessKey: cfg.Upload.MinioAccessKey,
			SecretKey: cfg.Upload.MinioSecretKey,
			UseSSL:    cfg.Upload.MinioUseSSL,
			Bucket:    cfg.Upload.MinioBucket,
			PublicURL: cfg.Upload.MinioPublicURL,
		}

		client, err := upload.NewMinioClient(mcfg)

		if err != nil {
			return nil, "", err
		}

		s := upload.NewMinioStorage(client, mcfg)

		if err := s.EnsureBucket(ctx); err != nil {
			return nil, "", err
		}

		return s, "", nil
	}

	s, err := upload.NewDiskStorage(cfg.Upload.Dir, cfg.BaseURL)

	if err != nil {
		return nil, "", err
	}

	return s, cfg.Upload.Dir, nil
}

func openNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (account.Notifier, func(), error) {
	switch cfg.Email.Mode {
	case "sync":
		mailer := notifications.NewProtectedMailer(
			notifications.NewSMTPMailer(notifications.SMTPConfig{
				Host:     cfg.Email.SMTPHost,
				Port:     cfg.Email.SMTPPort,
				Username: cfg.Email.SMTPUsername,
				Password: cfg.Email.SMTPPassword,
				From:     cfg.Email.SMTPFrom,
			}),
			notifications.ProtectedMailerConfig{
				Timeout:          cfg.Email.SendTimeout,
				FailureThreshold: cfg.Email.FailureThreshold,
				Cooldown:         cfg.Email.Cooldown,
			},
		)

		return notifications.NewEmailNotifier(mailer, cfg.AppName), func() {}, nil

	case "queue":
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err != nil {
			return nil, nil, err
		}

		q := redisqueue.New(rc.Raw(), cfg.Redis.QueuePrefix)

		return redisqueue.NewNotifier(q), func() { _ = rc.Close() }, nil

	default:
		log.Info("email delivery disabled")
		return nil, func() {}, nil
	}
}
