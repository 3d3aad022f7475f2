package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/yoockh/formdesk/config"
	"github.com/yoockh/formdesk/internal/api/handlers"
	"github.com/yoockh/formdesk/internal/api/middleware"
	"github.com/yoockh/formdesk/internal/api/routes"
	"github.com/yoockh/formdesk/internal/logger"
	"github.com/yoockh/formdesk/internal/notify"
	"github.com/yoockh/formdesk/internal/ratelimit"
	pgrepo "github.com/yoockh/formdesk/internal/repositories/postgres"
	"github.com/yoockh/formdesk/internal/services"
	"github.com/yoockh/formdesk/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.Log.Level)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := pgrepo.Migrate(db); err != nil {
			log.Fatalf("PostgreSQL migrate error: %v", err)
		}
	}
	log.Info("PostgreSQL connected")

	store, closeStore, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer closeStore()

	notifier, err := newNotifier(cfg.Mail, log)
	if err != nil {
		log.Fatalf("mail init error: %v", err)
	}

	limiter, stopLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		log.Fatalf("rate limiter init error: %v", err)
	}
	defer stopLimiter()

	jobs := pgrepo.NewJobApplicationRepo(db)
	complaints := pgrepo.NewComplaintRepo(db)

	intake := services.NewIntakeService(jobs, complaints, store, notifier, services.IntakeConfig{
		GeneralFolder:    cfg.Storage.FolderID,
		ComplaintsFolder: cfg.Storage.ComplaintsFolder(),
		MaxUploadBytes:   cfg.Intake.MaxUploadBytes,
		AllowedMimeTypes: cfg.Intake.AllowedMimeTypes,
		Recipients:       notify.CleanAddresses(cfg.Mail.To),
		CC:               notify.CleanAddresses(cfg.Mail.CC),
		CallTimeout:      cfg.Intake.ExternalCallTimeout,
	}, log)
	reports := services.NewReportService(jobs)

	deps := routes.Deps{
		Logger:         log,
		Limiter:        limiter,
		CORS:           cfg.CORS,
		Submissions:    handlers.NewSubmissionHandler(intake, cfg.Intake.MaxUploadBytes),
		Reports:        handlers.NewReportHandler(reports),
		StaticDir:      cfg.Server.StaticDir,
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	if cfg.Report.JWTSecret != "" {
		deps.ReportGuard = middleware.AdminAuth(cfg.Report.JWTSecret, cfg.Report.JWTIssuer)
	}

	r, err := routes.NewEngine(deps)
	if err != nil {
		log.Fatalf("router init error: %v", err)
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, func(), error) {
	switch cfg.Driver {
	case "gcs":
		var opts []option.ClientOption
		switch {
		case strings.TrimSpace(cfg.CredentialsJSON) != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		s, err := storage.NewGCSStore(ctx, cfg.Bucket, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := storage.NewDriveStore(ctx, storage.DriveCredentials{
			File: cfg.CredentialsFile,
			JSON: cfg.CredentialsJSON,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func newNotifier(cfg config.MailConfig, log *logrus.Logger) (notify.Notifier, error) {
	if !cfg.Enabled {
		return notify.NopNotifier{Logger: log}, nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.Sender(),
		Insecure: cfg.Insecure,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.Backend == "redis" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rdb, err := config.NewRedis(pingCtx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.PerMinute, time.Minute), func() { _ = rdb.Close() }, nil
	}

	l := ratelimit.NewMemoryLimiter(cfg.RateLimit.PerMinute, time.Minute, cfg.RateLimit.SweepInterval)
	return l, l.Stop, nil
}
