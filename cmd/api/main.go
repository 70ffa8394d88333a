package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"infinitetms/internal/assistant"
	"infinitetms/internal/auth"
	"infinitetms/internal/config"
	"infinitetms/internal/httpserver"
	"infinitetms/internal/jobs"
	"infinitetms/internal/logger"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
	"infinitetms/internal/service"
	"infinitetms/internal/storage"
	redispkg "infinitetms/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := pflag.String("port", "", "HTTP port (overrides HTTP_PORT)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		zap.NewExample().Sugar().Fatalw("config", "error", err)
	}
	if *port != "" {
		cfg.HTTPPort = *port
	}
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Ticket{}, &models.TicketUpdate{}, &models.Session{}, &models.AuditLog{},
		&models.Attendance{}, &models.Document{}, &models.WorkUpdate{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	rdb, err := redispkg.NewClient(ctx, redispkg.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
	if err != nil {
		lg.Fatalw("redis connect failed", "addr", cfg.RedisAddr, "error", err)
	}
	defer rdb.Close()

	files, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		lg.Fatalw("upload dir", "dir", cfg.UploadDir, "error", err)
	}
	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessExpiry)
	if err != nil {
		lg.Fatalw("token issuer", "error", err)
	}
	ai := assistant.New(assistant.Config{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.OpenAITimeout,
	}, lg)
	if !ai.Configured() {
		lg.Warnw("OPENAI_API_KEY not set; summaries and chat answer with fallback text")
	}

	userRepo := repository.NewUserRepository(db)
	audit := service.NewAuditor(repository.NewAuditRepository(db), lg)
	authSvc := service.NewAuthService(
		userRepo,
		repository.NewSessionRepository(db),
		issuer,
		auth.NewRefreshStore(rdb, cfg.JWTRefreshExpiry),
		cfg.JWTRefreshExpiry,
		audit,
		lg,
	)
	if err := authSvc.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		lg.Fatalw("seed admin failed", "error", err)
	}

	sweeper, err := jobs.NewCron(cfg.SessionSweepCron, authSvc, rdb, lg)
	if err != nil {
		lg.Fatalw("cron", "error", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := httpserver.NewRouter(httpserver.Deps{
		Issuer:      issuer,
		Sessions:    authSvc,
		Auth:        authSvc,
		Users:       service.NewUserService(userRepo, files, authSvc, audit, lg),
		Tickets:     service.NewTicketService(repository.NewTicketRepository(db), userRepo, files, ai, audit, lg),
		Attendance:  service.NewAttendanceService(repository.NewAttendanceRepository(db), service.Office{Lat: cfg.OfficeLat, Lng: cfg.OfficeLng, RadiusMeters: cfg.OfficeRadius}, audit),
		Documents:   service.NewDocumentService(repository.NewDocumentRepository(db), files, audit, lg),
		WorkUpdates: service.NewWorkUpdateService(repository.NewWorkUpdateRepository(db)),
		Audit:       audit,
		Assistant:   ai,
		Uploads:     files.Handler(),

		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		// multipart framing on top of the file itself
		MaxUploadBytes: cfg.MaxUploadBytes + 1<<20,
	}, lg)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Infow("listening", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalw("http server", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorw("graceful shutdown failed", "error", err)
	}
}
