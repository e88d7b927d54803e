package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"taskhub/docs"
	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/internal/handler"
	"taskhub/internal/logger"
	"taskhub/internal/mailer"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/router"
	"taskhub/internal/service"
)

// @title Taskhub API
// @version 1.0
// @description Authentication, sessions and user management for the taskhub project management backend.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		fatal(log, "database init", err)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping users table")
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			log.Warn("drop table failed (may not exist)", slog.Any("error", err))
		}
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		fatal(log, "auto-migrate", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.Warn("redis unavailable, session presence and revocation degrade to no-ops", slog.Any("error", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	authMetrics := metrics.NewAuthMetrics(reg)

	var mail mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.MailHost != "" {
		smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			fatal(log, "mailer init", err)
		}
		mail = smtp
	} else {
		log.Info("MAIL_HOST not set, emails are logged instead of sent")
	}

	// Repositories and auth components
	userRepo := repository.NewUserRepository(gormDB)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiresIn)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Services
	authService := service.NewAuthService(service.AuthDeps{
		Users:         userRepo,
		Hasher:        hasher,
		Tokens:        jwtService,
		Store:         tokenStore,
		Mailer:        mail,
		Metrics:       authMetrics,
		Logger:        log,
		ResetTokenTTL: cfg.ResetTokenTTL,
	})
	userService := service.NewUserService(userRepo, cacheClient, tokenStore, hasher, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, handler.CookieOptions{
		MaxAge: cfg.CookieMaxAge(),
		Secure: cfg.CookieSecure,
	}, cfg.PublicBaseURL)
	userHandler := handler.NewUserHandler(userService)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, log, reg, authService, userHandler, authHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", slog.String("addr", addr), slog.String("env", cfg.AppEnv), slog.Bool("demo_mode", cfg.DemoMode))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server start", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", slog.Any("error", err))
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
