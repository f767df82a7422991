package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/internal/config"
	"pairchat/internal/domain"
	"pairchat/internal/httpserver"
	"pairchat/internal/obs"
	"pairchat/internal/security"
	"pairchat/internal/storage"
	"pairchat/internal/store/postgres"
	"pairchat/internal/store/sqlite"
	"pairchat/internal/ws"
)

// @title           pairchat API
// @version         1.0
// @description     Pairwise chat backend with real-time message delivery.

// @host            localhost:5000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.Env, cfg.Debug)

	var (
		db    *sql.DB
		repos domain.Repositories
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = postgres.Open(cfg.DatabaseURL)
		if err == nil {
			err = postgres.Migrate(db)
		}
		if err != nil {
			log.Error("postgres init", "err", err)
			os.Exit(1)
		}
		repos = postgres.NewRepositories(db)
	default:
		db, err = sqlite.Open(cfg.SQLitePath)
		if err == nil {
			err = sqlite.Migrate(db)
		}
		if err != nil {
			log.Error("sqlite init", "err", err)
			os.Exit(1)
		}
		repos = sqlite.NewRepositories(db)
	}
	defer db.Close()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	var blobs storage.Store
	if cfg.UploadBackend == "s3" {
		blobs, err = storage.NewS3Store(context.Background(), storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Error("s3 init", "err", err)
			os.Exit(1)
		}
	} else {
		blobs = storage.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	}

	presence := ws.NewPresence()
	router := httpserver.NewRouter(cfg, log, repos, presence, tokenSvc, passwordHasher, blobs)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", cfg.HTTPAddr(), "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown failed", "err", err)
	}
}
