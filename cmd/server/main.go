package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/recruiter/api"
	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/application"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/catalog"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/cvparse"
	"github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/files"
	"github.com/garnizeh/recruiter/internal/interview"
	"github.com/garnizeh/recruiter/internal/jobpost"
	"github.com/garnizeh/recruiter/internal/jobs"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/internal/syncqueue"
	"github.com/garnizeh/recruiter/pkg/elevenlabs"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/ollama"
	"github.com/garnizeh/recruiter/pkg/repository"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	api.SetLogger(logger)
	storage.SetLogger(logger)
	syncqueue.SetLogger(logger)
	cvparse.SetLogger(logger)
	ollama.SetLogger(logger)
	elevenlabs.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting recruiter server", slog.String("version", version), slog.String("build_time", buildTime))
	ctx := context.Background()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			return err
		}
	}
	repo := sqlite.New(database, logger).Repository()
	if err := seedAdmin(ctx, repo.User, cfg.Admin, logger); err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	local, _ := store.(*storage.Local)

	// Background jobs and cross-region sync
	jobRepo := jobs.NewRepository(database)
	recorder := syncqueue.NewRecorder(jobRepo, cfg.RabbitMQ.SourceRegion)
	var publisher syncqueue.Publisher = syncqueue.LogPublisher{}
	if cfg.RabbitMQ.URL != "" {
		amqpPub, err := syncqueue.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return err
		}
		publisher = amqpPub
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("close sync publisher", slog.Any("err", err))
		}
	}()

	voice, err := elevenlabs.NewClient(cfg.ElevenLabs, nil)
	if err != nil {
		return err
	}
	defer voice.Close()

	health := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return database.GetConn().PingContext(ctx) },
	}

	profiles := candidate.NewService(repo, recorder, logger)
	cat := catalog.NewService(repo, recorder, logger)

	var extractor files.CVExtractor
	var loader *cvparse.Loader
	if cfg.CV.Enabled {
		llm, err := ollama.NewClient(cfg.Ollama, nil)
		if err != nil {
			return err
		}
		defer llm.Close()
		health["ollama"] = llm.Health

		if loader, err = cvparse.NewLoader(ctx, repo.Schema); err != nil {
			return err
		}
		ex, err := cvparse.NewExtractor(llm, cat, loader, cfg.CV)
		if err != nil {
			return err
		}
		extractor = ex
	}

	posts := jobpost.NewService(repo, recorder, logger)
	steps := jobpost.NewStepService(repo, recorder, logger)
	assignments := jobpost.NewAssignmentService(repo, recorder, logger)
	apps := application.NewService(repo, cat, recorder, logger)
	interviews := interview.NewService(repo, apps, voice, store, interview.Options{
		Container: cfg.Storage.InterviewContainer,
		Queue:     jobRepo,
		Scorer:    interview.NewScorer(cfg.Scoring, nil),
		Recorder:  recorder,
		Logger:    logger,
	})
	fileSvc := files.NewService(repo, store, profiles, extractor, jobRepo, recorder, cfg.Storage, logger)

	var webhook api.SignatureValidator
	if cfg.ElevenLabs.WebhookSecret != "" {
		webhook = elevenlabs.NewWebhookValidator(cfg.ElevenLabs.WebhookSecret)
	} else {
		logger.Warn("elevenlabs webhook secret not set; webhook endpoint disabled")
	}

	pool := jobs.NewWorkerPool(jobRepo, nil, logger, cfg.Workers)
	pool.Register(jobs.TypeCVProcess, fileSvc.ProcessCV)
	pool.Register(jobs.TypeInterviewScore, interviews.ScoreJob)
	pool.Register(jobs.TypeSyncPublish, syncqueue.Handler(publisher))
	pool.Start(ctx)

	handler := api.SetupRoutes(cfg, version, buildTime, &api.Services{
		Repo:         repo,
		Profiles:     profiles,
		Catalog:      cat,
		Posts:        posts,
		Steps:        steps,
		Assignments:  assignments,
		Orchestrator: jobpost.NewOrchestrator(repo, posts, steps, assignments, logger),
		Applications: apps,
		Interviews:   interviews,
		Files:        fileSvc,
		LocalStorage: local,
		SchemaLoader: loader,
		Webhook:      webhook,
		Health:       health,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: 2 * cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		pool.Stop()
		return err
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	pool.Stop()

	logger.Info("server exited")
	return nil
}

// seedAdmin creates the configured admin account when it does not exist yet.
func seedAdmin(ctx context.Context, users repository.UserRepo, admin config.AdminConfig, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return nil
	}
	existing, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{models.RoleAdmin, models.RoleRecruiter},
	}
	if err := users.CreateUser(ctx, u); err != nil {
		return err
	}
	logger.Info("admin user seeded", slog.String("email", email))
	return nil
}
