package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/sessionlens/internal/application"
	"github.com/bryanwahyu/sessionlens/internal/application/analyses"
	"github.com/bryanwahyu/sessionlens/internal/application/customtopics"
	"github.com/bryanwahyu/sessionlens/internal/config"
	"github.com/bryanwahyu/sessionlens/internal/infra/ai/openai"
	cryptox "github.com/bryanwahyu/sessionlens/internal/infra/crypto"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/sessionlens/internal/infra/httpserver"
	"github.com/bryanwahyu/sessionlens/internal/infra/storage"
	"github.com/bryanwahyu/sessionlens/internal/logger"
	"github.com/bryanwahyu/sessionlens/internal/middleware"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.DB.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	logger.Info("schema up to date", map[string]interface{}{"driver": cfg.Database.Driver})
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.DB.Close()
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	cipher, err := cryptox.NewCipher(cfg.Encryption.MasterKey, cfg.Encryption.Iterations)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db.DB},
	}

	sessionRepo := sqlstore.NewSessionRepository(db.DB, db.Dialect)
	analysesSvc := &analyses.Service{
		Repo:     sqlstore.NewAnalysisRepository(db.DB, db.Dialect),
		Sessions: sessionRepo,
		Cipher:   cipher,
		Clock:    application.SystemClock{},
		Options: analyses.Options{
			MaxCustomSearches:  cfg.Analyses.MaxCustomSearches,
			DefaultLanguage:    cfg.Analyses.DefaultLanguage,
			AnalysisVersion:    cfg.Analyses.AnalysisVersion,
			SavedSearchesLimit: cfg.Analyses.SavedSearchesLimit,
		},
	}

	// plot offload opsional, tanpa minio data URI disimpan apa adanya
	if cfg.Minio.Enabled {
		plots, err := storage.New(ctx, storage.Options{
			Endpoint:      cfg.Minio.Endpoint,
			Region:        cfg.Minio.Region,
			Bucket:        cfg.Minio.BucketName,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.Minio.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		analysesSvc.Plots = plots
		checkers["storage"] = plots
	}

	searchSvc := &customtopics.Service{
		Sessions:   sessionRepo,
		Classifier: openai.NewClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens),
		Recorder:   analysesSvc,
		Cipher:     cipher,
		Clock:      application.SystemClock{},
		Options: customtopics.Options{
			MaxCandidates:       cfg.Classification.MaxCandidates,
			MinSentenceLength:   cfg.Classification.MinSentenceLength,
			MaxAttempts:         cfg.Classification.MaxAttempts,
			RetryDelay:          cfg.Classification.RetryDelay,
			PacingDelay:         cfg.Classification.PacingDelay,
			ConfidenceThreshold: cfg.Classification.ConfidenceThreshold,
		},
	}

	handler := httpserver.NewRouter(analysesSvc, searchSvc, httpserver.Options{
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		SearchPerMinute: cfg.RateLimit.ClassificationPerMinute,
		SearchBurst:     cfg.RateLimit.Burst,
		HealthCheckers:  checkers,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]interface{}{
			"addr":   addr,
			"driver": cfg.Database.Driver,
			"model":  cfg.OpenAI.Model,
			"minio":  cfg.Minio.Enabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
