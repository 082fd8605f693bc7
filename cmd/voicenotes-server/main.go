package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/internal/api"
	"github.com/snditnz/verbumcare-demo-sub002/internal/approval"
	"github.com/snditnz/verbumcare-demo-sub002/internal/auth"
	"github.com/snditnz/verbumcare-demo-sub002/internal/config"
	"github.com/snditnz/verbumcare-demo-sub002/internal/recording"
	"github.com/snditnz/verbumcare-demo-sub002/internal/reviewqueue"
	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/internal/transcriber"
	"github.com/snditnz/verbumcare-demo-sub002/internal/voice"
	"github.com/snditnz/verbumcare-demo-sub002/internal/websocket"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting voice-note review service",
		logger.String("config", configPath))

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	// Storage
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	recordingStorage := sqlite.NewRecordingStorage(db, log)
	noteStorage := sqlite.NewNoteStorage(db, log)
	reviewStorage := sqlite.NewReviewStorage(db, log)

	// Websocket event hub
	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	defer wsServer.Close()

	// Transcriber client
	transcriberClient := transcriber.NewClient(transcriber.Config{
		BaseURL:          cfg.Transcription.BaseURL,
		Language:         cfg.Transcription.Language,
		Timeout:          time.Duration(cfg.Transcription.TimeoutSec) * time.Second,
		RetryMaxAttempts: cfg.Transcription.RetryMaxAttempts,
		RetryBackoff:     time.Duration(cfg.Transcription.RetryBackoffMs) * time.Millisecond,
	}, log)

	// Upload pipeline
	voiceService := voice.NewService(recordingStorage, voice.Config{
		StorageDir:        cfg.Recording.StorageDir,
		DefaultLanguage:   cfg.Transcription.Language,
		DeleteAfterUpload: cfg.Recording.DeleteAfterUpload,
	}, log)

	// Categorization worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var categorizer *voice.Categorizer
	if cfg.Categorizer.Enabled {
		structurer, err := voice.NewOpenAIClient(
			cfg.Categorizer.OpenAIAPIKey,
			cfg.Categorizer.Model,
			cfg.Categorizer.SystemPromptPath,
			time.Duration(cfg.Categorizer.TimeoutSec)*time.Second,
			log,
		)
		if err != nil {
			return fmt.Errorf("failed to create structuring client: %w", err)
		}

		categorizer = voice.NewCategorizer(ctx, recordingStorage, noteStorage, reviewStorage,
			transcriberClient, structurer, wsServer, voice.CategorizerConfig{
				Enabled:         cfg.Categorizer.Enabled,
				IntervalSeconds: cfg.Categorizer.IntervalSeconds,
				BatchSize:       cfg.Categorizer.BatchSize,
			}, log)
		if err := categorizer.Start(); err != nil {
			return fmt.Errorf("failed to start categorizer: %w", err)
		}
		defer categorizer.Stop()
	} else {
		log.Warn("Categorization is disabled; uploaded recordings will not be processed")
	}

	// Review queue and approval
	queueStore := reviewqueue.NewStore(reviewStorage, log)
	approvalService := approval.NewService(noteStorage, reviewStorage, wsServer, log)

	// Auth and context resolution
	authService := auth.NewService(cfg.Auth.SigningKey,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, log)
	resolver := recording.NewResolver(cfg.ContextFreshness(), log)

	// HTTP server
	router := api.NewRouter(voiceService, queueStore, approvalService, noteStorage,
		authService, resolver, transcriberClient, wsServer, db, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-sigCh:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Error(err))
	}

	return nil
}
