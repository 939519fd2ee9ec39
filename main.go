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

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/handler"
	"github.com/AnTengye/contractrisk/pkg/logger"
	"github.com/AnTengye/contractrisk/service"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded successfully",
		"model", cfg.LLM.Model,
		"workers", cfg.Pipeline.Workers,
		"contract_types", len(cfg.Analysis.ContractTypes),
	)

	if cfg.Upload.TempDir != "" {
		if err := os.MkdirAll(cfg.Upload.TempDir, 0o700); err != nil {
			slog.Error("failed to create upload directory", "dir", cfg.Upload.TempDir, "error", err)
			os.Exit(1)
		}
	}
	if _, err := os.Stat(cfg.Report.FontPath); err != nil {
		slog.Warn("report font not found, PDF download will fail", "font_path", cfg.Report.FontPath)
	}

	// Initialize services
	store := service.NewJobStore(&cfg.Store)
	extractor := service.NewExtractor(&cfg.Analysis)
	analyzer, err := service.NewAnalyzer(service.NewOpenAIClient(&cfg.LLM))
	if err != nil {
		slog.Error("failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	pipeline := service.NewPipeline(&cfg.Pipeline, store, extractor, analyzer)
	renderer := service.NewPDFRenderer(&cfg.Report)

	gin.SetMode(gin.ReleaseMode)
	router, err := handler.NewRouter(handler.Deps{
		Config:   cfg,
		Store:    store,
		Checker:  extractor,
		Pipeline: pipeline,
		Renderer: renderer,
	})
	if err != nil {
		slog.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// In-flight analyses are lost on exit; give them the model timeout to finish.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
	defer drainCancel()
	if err := pipeline.Wait(drainCtx); err != nil {
		slog.Warn("pipeline did not drain before exit", "error", err)
	}

	slog.Info("server exited gracefully")
}
