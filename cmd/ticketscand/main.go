package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/export"
	"github.com/quarryops/ticketscan/internal/extract"
	"github.com/quarryops/ticketscan/internal/ingest"
	"github.com/quarryops/ticketscan/internal/llm/openai"
	"github.com/quarryops/ticketscan/internal/orient"
	"github.com/quarryops/ticketscan/internal/pdf"
	"github.com/quarryops/ticketscan/internal/server"
	"github.com/quarryops/ticketscan/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.NewStore(cfg.Storage.UploadRoot, logger)
	if err != nil {
		logger.Error("store.init_failed", "upload_root", cfg.Storage.UploadRoot, "error", err)
		os.Exit(1)
	}

	vision := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if !vision.Configured() {
		logger.Warn("llm.not_configured", "hint", "set OPENAI_API_KEY to enable vision endpoints")
	}

	srv := server.New(
		cfg,
		store,
		ingest.NewService(store, logger),
		orient.NewService(store, vision, logger),
		extract.NewService(store, vision, logger),
		export.NewService(logger),
		pdf.NewSplitter(store, logger),
		vision,
		logger,
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http.serving", "addr", cfg.Server.HTTPAddr, "upload_root", store.Root())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http.serve_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http.shutdown_failed", "error", err)
	}
	logger.Info("stopped")
}
