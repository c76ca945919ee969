// Command simulator runs the LLM conversation simulation and
// evaluation service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"simulator/pkg/api"
	"simulator/pkg/batch"
	"simulator/pkg/config"
	"simulator/pkg/engine"
	"simulator/pkg/eval"
	"simulator/pkg/llm"
	"simulator/pkg/llm/factory"
	"simulator/pkg/llm/middleware/metrics"
	"simulator/pkg/logx"
	"simulator/pkg/prompts"
	"simulator/pkg/results"
	"simulator/pkg/session"
)

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	logx.SetDebug(debug)
	if err := logx.EnableFileLogging(cfg.LogsDir); err != nil {
		log.Printf("File logging disabled: %v", err)
	}
	defer logx.CloseFileLogging()

	logger := logx.NewLogger("simulator")
	logger.Info("starting simulation service: model=%s concurrency=%d", cfg.Model, cfg.Concurrency)

	usage := metrics.NewInternalRecorder()
	recorder := metrics.MultiRecorder{metrics.NewPrometheusRecorder(), usage}

	client, err := factory.NewClient(cfg, recorder)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	processor, exporter, archive, err := buildService(cfg, client)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	if archive != nil {
		defer archive.Close()
	}

	server := api.NewServer(processor, exporter,
		api.WithArchive(archive),
		api.WithUsageRecorder(usage),
		api.WithHealthCheck(cfg.Validate),
	)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error: %v", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildService wires the conversation engine, evaluator and batch
// processor around a ready LLM client.
func buildService(cfg *config.Config, client llm.Client) (*batch.Processor, *results.Exporter, *results.Archive, error) {
	requester := llm.NewRequester(client)
	promptStore := prompts.NewStore(cfg.PromptsDir)
	sessions := session.NewManager(cfg.WebhookURL)

	eng := engine.New(requester, promptStore, sessions, engine.Options{
		MaxTurns: cfg.MaxTurns,
		Timeout:  factory.Timeout(cfg),
	})
	evaluator := eval.New(requester, promptStore)
	processor := batch.NewProcessor(eng, evaluator, batch.NewStore(), cfg.Concurrency)

	exporter := results.NewExporter(cfg.ResultsDir)
	archive, err := results.OpenArchive(filepath.Join(cfg.ResultsDir, "archive.db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return processor, exporter, archive, nil
}
