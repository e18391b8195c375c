package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"polyglot-chat/assistant"
	"polyglot-chat/contract"
	"polyglot-chat/infrastructure/health"
	"polyglot-chat/infrastructure/websocket"
	"polyglot-chat/internal"
	"polyglot-chat/observability"
	"polyglot-chat/runtime"
	"polyglot-chat/runtime/workers"
	"polyglot-chat/translation"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal or a fatal error, then
// drains connections before the workers stop.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitoring := observability.NewMonitoringManager(logger)

	// 2. Translation
	cache, err := translation.OpenBadgerCache(config.TranslationCacheTTL)
	if err != nil {
		return exitRuntime, fmt.Errorf("translation cache opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing translation cache...")
		_ = cache.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug cache inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(cache.DB(), config.DebugPort, endpoint, TranslationMapper)
	}

	httpClient := &http.Client{}
	gateway := translation.NewGateway(logger, buildTranslator(config, httpClient), cache,
		monitoring, config.TranslationTimeout)

	// 3. Assistant
	answerer := buildAnswerer(config, logger, httpClient)

	// 4. Supervision & Orchestration
	sampler, err := workers.NewProcessSampler()
	if err != nil {
		logger.Warn("Process sampling disabled", "error", err)
	}
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator, err := runtime.NewOrchestrator(
		logger, sup, runtime.NewRegistry(), gateway, answerer, monitoring, sampler,
		config.AssistantName, config.AssistantTimeout,
		runtime.Options{
			NumWorkers:              config.NumberOfWorkers,
			BufferSize:              config.BufferSize,
			DefaultLanguage:         config.DefaultLanguage,
			MaxContentLength:        config.MaxContentLength,
			DetectSourceLanguage:    config.DetectSourceLanguage,
			EchoToSender:            config.EchoToSender,
			MaxParallelTranslations: config.MaxParallelTranslations,
			ModerationEnabled:       config.ModerationEnabled,
			CharReplacement:         charReplacement,
			AssistantPrefixes:       config.Prefixes(),
			AssistantWorkers:        config.AssistantWorkers,
			MetricInterval:          config.MetricInterval,
		},
	)
	if err != nil {
		return exitRuntime, fmt.Errorf("orchestrator setup failed: %w", err)
	}

	errChan := make(chan error, 3)

	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 5. Websocket server
	wsServer := websocket.NewServer(ctx, logger, orchestrator, monitoring, websocket.Config{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxFrameSize:         config.MaxFrameSize,
		WriteTimeout:         config.WriteTimeout,
		PongTimeout:          config.PongTimeout,
	})
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		Handler:           wsServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting websocket server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()

	// 6. gRPC health server
	healthAddress := net.JoinHostPort(config.Host, fmt.Sprint(config.HealthPort))
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	healthServer := health.NewServer(logger)
	healthServer.SetServing(true)
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			errChan <- fmt.Errorf("health server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		healthServer.Stop()
		return exitRuntime, err
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	healthServer.SetServing(false)
	wsServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	healthServer.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildTranslator(config internal.Config, client *http.Client) contract.Translator {
	phrasebook := translation.NewPhrasebook()
	if config.TranslatorBackend == internal.TranslatorPhrasebook {
		return phrasebook
	}
	return translation.Chain{
		translation.NewGoogleTranslator(client, config.GoogleTranslateURL),
		phrasebook,
	}
}

// TranslationMapper renders a cached translation in the debug inspector.
func TranslationMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type = "TRANSLATION"

	var value wrapperspb.StringValue
	if err := proto.Unmarshal(val, &value); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Detail = value.GetValue()
	return row
}

// buildAnswerer returns nil when the assistant is disabled.
func buildAnswerer(config internal.Config, logger *slog.Logger, client *http.Client) contract.Answerer {
	ollama := assistant.NewOllamaAnswerer(client, config.OllamaURL, config.OllamaModel)
	openai := assistant.NewOpenAIAnswerer(client, config.OpenAIURL, config.OpenAIModel, config.OpenAIAPIKey)
	switch config.AssistantBackend {
	case internal.AssistantOllama:
		return ollama
	case internal.AssistantOpenAI:
		return openai
	case internal.AssistantChain:
		return assistant.NewChain(logger, ollama, openai)
	default:
		return nil
	}
}
