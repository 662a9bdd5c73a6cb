package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lexiqai/voice-character/internal/asr"
	"github.com/lexiqai/voice-character/internal/chat"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/pipeline"
	"github.com/lexiqai/voice-character/internal/tts"
	"github.com/lexiqai/voice-character/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("asr_backend", cfg.ASRBackend).
		Str("chat_backend", cfg.ChatBackend).
		Str("character", cfg.CharacterName).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice character server starting")

	transcriber, err := asr.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}
	responder, err := chat.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create responder")
	}

	// The browser speaks replies itself
	orch := pipeline.New(transcriber, responder, tts.Silent{})

	site, err := web.NewServer(cfg, orch)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load page template")
	}

	mux := http.NewServeMux()
	site.Register(mux)

	mux.HandleFunc("GET /health", observability.HealthCheckHandler())

	checks := readinessChecks(cfg)
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(checks))

	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// An upload waits on up to three collaborators in a row
	server := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Port),
		Handler:      otelhttp.NewHandler(mux, "voice-character"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3*cfg.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grpcHealth *observability.GRPCHealthServer
	if cfg.GRPCHealthPort != "" {
		grpcHealth, err = observability.NewGRPCHealthServer(net.JoinHostPort("", cfg.GRPCHealthPort), checks)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start gRPC health server")
		}
		go func() {
			if err := grpcHealth.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Shutdown()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// readinessChecks only validates configuration; probing the collaborators
// would cost an API call per probe.
func readinessChecks(cfg *config.Config) map[string]observability.HealthCheckFunc {
	checks := make(map[string]observability.HealthCheckFunc)

	switch cfg.ASRBackend {
	case config.ASRBackendDeepgram:
		checks["deepgram"] = observability.CredentialCheck(cfg.DeepgramAPIKey)
	default:
		checks["groq_whisper"] = observability.CredentialCheck(cfg.GroqAPIKey)
	}

	switch cfg.ChatBackend {
	case config.ChatBackendExternal:
		checks["external_chat"] = func(ctx context.Context) (bool, error) {
			if ok, err := observability.CredentialCheck(cfg.ExternalChatUsername)(ctx); !ok {
				return false, err
			}
			return observability.CredentialCheck(cfg.ExternalChatPassword)(ctx)
		}
	default:
		checks["groq_chat"] = observability.CredentialCheck(cfg.GroqAPIKey)
	}

	return checks
}
