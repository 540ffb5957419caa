package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	_ "modernc.org/sqlite"

	"github.com/yegors/voicebridge/internal/api"
	"github.com/yegors/voicebridge/internal/auth"
	"github.com/yegors/voicebridge/internal/bridge"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/internal/eventlog"
	"github.com/yegors/voicebridge/internal/llm"
	"github.com/yegors/voicebridge/internal/storage/sqlite"
	"github.com/yegors/voicebridge/internal/stt"
	"github.com/yegors/voicebridge/internal/tts"
	"github.com/yegors/voicebridge/internal/twilio"
	"github.com/yegors/voicebridge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "voicebridge: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting voicebridge",
		logger.String("public_host", cfg.Server.PublicHost),
		logger.Int("port", cfg.Server.Port),
	)

	db, err := sql.Open("sqlite", cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	events, err := eventlog.NewWriter(cfg.Storage.CallLogPath, log)
	if err != nil {
		return fmt.Errorf("failed to open call event log: %w", err)
	}
	defer events.Close()

	calls := sqlite.NewCallStorage(db, log)
	tokens := auth.NewTokenIssuer(&cfg.Auth, log)
	twilioClient := twilio.NewClient(&cfg.Twilio, log)
	signature := twilio.NewSignatureVerifier(&cfg.Twilio, log)
	responder := llm.NewResponder(&cfg.LLM, log)
	synthesizer := tts.NewSynthesizer(&cfg.TTS, log)

	// One transcription socket per call session
	newTranscriber := func() bridge.Transcriber {
		return stt.NewClient(&cfg.STT, log)
	}

	streamHandler := bridge.NewHandler(cfg, tokens, newTranscriber, responder,
		synthesizer, calls, events, log)

	router := api.NewRouter(cfg, twilioClient, signature, tokens, calls, events,
		streamHandler.HandleStream, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConnections)
	}

	server := &http.Server{
		Handler: router.Routes(),
		// Read and write timeouts are left unset so long-lived stream
		// sockets are not cut off mid-call.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", addr))
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	log.Info("Shutdown complete")
	return nil
}
