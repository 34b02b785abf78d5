package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/aasha/config"
	"github.com/room4-2/aasha/dialogue"
	"github.com/room4-2/aasha/gemini"
	"github.com/room4-2/aasha/server"
	"github.com/room4-2/aasha/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create session manager
	sessionManager, err := session.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Timeout:     cfg.LLMTimeout,
		MaxAttempts: cfg.LLMMaxAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	log.Printf("🤖 Using model %s (timeout %s, %d attempts, %s per turn)",
		llm.Model(), cfg.LLMTimeout, cfg.LLMMaxAttempts, cfg.TurnBudget)

	router := dialogue.NewRouter(sessionManager, dialogue.NewClassifier(llm), dialogue.NewComposer(llm)).
		WithTurnBudget(cfg.TurnBudget)
	srv := server.NewServer(cfg, sessionManager, router)

	// Start cleanup routine
	go sessionManager.StartCleanupRoutine(ctx)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
