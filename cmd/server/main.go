package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solus.com/command-relay/internal/api"
	"solus.com/command-relay/internal/config"
	"solus.com/command-relay/internal/core"
	"solus.com/command-relay/internal/models"
	"solus.com/command-relay/internal/provider"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	registry := models.NewRegistry()
	if cfg.ModelsFile != "" {
		var err error
		registry, err = models.LoadRegistry(cfg.ModelsFile)
		if err != nil {
			log.Fatalf("Failed to load model overrides: %v", err)
		}
		log.Printf("Loaded model overrides from %s", cfg.ModelsFile)
	}

	// Backends. The reasoning model also classifies intents.
	anthropic := provider.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	gemini := provider.NewGemini(cfg.GoogleAIAPIKey, cfg.GeminiModel)
	defer gemini.Close()
	search := provider.NewSearch(cfg.PerplexityURL, cfg.PerplexityAPIKey, cfg.PerplexityModel, provider.NewHTTPClient())

	adapters := provider.NewTable()
	adapters.Register(models.Claude, provider.NewTokenAdapter("anthropic", anthropic))
	adapters.Register(models.Gemini, provider.NewTokenAdapter("gemini", gemini))
	adapters.Register(models.Perplexity, search)

	intentService := core.NewIntentService(anthropic, registry)
	streamService := core.NewStreamService(registry, intentService, adapters)

	for _, d := range registry.Available() {
		log.Printf("Model %s (%s) available", d.ID, d.Provider)
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(streamService, registry)
	router := api.NewRouter(apiHandler, api.RouterOptions{
		LogRequests:    cfg.LogRequests,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: responses stream for as long as the backend does.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give in-flight streams time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
