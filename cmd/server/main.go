// Package main is the entry point for the Master of Jokes server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (environment variables, optionally a .env file)
//  2. Build the logger
//  3. Create and start the server
//
// All actual logic lives in internal/server, internal/service and friends.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/master-of-jokes/internal/config"
	"github.com/sakif/master-of-jokes/internal/logger"
	"github.com/sakif/master-of-jokes/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// JWT_SECRET is required. Generate one with:
	//   JWT_SECRET=$(openssl rand -hex 32)
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the level and format come from the config.
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL: debug|info|warn|error, LOG_FORMAT: text|json.
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
