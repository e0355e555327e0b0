package main

import (
	"context"
	"os"
	"strconv"

	"github.com/desertthunder/depicts/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// Optional .env for local overrides; absence is not an error.
	godotenv.Load()

	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := os.Getenv("DEPICTS_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	applyEnv(config)

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "depicts",
		Usage:    "Audit Wikimedia Commons categories for depicts (P180) statements",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// applyEnv layers environment overrides on top of the loaded config.
func applyEnv(config *shared.Config) {
	if path := os.Getenv("DEPICTS_DB_PATH"); path != "" {
		config.Database.Path = path
	}
	if url := os.Getenv("DEPICTS_API_URL"); url != "" {
		config.Commons.APIURL = url
	}
	if url := os.Getenv("DEPICTS_WIKIDATA_API_URL"); url != "" {
		config.Commons.WikidataAPIURL = url
	}
	if agent := os.Getenv("DEPICTS_USER_AGENT"); agent != "" {
		config.Commons.UserAgent = agent
	}
	if host := os.Getenv("DEPICTS_HOST"); host != "" {
		config.Server.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("DEPICTS_PORT")); err == nil && port > 0 {
		config.Server.Port = port
	}
}
