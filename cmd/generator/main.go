package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/afroash/dht-generator/internal/config"
	"github.com/afroash/dht-generator/internal/generator"
	"github.com/afroash/dht-generator/internal/ingest"
	"github.com/afroash/dht-generator/internal/logging"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("generator", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to YAML config file (optional)")
	envFile := flags.String("env-file", ".env", "path to .env file (ignored if missing)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(stderr, "Failed to load env file: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, closeLog, err := logging.New(cfg.Logging, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer closeLog()

	gen := generator.New(cfg.Generator, logger)
	logger = logger.With().Str("run_id", gen.RunID()).Logger()

	logger.Info().
		Str("version", version).
		Str("transport", cfg.Ingest.Transport).
		Msg("Starting sensor data generator")
	logger.Debug().Msg(cfg.String())

	dial, err := ingest.NewDialer(cfg.Ingest, gen.RunID(), logger)
	if err != nil {
		logger.Error().Msg("Something went wrong!")
		logger.Error().Err(err).Msg("Generator aborted")
		return 1
	}

	result, err := gen.Run(ctx, dial)
	if err != nil {
		logger.Error().Msg("Something went wrong!")
		logger.Error().
			Err(err).
			Int("readings", result.Readings).
			Int("flushes", result.Flushes).
			Msg("Generator aborted")
		return 1
	}
	return 0
}
