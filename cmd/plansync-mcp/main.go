package main

import (
	"flag"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "plansync/internal/adapters/mcp"
	"plansync/internal/bootstrap"
	"plansync/internal/config"
	"plansync/internal/logging"
)

const version = "0.1.0"

func main() {
	repoFlag := flag.String("repo", ".", "path to the git repository")
	flag.Parse()

	logger := logging.Init("plansync-mcp", logging.JSON, "info")
	cfg, err := config.Load(*repoFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger = logger.Level(logging.ParseLevel(cfg.LogLevel))

	rt, err := bootstrap.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open engine")
	}

	s := mcpadapter.NewServer("plansync-mcp", version, rt.Orchestrator)

	logger.Info().Str("repo", cfg.RepoDir).Msg("serving on stdio")
	serveErr := server.ServeStdio(s)
	if err := rt.Close(); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("serve")
		os.Exit(1)
	}
}
