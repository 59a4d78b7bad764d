package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"

	"noticeboard/internal/app"
	"noticeboard/pkg/config"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/shutdown"
)

// set via ldflags during release builds
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addr := flag.String("addr", "", "listen address (host:port), overrides config")
	db := flag.String("db", "", "pebble store path, overrides config")
	cfgPath := flag.String("config", "noticeboard.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Init("")
		shutdown.Abort("failed to load config", err, "")
	}
	if *addr != "" {
		host, port := config.SplitAddr(*addr)
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if *db != "" {
		cfg.Storage.DBPath = *db
	}

	logger.Init(cfg.Logging.Level)
	defer logger.Sync()

	a, err := app.New(cfg, version)
	if err != nil {
		shutdown.Abort("failed to initialize server", err, cfg.DBPath())
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited with error", err, cfg.DBPath())
	}
}
