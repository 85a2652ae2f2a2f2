package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"chatmux/internal/app"
	"chatmux/pkg/config"
	"chatmux/pkg/logger"
	"chatmux/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])
	fileCfg, ferr := config.Load(cfgPath)
	fileExists := ferr == nil
	if !fileExists {
		fileCfg = &config.Config{}
	}
	envCfg, envRes := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		logger.InitWithLevel("")
		shutdown.Abort("config_load_failed", err, "", 0)
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup_failed", err, eff.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server_stopped")
}
