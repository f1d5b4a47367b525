package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"enceladus/internal/app"
	"enceladus/pkg/config"
	"enceladus/pkg/config/banner"
	"enceladus/pkg/state"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/state/shutdown"

	"github.com/joho/godotenv"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// abort reports a fatal startup error. Once the state directories exist a
// crash dump is written as well.
func abort(reason string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", reason, err)
	if state.PathsVar.Crash != "" {
		state.Crash(reason, err)
	}
	os.Exit(1)
}

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags, err := config.ParseConfigFlags(os.Args[1:])
	if err != nil {
		abort("invalid flags", err)
	}

	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		abort("failed to load config file", err)
	}

	envCfg, envRes, err := config.ParseConfigEnvs()
	if err != nil {
		abort("invalid environment", err)
	}

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		abort("failed to build effective config", err)
	}
	if err := config.ValidateConfig(eff); err != nil {
		abort("invalid configuration", err)
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "ws_addr", eff.WSAddr, "db_path", eff.DBPath)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	// init database folders and ensure the filesystem layout.
	if err := state.Init(eff.DBPath); err != nil {
		logger.Error("state_dirs_setup_failed", "error", err)
		abort(fmt.Sprintf("failed to ensure state directories under %s", eff.DBPath), err)
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		abort("failed to initialize app", err)
	}
	banner.Print(os.Stdout, eff, a.BuildInfo())

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)

	// bounded teardown so a stuck step cannot hang the process
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}
	if runErr != nil {
		abort("app run failed", runErr)
	}
}
