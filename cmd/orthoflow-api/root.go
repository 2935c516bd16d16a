package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:          "orthoflow-api",
	Short:        "Orthomosaic processing api",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogger installs the global logger described by cfg. The returned func
// flushes it and restores the previous globals.
func setupLogger(cfg *config.Config) func() {
	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl, cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
		undo()
	}
}
