package logging

import (
	"fmt"

	"github.com/lyricgen/lyricgen/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger from the logging section. Output goes to
// stderr so it never mixes with artifacts written to stdout.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	var zapConfig zap.Config
	switch cfg.Format {
	case "json":
		zapConfig = zap.NewProductionConfig()
	case "console", "":
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unsupported logging format %q", cfg.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("lyricgen"), nil
}
