package cli

import (
	"os"

	"yt-channel-scan/internal/config"
	"yt-channel-scan/internal/logger"
)

// loadConfig loads .env, then the config file named by --config in args.
func loadConfig(args []string) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.Load(flagValue(args, "config"))
}

func newLogger(cfg *config.Config, level string) *logger.Logger {
	return logger.New(logger.Config{
		Level:      firstNonEmpty(level, cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Out:        os.Stderr,
	})
}
