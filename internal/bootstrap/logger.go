package bootstrap

import (
	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/pkg/logging"
)

// InitLogger builds the service logger from configuration and installs it
// as the package-level default.
func InitLogger(cfg *config.Config) (core.ILogger, error) {
	logger, err := logging.NewZapLogger(cfg.Service.LogLevel)
	if err != nil {
		return nil, err
	}

	base := logger.WithField("service", cfg.Service.Name)
	logging.SetGlobalLogger(base)
	return base, nil
}
