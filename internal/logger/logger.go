package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Init builds the process logger for environment and installs it as zap's global logger.
func Init(environment string) error {
	var (
		l   *zap.Logger
		err error
	)
	switch environment {
	case "development", "local":
		l, err = zap.NewDevelopment()
	default:
		l, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("zap.New -> %w", err)
	}

	zap.ReplaceGlobals(l.With(zap.String("service", "vecollab-backend")))

	return nil
}
