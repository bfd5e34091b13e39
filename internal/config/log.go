package config

import (
	"io"
	log "log/slog"

	"github.com/lmittmann/tint"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// SetupLogging installs a tint handler on w as the default logger.
func SetupLogging(w io.Writer, level string) {
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level: logLevelMap[level],
	})))
}
