// Package logging builds the process-wide hclog logger.
package logging

import (
	"io"
	"os"

	"ffcompress/config"

	"github.com/hashicorp/go-hclog"
)

// New returns the root logger. A nil writer means stderr.
func New(cfg *config.Config, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "ffcompress",
		Level:      level,
		Output:     w,
		JSONFormat: cfg.LogJSON,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// Writer adapts the logger for libraries that want an io.Writer, such as gin.
func Writer(log hclog.Logger) io.Writer {
	return log.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})
}
