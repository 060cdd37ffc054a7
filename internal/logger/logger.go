package logger

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"disruptiq/internal/config"
)

// New creates an hclog.Logger from the logger config and the provided name.
// Output goes to stderr so machine-readable reports on stdout stay clean.
func New(cfg config.Logger, name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:            name,
		DisableTime:     cfg.DisableTime,
		JSONFormat:      cfg.JSONFormat,
		IncludeLocation: cfg.IncludeLocation,
		Output:          os.Stderr,
		Level:           determineLogLevel(cfg),
	})
}

// determineLogLevel prefers DISRUPTIQ_LOG_LEVEL, then the config, then INFO.
func determineLogLevel(cfg config.Logger) hclog.Level {
	if logLevelEnv := os.Getenv("DISRUPTIQ_LOG_LEVEL"); logLevelEnv != "" {
		return parseLogLevel(strings.ToUpper(logLevelEnv))
	}
	return parseLogLevel(strings.ToUpper(cfg.Level))
}

func parseLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO", "":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	case "OFF":
		return hclog.Off
	default:
		hclog.New(&hclog.LoggerOptions{
			Level:       hclog.Warn,
			DisableTime: true,
			Output:      os.Stderr,
		}).Warn("unrecognized log level, defaulting to INFO", "providedLevel", levelStr)
		return hclog.Info
	}
}
