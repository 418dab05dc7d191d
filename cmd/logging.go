package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// newLogger builds the process logger from log.level and log.format and
// installs it as the zerolog global.
func newLogger(cfg *viper.Viper, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.GetString("log.level"))))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log.level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	switch format := cfg.GetString("log.format"); format {
	case "json":
		logger = zerolog.New(out)
	case "console", "":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	default:
		return zerolog.Nop(), fmt.Errorf("unsupported log.format %q (expected json or console)", format)
	}

	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger

	return logger, nil
}
