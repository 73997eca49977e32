package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ogurasousui/spendsync/internal/platform/config"
)

// New は設定に従って zerolog.Logger を生成し、グローバルロガーにも設定します。
// development ではコンソール形式、それ以外では JSON を出力します。
func New(cfg config.LoggingConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter は出力先を指定してロガーを生成します。
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if cfg.Env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}

	zl := zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "spendsync").
		Logger()

	log.Logger = zl
	return zl
}

// ParseLevel は文字列をログレベルに変換します。未知の値は info として扱います。
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
