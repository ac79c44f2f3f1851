package main

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/config"
)

func newLogger(output io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})), nil
	}

	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000Z07:00",
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler), nil
}
