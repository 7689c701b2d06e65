package main

import (
	"os"

	"github.com/rs/zerolog"

	"launchdeck/pkg/logx"
)

func newLogger(level string) zerolog.Logger {
	return logx.NewConsole(os.Stderr, level)
}
