package app

import (
	"os"

	"palmshell-dispatch/internal/logx"
)

// NewLogger builds the JSON process logger. LOG_LEVEL picks the level, info by default.
func NewLogger() logx.Logger {
	return logx.NewJSON(os.Stdout, logx.ParseLevel(os.Getenv("LOG_LEVEL")))
}
