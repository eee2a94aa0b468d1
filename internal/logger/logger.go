package logger

import (
	"io"
	"log/slog"
	"os"
)

// ProgramLevel is the shared level for the default logger
var ProgramLevel = new(slog.LevelVar)

// SetupLogger installs a text logger on stderr at warn level. Output on stdout
// is reserved for command results.
func SetupLogger() {
	SetupLoggerTo(os.Stderr)
}

// SetupLoggerTo installs the default logger writing to w
func SetupLoggerTo(w io.Writer) {
	ProgramLevel.Set(slog.LevelWarn)

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ProgramLevel,
	}))
	slog.SetDefault(logger)
}

// SetDebug lowers the level to debug when debug is true
func SetDebug(debug bool) {
	if debug {
		ProgramLevel.Set(slog.LevelDebug)
	}
}
