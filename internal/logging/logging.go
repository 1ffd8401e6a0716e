// Package logging sets up the diagnostics logger. Transcript text is never
// written here; callers log lengths and identifiers only.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

const fileName = "diagnostics.log"

// ResolveDir picks the log directory: explicit path, then MEDSCRIBE_LOG_PATH,
// then the per-OS default. Relative paths resolve against the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, candidate := range []string{flagPath, os.Getenv("MEDSCRIBE_LOG_PATH")} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if filepath.IsAbs(candidate) {
			return candidate, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, candidate), nil
	}
	return defaultDir()
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "medscribe"), nil
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "medscribe", "logs"), nil
		}
		return filepath.Join(home, "AppData", "Local", "medscribe", "logs"), nil
	default:
		if state := os.Getenv("XDG_STATE_HOME"); state != "" {
			return filepath.Join(state, "medscribe"), nil
		}
		return filepath.Join(home, ".local", "state", "medscribe"), nil
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// New returns a logger writing human-readable lines to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()
}

// Open creates dir if needed and returns a logger appending to its
// diagnostics file, plus the file to close on shutdown.
func Open(dir string, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(file, level), file, nil
}
