// Package logger builds the zerolog logger used by the server, the store
// backends, and the CLI.
//
//	logData, err := logger.New().FromPath(cfg.Log.Path).WithLevel("debug").Make()
//	defer logData.Close()
//	logData.Logger.Info().Str("addr", addr).Msg("listening")
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type LogBuild struct {
	writer io.Writer
	path   string
	level  string
	format string
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

// FromPath appends log lines to the file at path instead of the writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel sets the minimum level by name ("debug", "info", ...). Empty
// means info.
func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

// WithFormat selects FormatJSON (default) or FormatConsole.
func (build *LogBuild) WithFormat(format string) *LogBuild {
	build.format = format
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	level := zerolog.InfoLevel
	if build.level != "" {
		level, err = zerolog.ParseLevel(strings.ToLower(build.level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", build.level, err)
		}
	}

	logData = new(LogData)
	var writer io.Writer = os.Stderr
	if build.writer != nil {
		writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}

	switch build.format {
	case "", FormatJSON:
	case FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05.000", NoColor: build.path != ""}
	default:
		logData.Close()
		return nil, fmt.Errorf("unknown log format %q", build.format)
	}

	logData.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return
}

// Close closes the log file, if one was opened.
func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}
