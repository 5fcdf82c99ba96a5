// Package logging настраивает logrus для сервиса.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options: параметры логгера.
type Options struct {
	Level  string
	Format string
	// File включает запись в файл с ротацией в дополнение к stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup настраивает стандартный логгер logrus и возвращает entry с полем component.
// Возвращённый io.Closer закрывает файл ротации (если он открыт).
func Setup(opts Options, component string) (*log.Entry, io.Closer, error) {
	logger := log.StandardLogger()
	closer, err := Configure(logger, opts)
	if err != nil {
		return nil, nil, err
	}
	return logger.WithField("component", component), closer, nil
}

// Configure применяет параметры к переданному логгеру.
func Configure(logger *log.Logger, opts Options) (io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.File == "" {
		logger.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	if dir := filepath.Dir(opts.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	rot := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rot))
	return rot, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
