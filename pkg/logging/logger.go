// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for neurosym components.
//
// The logger is built on the standard library slog package. By default
// it writes human-readable text to stderr, following Unix conventions
// for CLI tools. An optional log directory adds a JSON-format file
// destination, one file per service per day, fanned out through a
// multi-destination handler.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("graph loaded", "variables", 12)
//	logger.Error("inference failed", "error", err)
//
// # File Logging
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.neurosym/logs", // supports ~ expansion
//	    Service: "reason",
//	})
//	defer logger.Close()
//
// # Thread Safety
//
// Logger is safe for concurrent use.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers
// must keep tokens and secrets out of log attributes.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level filters out everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operations.
	LevelInfo

	// LevelWarn is for recoverable issues.
	LevelWarn

	// LevelError is for operation failures.
	LevelError
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum severity to emit. Default: LevelInfo.
	Level Level

	// LogDir enables file logging when non-empty. Files are named
	// {service}_{date}.log and written as JSON. Supports ~ expansion.
	LogDir string

	// Service names the component, used in file names and as a
	// standing attribute on every record. Default: "neurosym".
	Service string
}

// Logger wraps slog with multi-destination output and lifecycle
// management for the optional log file.
type Logger struct {
	mu     sync.Mutex
	slog   *slog.Logger
	file   *os.File
	config Config
}

// New creates a Logger from config.
//
// Stderr output is always enabled. If config.LogDir is set, the
// directory is created if missing and a JSON log file is opened
// alongside; failures to open the file degrade to stderr-only logging
// rather than erroring.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "neurosym"
	}

	level := config.Level.toSlogLevel()
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	var file *os.File
	if config.LogDir != "" {
		dir := expandPath(config.LogDir)
		if err := os.MkdirAll(dir, 0750); err == nil {
			name := fmt.Sprintf("%s_%s.log", config.Service, time.Now().Format("2006-01-02"))
			f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
			if err == nil {
				file = f
				handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
			}
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	return &Logger{
		slog:   slog.New(handler).With("service", config.Service),
		file:   file,
		config: config,
	}
}

// Default returns a stderr-only logger at Info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// Debug logs at debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs at info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// With returns a Logger carrying additional standing attributes. The
// returned logger shares the parent's destinations; Close the parent,
// not the child.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Slog exposes the underlying slog.Logger for libraries that accept
// one directly.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the log file, if any. Safe to call on
// stderr-only loggers.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// multiHandler fans records out to several slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
