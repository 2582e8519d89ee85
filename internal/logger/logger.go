package logger

import (
	"fmt"
	"log/slog"
	"time"

	"fyne.io/fyne/v2/data/binding"

	"github.com/ConserveLee/flash-buyer/internal/constants"
)

// AppLogger writes user facing log lines to a UI list and mirrors them to slog.
type AppLogger struct {
	dataBinding binding.StringList
	limit       int
	mirror      *slog.Logger
}

// NewAppLogger creates a new logger instance
func NewAppLogger(data binding.StringList) *AppLogger {
	return &AppLogger{
		dataBinding: data,
		limit:       constants.LogHistoryLimit,
		mirror:      slog.Default(),
	}
}

// WithSlog sets the logger records are mirrored to.
func (l *AppLogger) WithSlog(s *slog.Logger) *AppLogger {
	if s != nil {
		l.mirror = s
	}
	return l
}

// Data returns the list backing the UI.
func (l *AppLogger) Data() binding.StringList { return l.dataBinding }

// Info logs an informational message
func (l *AppLogger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mirror.Info(msg)
	l.append("INFO", msg)
}

// Error logs an error message
func (l *AppLogger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mirror.Error(msg)
	l.append("ERROR", msg)
}

// Debug goes to slog only, to keep the UI clean
func (l *AppLogger) Debug(format string, args ...interface{}) {
	l.mirror.Debug(fmt.Sprintf(format, args...))
}

// Notify receives engine progress messages.
func (l *AppLogger) Notify(message string) {
	l.append("INFO", message)
}

// Clear empties the UI list.
func (l *AppLogger) Clear() {
	l.dataBinding.Set(nil)
}

func (l *AppLogger) append(level, msg string) {
	timestamp := time.Now().Format("15:04:05")
	l.dataBinding.Append(fmt.Sprintf("[%s] %s: %s", timestamp, level, msg))

	list, _ := l.dataBinding.Get()
	if len(list) > l.limit {
		l.dataBinding.Set(list[len(list)-l.limit:])
	}
}
