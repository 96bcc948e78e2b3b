package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streamtor/pkg/paths"
)

// Log is usable before Init; Init swaps in the tee handler with the
// configured level.
var Log = slog.New(slog.NewTextHandler(os.Stdout, nil))

var (
	history     []string
	historyMu   sync.RWMutex
	maxHistory  = 500
	logFile     *os.File
	logFileMu   sync.Mutex
	broadcastCh chan<- string
)

// SetBroadcast sets a channel that receives every formatted log line.
// Sends are non-blocking; lines are dropped when the channel is full.
func SetBroadcast(ch chan<- string) {
	broadcastCh = ch
}

// Init initializes the global logger: stdout handler, daily log file in
// the data dir, in-memory history ring, and the broadcast hook.
func Init(levelStr string) {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	dataDir := paths.GetDataDir()
	dateStr := time.Now().Format("2006-01-02")
	logFilePath := filepath.Join(dataDir, fmt.Sprintf("streamtor-%s.log", dateStr))

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
	} else {
		logFileMu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", logFilePath, err)
			logFile = nil
		}
		logFileMu.Unlock()
	}

	opts := &slog.HandlerOptions{Level: level}
	baseHandler := slog.NewTextHandler(os.Stdout, opts)

	Log = slog.New(&teeHandler{Handler: baseHandler})
	slog.SetDefault(Log)
}

// teeHandler writes each record to stdout, the history ring, the log
// file, and the broadcast channel.
type teeHandler struct {
	slog.Handler
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := fmt.Sprintf("time=%s level=%s msg=%q", r.Time.Format("2006-01-02T15:04:05.000-07:00"), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	historyMu.Lock()
	if len(history) >= maxHistory {
		history = history[1:]
	}
	history = append(history, msg)
	historyMu.Unlock()

	err := h.Handler.Handle(ctx, r)

	logFileMu.Lock()
	if logFile != nil {
		fmt.Fprintln(logFile, msg)
	}
	logFileMu.Unlock()

	if broadcastCh != nil {
		select {
		case broadcastCh <- msg:
		default:
		}
	}
	return err
}

// GetHistory returns a copy of the recent log lines.
func GetHistory() []string {
	historyMu.RLock()
	defer historyMu.RUnlock()
	cp := make([]string, len(history))
	copy(cp, history)
	return cp
}

// SetLevel updates the logger level at runtime.
func SetLevel(levelStr string) {
	logFileMu.Lock()
	currentLogFile := logFile
	logFileMu.Unlock()

	Init(levelStr)

	if currentLogFile != nil {
		logFileMu.Lock()
		logFile = currentLogFile
		logFileMu.Unlock()
	}
}

// Close closes the log file if one is open.
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
