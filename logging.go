package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// AppLogger provides extended diagnostics, off by default.
// Used by both the server and tests.
type AppLogger struct {
	outputDir      string
	logWS          bool
	logStore       bool
	debug          bool
	wsLog          *os.File
	storeLog       *os.File
	mu             sync.Mutex
	wsMessageCount int
}

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir string
	LogWS     bool
	LogStore  bool
	Debug     bool
}

// NewAppLogger creates a new application logger
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir: config.OutputDir,
		logWS:     config.LogWS,
		logStore:  config.LogStore,
		debug:     config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // No file logging, just in-memory state
	}

	var err error
	if al.logWS {
		path := fmt.Sprintf("%s/websocket.log", al.outputDir)
		al.wsLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open WebSocket log: %w", err)
		}
	}
	if al.logStore {
		path := fmt.Sprintf("%s/store.log", al.outputDir)
		al.storeLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open store log: %w", err)
		}
	}

	return al, nil
}

// NewAppLoggerFromEnv creates a logger from environment variables.
// Checks both LOG_* (server) and TEST_LOG_* (test) variants.
func NewAppLoggerFromEnv() (*AppLogger, error) {
	envBool := func(serverVar, testVar string) bool {
		return os.Getenv(serverVar) == "1" || os.Getenv(testVar) == "1"
	}
	envStr := func(serverVar, testVar string) string {
		if v := os.Getenv(serverVar); v != "" {
			return v
		}
		return os.Getenv(testVar)
	}

	config := LogConfig{
		OutputDir: envStr("LOG_OUTPUT_DIR", "TEST_OUTPUT_DIR"),
		LogWS:     envBool("LOG_WS", "TEST_LOG_WS"),
		LogStore:  envBool("LOG_STORE", "TEST_LOG_STORE"),
		Debug:     envBool("LOG_DEBUG", "TEST_DEBUG"),
	}
	return NewAppLogger(config)
}

// Close closes all open log files
func (al *AppLogger) Close() {
	if al.wsLog != nil {
		al.wsLog.Close()
	}
	if al.storeLog != nil {
		al.storeLog.Close()
	}
}

// LogWebSocket logs a WebSocket message
func (al *AppLogger) LogWebSocket(direction, nick, message string) {
	if !al.logWS || al.wsLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.wsMessageCount++
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(al.wsLog, "[%s] #%d %s [%s]: %s\n",
		timestamp, al.wsMessageCount, direction, nick, message)
}

// LogStoreDump dumps the room_log table
func (al *AppLogger) LogStoreDump(context string, store *LogStore) {
	if !al.logStore || al.storeLog == nil || store == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== STORE DUMP [%s] ==========\n", timestamp)
	fmt.Fprintf(&buf, "Context: %s\n\n", context)

	var entries []LogEntry
	if err := store.db.Select(&entries, `SELECT seq, room_id, recipient, kind, body FROM room_log ORDER BY seq`); err != nil {
		fmt.Fprintf(&buf, "Error: %v\n", err)
		al.storeLog.Write(buf.Bytes())
		return
	}
	for _, e := range entries {
		fmt.Fprintf(&buf, "%d [%s] %s -> %q: %s\n", e.Seq, e.RoomID, e.Kind, e.Recipient, e.Body)
	}
	if len(entries) == 0 {
		buf.WriteString("(empty)\n")
	}

	al.storeLog.Write(buf.Bytes())
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(context, format string, args ...any) {
	if !al.debug {
		return
	}
	log.Printf("[DEBUG] "+context+": "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.logWS || al.logStore || al.debug
}

// ============================================================================
// Global helper functions
// ============================================================================

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, nick, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, nick, strings.TrimSpace(message))
	}
}

// LogStoreState logs the message store state using the global logger
func LogStoreState(context string, store *LogStore) {
	if appLogger != nil {
		appLogger.LogStoreDump(context, store)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(context, format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(context, format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}
