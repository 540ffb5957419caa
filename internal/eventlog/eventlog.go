package eventlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yegors/voicebridge/pkg/logger"
)

// Writer appends timestamped call events to the line-oriented call log and
// mirrors each event to the structured logger. Lines look like:
//
//	[2025-01-02 15:04:05.000] CALL_CREATED: Call initiated (Call SID: CA123)
//
// Appends are serialized by a mutex so concurrent sessions interleave whole
// lines; no ordering is guaranteed across sessions.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	logger *logger.Logger
}

// NewWriter opens (or creates) the call log at path in append mode
func NewWriter(path string, log *logger.Logger) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}

	return &Writer{
		file:   file,
		logger: log.Named("eventlog"),
	}, nil
}

// Log appends one event line. callSID may be empty when the call is not yet
// known (e.g. token issuance). Write failures are logged and swallowed; the
// call log must never take a session down.
func (w *Writer) Log(eventType, details, callSID string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] %s: %s", timestamp, eventType, details)
	if callSID != "" {
		line += fmt.Sprintf(" (Call SID: %s)", callSID)
	}

	w.mu.Lock()
	_, err := w.file.WriteString(line + "\n")
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to append call event",
			logger.String("event_type", eventType),
			logger.Error(err))
		return
	}

	w.logger.Info(line)
}

// Close closes the underlying log file
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
