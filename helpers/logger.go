package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"

	"sjsage522/krishaworker/logger"
)

// DropRecorder receives every listing the crawl had to give up on
type DropRecorder interface {
	RecordDrop(reason string, url string, err error)
}

// DropLogger appends dropped listings to a file with reason and timestamp
type DropLogger struct {
	mu   sync.Mutex
	file string
}

// NewDropLogger creates a new drop logger instance
func NewDropLogger(file string) *DropLogger {
	return &DropLogger{
		file: file,
	}
}

// RecordDrop logs a dropped listing to the drop file
func (l *DropLogger) RecordDrop(reason string, url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.Warn("failed to open drop log %s: %v", l.file, fileErr)
		return
	}
	defer f.Close()

	msg := "-"
	if err != nil {
		msg = err.Error()
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s: %s\n", timestamp, reason, url, msg)
}
