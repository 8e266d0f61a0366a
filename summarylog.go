package versequiz

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SummaryLog is a per-run transcript of every LLM exchange made while generating
// chapter summaries
type SummaryLog struct {
	file  *os.File
	mu    sync.Mutex
	runID string
}

// NewSummaryLog creates <dir>/<runID>.log and writes the run header
func NewSummaryLog(dir, runID string, opts SummaryOptions) (*SummaryLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", runID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	sl := &SummaryLog{
		file:  file,
		runID: runID,
	}

	sl.Logf("=== Summary Generation Log ===\n")
	sl.Logf("Run ID: %s\n", runID)
	if len(opts.Books) > 0 {
		sl.Logf("Books: %v\n", opts.Books)
	} else {
		sl.Logf("Books: all\n")
	}
	sl.Logf("Batch Size: %d\n", opts.BatchSize)
	sl.Logf("Overwrite: %v\n", opts.Overwrite)
	sl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	sl.Logf("==============================\n\n")

	return sl, nil
}

// Logf writes a timestamped entry and flushes it
func (sl *SummaryLog) Logf(format string, args ...interface{}) {
	if sl == nil {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.writeLocked(format, args...)
}

func (sl *SummaryLog) writeLocked(format string, args ...interface{}) {
	if sl.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(sl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	sl.file.Sync()
}

// LogLLMRequest records a prompt sent by module
func (sl *SummaryLog) LogLLMRequest(module, prompt string) {
	sl.Logf("=== LLM REQUEST (%s) ===\n", module)
	sl.Logf("Prompt:\n%s\n", prompt)
	sl.Logf("=====================\n\n")
}

// LogLLMResponse records the tool-call arguments returned to module
func (sl *SummaryLog) LogLLMResponse(module, response string) {
	sl.Logf("=== LLM RESPONSE (%s) ===\n", module)
	sl.Logf("Response:\n%s\n", response)
	sl.Logf("======================\n\n")
}

// LogSummaryResult records the checker's decision for one chapter
func (sl *SummaryLog) LogSummaryResult(task *SummaryTask, action, reason string) {
	sl.Logf("%s %d (%s): %s - %s\n", task.Book, task.Chapter, task.ID, action, reason)
}

// Close writes the footer and closes the file
func (sl *SummaryLog) Close() error {
	if sl == nil {
		return nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.file == nil {
		return nil
	}
	sl.writeLocked("=== Summary Generation Complete ===\n")
	sl.writeLocked("Completed: %s\n", time.Now().Format(time.RFC3339))
	sl.writeLocked("===================================\n")
	err := sl.file.Close()
	sl.file = nil
	return err
}
