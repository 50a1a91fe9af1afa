package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aluiziolira/commute-matrix/models"
)

// MultiWriter fans every record out to several writers in order. A
// failure in any writer fails the write. Mirrors are written after the
// writers and their failures are only logged.
type MultiWriter struct {
	writers []OutputWriter
	mirrors []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// NewDualWriter writes the same records to a CSV log and a JSONL log.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return NewMultiWriter(csvWriter, jsonWriter), nil
}

// Add appends another writer.
func (mw *MultiWriter) Add(w OutputWriter) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writers = append(mw.writers, w)
}

// AddMirror appends a best-effort writer.
func (mw *MultiWriter) AddMirror(w OutputWriter) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.mirrors = append(mw.mirrors, w)
}

// Write writes records to every writer, then to every mirror.
func (mw *MultiWriter) Write(records []*models.LogRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	for i, m := range mw.mirrors {
		if err := m.Write(records); err != nil {
			slog.Warn("mirror write failed",
				slog.Int("mirror", i),
				slog.Int("records", len(records)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (mw *MultiWriter) all() []OutputWriter {
	out := make([]OutputWriter, 0, len(mw.writers)+len(mw.mirrors))
	out = append(out, mw.writers...)
	return append(out, mw.mirrors...)
}

// Close closes every writer, reporting all failures.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []string
	for i, w := range mw.all() {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("writer %d: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates every writer. Mirrors are not checked.
func (mw *MultiWriter) Validate() error {
	var errs []string
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("writer %d: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
