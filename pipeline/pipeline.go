// Package pipeline validates matrix log records and writes them to the
// configured outputs.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/commute-matrix/models"
	"github.com/aluiziolira/commute-matrix/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrInvalidRecord wraps records rejected by validation.
	ErrInvalidRecord = errors.New("pipeline: invalid record")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.LogRecord) error
	Close() error
	Validate() error
}

// Pipeline validates records and writes each one through to the writer
// before Process returns.
type Pipeline struct {
	writer  OutputWriter
	metrics metrics

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds a pipeline over writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:  writer,
		metrics: newMetrics(),
	}
}

// Process validates and appends one record.
func (p *Pipeline) Process(rec *models.LogRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	if err := parser.ValidateRecord(rec); err != nil {
		p.metrics.addValidation("invalid_record")
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := p.writer.Write([]*models.LogRecord{rec}); err != nil {
		p.metrics.addValidation("write_failed")
		return fmt.Errorf("write record: %w", err)
	}
	p.metrics.incrementProcessed()
	return nil
}

// Close prevents further submissions. It does not close the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Processed returns the number of records written.
func (p *Pipeline) Processed() int {
	return int(p.metrics.snapshot()["processed_records"].(int64))
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
