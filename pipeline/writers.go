package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/commute-matrix/models"
)

// CSVHeader is the fixed column order of the matrix log.
var CSVHeader = []string{"scanned_at", "anchor_week", "itin_type", "dept_date", "return_date", "airport", "total_cost"}

// CSVWriter appends records to the matrix log. Each row goes to the file
// in a single write so an interrupted run cannot leave a torn row
// followed by later rows.
type CSVWriter struct {
	file *os.File
	buf  bytes.Buffer
	mu   sync.Mutex
}

// NewCSVWriter opens filename for appending and writes the header row
// when the file is new or empty.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	cw := &CSVWriter{file: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() == 0 {
		if err := cw.writeRow(CSVHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	return cw, nil
}

// Write appends records to the CSV log.
func (cw *CSVWriter) Write(records []*models.LogRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, rec := range records {
		row := []string{
			rec.ScannedAt.Format(time.RFC3339),
			rec.AnchorWeek.Format(models.DateLayout),
			rec.ItineraryType,
			rec.Departure.Format(models.DateLayout),
			rec.Return.Format(models.DateLayout),
			rec.Airport,
			strconv.Itoa(rec.TotalCost),
		}
		if err := cw.writeRow(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	return nil
}

func (cw *CSVWriter) writeRow(row []string) error {
	cw.buf.Reset()
	w := csv.NewWriter(&cw.buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := cw.file.Write(cw.buf.Bytes())
	return err
}

// Close closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter appends newline-delimited JSON records.
type JSONWriter struct {
	file *os.File
	buf  bytes.Buffer
	mu   sync.Mutex
}

// NewJSONWriter opens filename for appending.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json file: %w", err)
	}
	return &JSONWriter{file: f}, nil
}

// Write appends records in JSONL format, one write per record.
func (jw *JSONWriter) Write(records []*models.LogRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range records {
		jw.buf.Reset()
		if err := json.NewEncoder(&jw.buf).Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if _, err := jw.file.Write(jw.buf.Bytes()); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
	}
	return nil
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
