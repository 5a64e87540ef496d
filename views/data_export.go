package views

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// CSVWriter is a concurrency-safe, buffered CSV writer. Rows go into a
// bufio.Writer; the recording controller calls Flush on a timer.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates path (truncating it) and writes the header row.
func NewCSVWriter(path string, bufSizeBytes int, writeHeader bool, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}

	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}

	bw := bufio.NewWriterSize(f, bufSizeBytes)
	cw := csv.NewWriter(bw)

	w := &CSVWriter{
		file: f,
		buf:  bw,
		csv:  cw,
	}

	if writeHeader && len(header) > 0 {
		if err := cw.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}

	return w, nil
}

// WriteRow appends a single CSV row. Most rows only reach the buffer, so
// a failing file usually shows up on a later Flush instead.
func (w *CSVWriter) WriteRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("csv write %s: %w", w.file.Name(), err)
	}
	w.rows++
	return nil
}

// Flush pushes buffered rows to the file.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv flush %s: %w", w.file.Name(), err)
	}
	return w.buf.Flush()
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	ferr := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	return ferr
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
