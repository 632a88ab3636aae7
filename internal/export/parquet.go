// Package export writes reading snapshots as Parquet files.
package export

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/store"
)

// ContentType is the media type of exported files.
const ContentType = "application/vnd.apache.parquet"

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("parquet writer is closed")

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// String returns the configuration name of the algorithm.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}

// ParseCompression parses a compression name. Unknown names are an error.
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none", "":
		return CompressionNone, nil
	default:
		return CompressionNone, errors.NewValidation("export.compression",
			fmt.Sprintf("unknown algorithm %q (want none, snappy, zstd, lz4 or gzip)", s))
	}
}

func codec(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// ReadingRow is a reading in Parquet format.
type ReadingRow struct {
	DeviceUUID  string `parquet:"device_uuid,dict"`
	Type        string `parquet:"type,dict"`
	Value       int64  `parquet:"value"`
	DateCreated int64  `parquet:"date_created"` // Unix seconds
}

// ReadingToRow converts a Reading to a ReadingRow.
func ReadingToRow(r *store.Reading) ReadingRow {
	return ReadingRow{
		DeviceUUID:  r.DeviceUUID,
		Type:        r.Type,
		Value:       r.Value,
		DateCreated: r.DateCreated,
	}
}

// RowToReading converts a ReadingRow to a Reading.
func RowToReading(r *ReadingRow) store.Reading {
	return store.Reading{
		DeviceUUID:  r.DeviceUUID,
		Type:        r.Type,
		Value:       r.Value,
		DateCreated: r.DateCreated,
	}
}

// =============================================================================
// Writer
// =============================================================================

// Writer streams readings to an io.Writer as one Parquet file.
// The file is complete only after Close.
type Writer struct {
	mu       sync.Mutex
	writer   *parquet.GenericWriter[ReadingRow]
	rowCount int64
	closed   bool
}

// NewWriter creates a Writer with the given compression.
func NewWriter(w io.Writer, ct CompressionType) *Writer {
	return &Writer{
		writer: parquet.NewGenericWriter[ReadingRow](w, parquet.Compression(codec(ct))),
	}
}

// Write appends readings.
func (w *Writer) Write(readings []store.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]ReadingRow, len(readings))
	for i := range readings {
		rows[i] = ReadingToRow(&readings[i])
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes buffered rows and writes the file footer.
// It does not close the underlying io.Writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// WriteReadings writes readings to w as a complete Parquet file.
func WriteReadings(w io.Writer, readings []store.Reading, ct CompressionType) (int64, error) {
	pw := NewWriter(w, ct)
	if err := pw.Write(readings); err != nil {
		pw.Close()
		return 0, err
	}
	if err := pw.Close(); err != nil {
		return 0, err
	}
	return pw.RowCount(), nil
}

// =============================================================================
// Reader
// =============================================================================

// ReadReadings decodes every reading in a Parquet file of the given size.
func ReadReadings(r io.ReaderAt, size int64) ([]store.Reading, error) {
	rows, err := parquet.Read[ReadingRow](r, size)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	readings := make([]store.Reading, len(rows))
	for i := range rows {
		readings[i] = RowToReading(&rows[i])
	}
	return readings, nil
}
