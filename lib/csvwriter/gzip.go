package csvwriter

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// NullValue marks a SQL NULL in landed files. Redshift COPY reads it through `NULL AS '\N'`.
const NullValue = `\N`

const timestampLayout = "2006-01-02 15:04:05.999999"

type GzipWriter struct {
	file   *os.File
	gzip   *gzip.Writer
	writer *csv.Writer
	closed bool
}

func NewGzipWriter(fp string) (*GzipWriter, error) {
	file, err := os.Create(fp)
	if err != nil {
		return nil, err
	}

	gzipWriter := gzip.NewWriter(file)
	return &GzipWriter{
		file:   file,
		gzip:   gzipWriter,
		writer: csv.NewWriter(gzipWriter),
	}, nil
}

func (g *GzipWriter) FileName() string {
	return filepath.Base(g.file.Name())
}

func (g *GzipWriter) Write(row []string) error {
	return g.writer.Write(row)
}

func (g *GzipWriter) Close() error {
	if g.closed {
		return fmt.Errorf("writer for %q is already closed", g.FileName())
	}
	g.closed = true

	g.writer.Flush()
	if err := g.writer.Error(); err != nil {
		// If the writer failed to close, let's try to close the gzip writer and file.
		_ = g.gzip.Close()
		_ = g.file.Close()
		return err
	}
	if err := g.gzip.Close(); err != nil {
		// If gzip fails, we should at least try to close the file
		_ = g.file.Close()
		return err
	}
	return g.file.Close()
}

// FormatValue renders a value scanned from a source database into its CSV field.
func FormatValue(value any) string {
	switch castedValue := value.(type) {
	case nil:
		return NullValue
	case []byte:
		return string(castedValue)
	case string:
		return castedValue
	case time.Time:
		return castedValue.Format(timestampLayout)
	case bool:
		return strconv.FormatBool(castedValue)
	case int64:
		return strconv.FormatInt(castedValue, 10)
	case float64:
		return strconv.FormatFloat(castedValue, 'f', -1, 64)
	default:
		return fmt.Sprint(castedValue)
	}
}

type GzipReader struct {
	gzip   *gzip.Reader
	reader *csv.Reader
}

func NewGzipReader(r io.Reader) (*GzipReader, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}

	csvReader := csv.NewReader(gzipReader)
	return &GzipReader{gzip: gzipReader, reader: csvReader}, nil
}

// Read returns the next row with [NullValue] fields turned into nil. It returns [io.EOF] at the end of the file.
func (g *GzipReader) Read() ([]any, error) {
	record, err := g.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read csv record: %w", err)
	}

	row := make([]any, len(record))
	for i, field := range record {
		if field != NullValue {
			row[i] = field
		}
	}
	return row, nil
}

// Header reads the first row as column names.
func (g *GzipReader) Header() ([]string, error) {
	record, err := g.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	return record, nil
}

func (g *GzipReader) Close() error {
	return g.gzip.Close()
}
