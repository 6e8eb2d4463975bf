// Package csvbackend writes the journal as a spreadsheet-friendly CSV file.
package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/metasearch/internal/storage"
)

var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// columns defines the CSV column order.
var columns = []string{
	"id",
	"kind",
	"query",
	"url",
	"provider",
	"outcome",
	"status_code",
	"results",
	"duration_ms",
	"challenge",
	"error",
	"created_at",
}

// New opens filePath for appending, writing the header row to a new file.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv journal: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat csv journal: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(_ context.Context, r *storage.FetchRecord) error {
	row := []string{
		r.ID,
		string(r.Kind),
		r.Query,
		r.URL,
		r.Provider,
		r.Outcome,
		strconv.Itoa(r.StatusCode),
		strconv.Itoa(r.Results),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.Challenge,
		r.Error,
		r.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(_ context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind csv journal: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.FetchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) != len(columns) {
			continue // skip malformed rows
		}

		statusCode, _ := strconv.Atoi(row[6])
		results, _ := strconv.Atoi(row[7])
		durationMs, _ := strconv.ParseInt(row[8], 10, 64)
		createdAt, _ := time.Parse(time.RFC3339Nano, row[11])

		rec := &storage.FetchRecord{
			ID:         row[0],
			Kind:       storage.Kind(row[1]),
			Query:      row[2],
			URL:        row[3],
			Provider:   row[4],
			Outcome:    row[5],
			StatusCode: statusCode,
			Results:    results,
			Duration:   time.Duration(durationMs) * time.Millisecond,
			Challenge:  row[9],
			Error:      row[10],
			CreatedAt:  createdAt,
		}
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return filter.Window(matched), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
