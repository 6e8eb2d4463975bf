// Package jsonbackend writes the journal as newline-delimited JSON.
package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/metasearch/internal/storage"
)

var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New opens filePath for appending, creating it if needed.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json journal: %w", err)
	}
	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(_ context.Context, r *storage.FetchRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal fetch record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write fetch record: %w", err)
	}
	return nil
}

func (b *jsonBackend) Query(_ context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind json journal: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var matched []*storage.FetchRecord
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.FetchRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode fetch record: %w", err)
		}
		if filter.Match(&r) {
			matched = append(matched, &r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan json journal: %w", err)
	}

	return filter.Window(matched), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
