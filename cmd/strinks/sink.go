package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"strinks/internal/matcher"
)

// jsonlSink writes one JSON object per result.
type jsonlSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

var _ matcher.Sink = (*jsonlSink)(nil)

func newJSONLSink(path string, stdout io.Writer) (*jsonlSink, error) {
	if path == "-" {
		return &jsonlSink{enc: json.NewEncoder(stdout)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &jsonlSink{enc: json.NewEncoder(f), closer: f}, nil
}

func (s *jsonlSink) Upsert(_ context.Context, res matcher.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(res)
}

func (s *jsonlSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
