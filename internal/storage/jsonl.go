package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cpSwap/internal/model"
)

// maxLineBytes bounds a single JSONL record when scanning.
const maxLineBytes = 4 << 20

// JsonlSink appends records to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// Path returns the file the sink appends to.
func (s *JsonlSink) Path() string {
	return s.path
}

// PutEvents appends a batch of events as JSON lines.
func (s *JsonlSink) PutEvents(events []model.Event) error {
	return appendLines(s, events)
}

// PutErrors appends a batch of failed operations as JSON lines.
func (s *JsonlSink) PutErrors(errs []model.OperationError) error {
	return appendLines(s, errs)
}

func appendLines[T any](s *JsonlSink, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// ScanJsonl decodes every non-empty line of r into T and hands it to fn with
// its 1-based line number. A decode failure stops the scan.
func ScanJsonl[T any](r io.Reader, fn func(line int, record T) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode line %d: %w", line, err)
		}
		if err := fn(line, record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}

// ScanJsonlFile is ScanJsonl over a file. A missing file yields no records.
func ScanJsonlFile[T any](path string, fn func(line int, record T) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open input file: %w", err)
	}
	defer file.Close()
	return ScanJsonl(file, fn)
}
