package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// TickLogName is the file name of the compressed per-tick log.
const TickLogName = "ticks.jsonl.zst"

// TickLogEntry is one line of the tick log.
type TickLogEntry struct {
	RunID string `json:"run_id"`
	Record
}

// TickLogger writes one JSON line per closed tick into a zstd stream.
type TickLogger struct {
	runID string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewTickLogger creates dir/ticks.jsonl.zst.
func NewTickLogger(dir, runID string) (*TickLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tick log dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, TickLogName))
	if err != nil {
		return nil, fmt.Errorf("creating tick log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &TickLogger{
		runID: runID,
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// WriteTick appends r to the log.
func (l *TickLogger) WriteTick(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("tick log closed")
	}

	b, err := json.Marshal(TickLogEntry{RunID: l.runID, Record: r})
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	return l.w.WriteByte('\n')
}

// Close flushes the buffered lines and finishes the zstd frame.
func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err1 error
	if l.w != nil {
		err1 = l.w.Flush()
		l.w = nil
	}
	if l.enc != nil {
		if err := l.enc.Close(); err != nil && err1 == nil {
			err1 = err
		}
		l.enc = nil
	}
	if l.f != nil {
		if err := l.f.Close(); err != nil && err1 == nil {
			err1 = err
		}
		l.f = nil
	}
	return err1
}

// ReadTickLog decodes a tick log written by TickLogger.
func ReadTickLog(path string) ([]TickLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tick log: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var out []TickLogEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decoding tick %d: %w", len(out), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading tick log: %w", err)
	}
	return out, nil
}
