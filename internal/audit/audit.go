// Package audit keeps an append-only JSON Lines record of control actions
// (load, unload, kickstart, remove, write). Best-effort by contract: a
// failed append never fails the action it records.
package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one audit line.
type Entry struct {
	Time   time.Time `json:"ts"`
	Action string    `json:"action"`
	Label  string    `json:"label,omitempty"`
	Target string    `json:"target,omitempty"`
	OK     bool      `json:"ok"`
	Detail string    `json:"detail,omitempty"`
}

// Log appends entries to a single JSONL file.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or reopens) the audit file, making parent directories as
// needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Log{file: f}, nil
}

// Append writes one entry. Time defaults to now when zero.
func (l *Log) Append(e Entry) error {
	if l == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit log closed")
	}
	return json.NewEncoder(l.file).Encode(e)
}

func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
