package result

import (
	"errors"
	"sync"
)

// Log is an append-only sink for run records. Implementations are safe for
// concurrent use.
type Log interface {
	Append(rec RunRecord) error
	Close() error
}

// MemoryLog keeps records in memory.
type MemoryLog struct {
	mu      sync.Mutex
	records []RunRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(rec RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *MemoryLog) Close() error { return nil }

// Records returns a copy of everything appended so far.
func (l *MemoryLog) Records() []RunRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RunRecord(nil), l.records...)
}

// MultiLog appends every record to each of its logs.
type MultiLog []Log

func (m MultiLog) Append(rec RunRecord) error {
	var errs []error
	for _, l := range m {
		if err := l.Append(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiLog) Close() error {
	var errs []error
	for _, l := range m {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
