package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxellands.ai/internal/registry"
)

// AuditLogger appends registry audit entries, one JSON document per line, to
// <dataDir>/audit/audit-YYYY-MM-DD-HH.jsonl.zst. A new file starts every UTC hour;
// reopening an hour appends another zstd frame.
type AuditLogger struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
}

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{dir: filepath.Join(dataDir, "audit"), now: time.Now}
}

func (l *AuditLogger) WriteAudit(e registry.AuditEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if hour := l.now().UTC().Format("2006-01-02-15"); hour != l.hour {
		if err := l.openLocked(hour); err != nil {
			return err
		}
	}
	if _, err := l.enc.Write(append(b, '\n')); err != nil {
		return err
	}
	// Flush the block so a crash loses at most the current entry.
	return l.enc.Flush()
}

func (l *AuditLogger) openLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.dir, fmt.Sprintf("audit-%s.jsonl.zst", hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.hour = f, enc, hour
	return nil
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *AuditLogger) closeLocked() error {
	var err error
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		if cerr := l.f.Close(); err == nil {
			err = cerr
		}
		l.f = nil
	}
	l.hour = ""
	return err
}
