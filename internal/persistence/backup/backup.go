package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at"`
	Entries   int    `json:"entries"`
	Reason    string `json:"reason,omitempty"`
}

type Entry struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Source is the subset of a key/value store a backup reads from.
type Source interface {
	Scan(fn func(key, value string) error) error
}

// Sink is the subset of a key/value store a restore writes to.
type Sink interface {
	Put(key, value string) error
}

// FileName returns the conventional dump name for a store at version v.
func FileName(v int, now time.Time) string {
	return fmt.Sprintf("lands-v%d-%s.kv.zst", v, now.UTC().Format("20060102-150405"))
}

// Dump writes every entry of src to path as a zstd-compressed JSON header line
// followed by one JSON line per entry.
func Dump(path string, src Source, version int, reason string) (Header, error) {
	var entries []Entry
	if err := src.Scan(func(k, v string) error {
		entries = append(entries, Entry{Key: k, Value: v})
		return nil
	}); err != nil {
		return Header{}, fmt.Errorf("scan: %w", err)
	}
	h := Header{
		Version:   version,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Entries:   len(entries),
		Reason:    reason,
	}
	return h, Write(path, h, entries)
}

func Write(path string, h Header, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	je := json.NewEncoder(bw)
	if err := je.Encode(h); err != nil {
		_ = enc.Close()
		return err
	}
	for _, e := range entries {
		if err := je.Encode(e); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode %q: %w", e.Key, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func Read(path string) (Header, []Entry, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 256*1024))
	if err := jd.Decode(&h); err != nil {
		return h, nil, fmt.Errorf("header: %w", err)
	}
	entries := make([]Entry, 0, h.Entries)
	for {
		var e Entry
		if err := jd.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return h, nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != h.Entries {
		return h, nil, fmt.Errorf("truncated backup: got %d entries want %d", len(entries), h.Entries)
	}
	return h, entries, nil
}

// Restore loads a dump into dst and returns its header.
func Restore(path string, dst Sink) (Header, error) {
	h, entries, err := Read(path)
	if err != nil {
		return h, err
	}
	for _, e := range entries {
		if err := dst.Put(e.Key, e.Value); err != nil {
			return h, fmt.Errorf("put %q: %w", e.Key, err)
		}
	}
	return h, nil
}
