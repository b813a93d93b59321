// v3
// internal/runstore/file_store.go
package runstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// maxLine bounds a single JSONL record; large projects produce long lines.
const maxLine = 16 << 20

// FileStore is an append-only JSON-lines run log with a hash chain.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	log      *slog.Logger
	file     *os.File
	writer   *bufio.Writer
	lastSeq  int64
	lastHash string
	runs     []*Run
	byID     map[string]int
	now      func() time.Time
}

func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fs := &FileStore{path: path, log: log.With(slog.String("component", "runstore")), file: f, now: time.Now}
	if err := fs.load(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	return s
}

func (fs *FileStore) load() error {
	fs.log.Info("loading", slog.String("path", fs.path))
	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	fs.runs = nil
	fs.byID = make(map[string]int)
	fs.lastSeq = 0
	fs.lastHash = ""
	scanner := newScanner(fs.file)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r Run
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := checkLink(&r, fs.lastHash, fs.lastSeq); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		fs.byID[r.ID] = len(fs.runs)
		fs.runs = append(fs.runs, &r)
		fs.lastSeq = r.Seq
		fs.lastHash = r.Hash
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if _, err := fs.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	fs.writer = bufio.NewWriter(fs.file)
	fs.log.Info("loaded", slog.Int("records", len(fs.runs)), slog.Int64("lastSeq", fs.lastSeq))
	return nil
}

// Append assigns an ID, sequence number, timestamp and chain hashes, then
// durably writes the record.
func (fs *FileStore) Append(run *Run) (*Run, error) {
	if run == nil {
		return nil, fmt.Errorf("run must not be nil")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored := run.Clone()
	stored.ID = uuid.NewString()
	stored.Seq = fs.lastSeq + 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = fs.now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.PrevHash = fs.lastHash
	hash, err := stored.ComputeHash()
	if err != nil {
		return nil, err
	}
	stored.Hash = hash

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}
	if _, err := fs.writer.Write(payload); err != nil {
		return nil, err
	}
	if err := fs.writer.WriteByte('\n'); err != nil {
		return nil, err
	}
	if err := fs.writer.Flush(); err != nil {
		return nil, err
	}
	if err := fs.file.Sync(); err != nil {
		return nil, err
	}
	fs.lastSeq = stored.Seq
	fs.lastHash = stored.Hash
	fs.byID[stored.ID] = len(fs.runs)
	fs.runs = append(fs.runs, stored)
	fs.log.Info("run_appended", slog.String("id", stored.ID), slog.Int64("seq", stored.Seq), slog.String("projectId", stored.ProjectID))
	return stored.Clone(), nil
}

func (fs *FileStore) Get(id string) (*Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	i, ok := fs.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return fs.runs[i].Clone(), nil
}

// Query pages through runs, newest first. An empty projectID matches all.
func (fs *FileStore) Query(projectID string, page, size int) ([]*Run, int) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	filtered := make([]*Run, 0, len(fs.runs))
	for i := len(fs.runs) - 1; i >= 0; i-- {
		r := fs.runs[i]
		if projectID != "" && !strings.EqualFold(r.ProjectID, projectID) {
			continue
		}
		filtered = append(filtered, r)
	}
	total := len(filtered)
	if size <= 0 {
		size = 50
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= total {
		return []*Run{}, total
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]*Run, 0, end-start)
	for _, r := range filtered[start:end] {
		out = append(out, r.Clone())
	}
	return out, total
}

type VerifyReport struct {
	Runs     int    `json:"runs"`
	LastSeq  int64  `json:"lastSeq"`
	LastHash string `json:"lastHash"`
}

// Verify re-reads the file and validates every link of the chain.
func (fs *FileStore) Verify() (*VerifyReport, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return VerifyFile(fs.path)
}

// VerifyFile validates a run log without opening it for writing.
func VerifyFile(path string) (*VerifyReport, error) {
	report := &VerifyReport{}
	f, err := os.Open(path)
	if err != nil {
		return report, err
	}
	defer f.Close()
	scanner := newScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r Run
		if err := json.Unmarshal(raw, &r); err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
		if err := checkLink(&r, report.LastHash, report.LastSeq); err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
		report.Runs++
		report.LastSeq = r.Seq
		report.LastHash = r.Hash
	}
	if err := scanner.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func checkLink(r *Run, prevHash string, prevSeq int64) error {
	if r.ID == "" {
		return errors.New("missing id")
	}
	if r.Seq != prevSeq+1 {
		return fmt.Errorf("seq mismatch id=%s: got %d want %d", r.ID, r.Seq, prevSeq+1)
	}
	if r.PrevHash != prevHash {
		return fmt.Errorf("prevHash mismatch id=%s", r.ID)
	}
	h, err := r.ComputeHash()
	if err != nil {
		return err
	}
	if h != r.Hash {
		return fmt.Errorf("hash mismatch id=%s", r.ID)
	}
	return nil
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.writer != nil {
		if err := fs.writer.Flush(); err != nil {
			return err
		}
	}
	return fs.file.Close()
}
