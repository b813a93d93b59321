// v0
// internal/codes/file.go
package codes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// FileSource serves a rule table read from a YAML or JSON file. The document
// is either a flat list of rows or a mapping of code system to rows; rows in
// the mapping form inherit the code system from their key.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	tbl      table
	onReload []func()
}

// NewFileSource reads path once and returns the source.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FileSource{path: path, logger: logger.With(slog.String("component", "codes_file"))}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseFile decodes a rule table document without building a source.
func ParseFile(path string) ([]compliance.BuildingCode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read codes file: %w", err)
	}
	rows, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// Parse decodes YAML or JSON rule table bytes.
func Parse(data []byte) ([]compliance.BuildingCode, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var rows []compliance.BuildingCode
		if err := doc.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	case yaml.MappingNode:
		var grouped map[string][]compliance.BuildingCode
		if err := doc.Decode(&grouped); err != nil {
			return nil, err
		}
		var rows []compliance.BuildingCode
		// walk the node so systems keep document order
		for i := 0; i+1 < len(doc.Content); i += 2 {
			system := doc.Content[i].Value
			for _, row := range grouped[system] {
				if row.CodeSystem == "" {
					row.CodeSystem = system
				}
				rows = append(rows, row)
			}
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unsupported document kind %d", doc.Kind)
}

// Reload re-reads the file. On error the previous table stays active.
func (f *FileSource) Reload() error {
	rows, err := ParseFile(f.path)
	if err != nil {
		return err
	}
	tbl, err := buildTable(rows)
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	f.mu.Lock()
	f.tbl = tbl
	hooks := append([]func(){}, f.onReload...)
	f.mu.Unlock()
	f.logger.Info("codes_loaded", slog.String("path", f.path), slog.Int("rows", len(rows)), slog.Int("systems", len(tbl)))
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (f *FileSource) OnReload(fn func()) {
	f.mu.Lock()
	f.onReload = append(f.onReload, fn)
	f.mu.Unlock()
}

func (f *FileSource) Codes(_ context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tbl.codes(codeSystem)
}

func (f *FileSource) Systems(context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tbl.systems(), nil
}

// Watch reloads the table whenever the file changes until ctx is done. The
// parent directory is watched so that editors replacing the file by rename
// are picked up.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("codes watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(f.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	f.logger.Info("codes_watch_started", slog.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.Reload(); err != nil {
				f.logger.Warn("codes_reload_failed", slog.String("path", abs), slog.Any("err", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("codes_watch_error", slog.Any("err", err))
		}
	}
}
