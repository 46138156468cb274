package parser

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"segment-filter-generator/internal/model"
)

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func trimCompressionExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".zst", ".zstd":
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// OpenInput opens a mapping file, decompressing ".gz" and ".zst" files.
func OpenInput(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		return &stackedReader{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		rc := dec.IOReadCloser()
		return &stackedReader{Reader: rc, closers: []io.Closer{rc, f}}, nil
	default:
		return f, nil
	}
}

// LoadMappingFiles parses every segment or host mapping file in paths.
// Files that cannot be opened are skipped.
func LoadMappingFiles(kind model.MappingKind, paths []string) (*Result, error) {
	result := &Result{}
	for _, path := range paths {
		r, err := OpenInput(path)
		if err != nil {
			slog.Debug("Skipping unreadable mapping file", "kind", kind.String(), "path", path, "error", err)
			continue
		}
		fileResult, err := ParseMappingFile(kind, r, path)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		result.merge(fileResult)
	}
	return result, nil
}

// LoadMixedFiles parses every mixed JSON or YAML mapping file in paths.
// Unreadable files and documents that are not arrays are skipped whole.
func LoadMixedFiles(paths []string) *Result {
	result := &Result{}
	for _, path := range paths {
		entries, err := readMixedFile(path)
		if err != nil {
			slog.Debug("Skipping mixed mapping file", "path", path, "error", err)
			continue
		}
		result.merge(ParseMixedEntries(entries, path))
	}
	return result
}

func readMixedFile(path string) ([]MixedEntry, error) {
	r, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseMixed(path, data)
}

// LoadFortiGateFiles imports the address objects and groups of FortiGate
// configuration backups as segments, all requiring tag. Files that cannot
// be opened are skipped.
func LoadFortiGateFiles(paths []string, tag model.RequiredTag) (*Result, error) {
	result := &Result{}
	for _, path := range paths {
		r, err := OpenInput(path)
		if err != nil {
			slog.Debug("Skipping unreadable FortiGate config", "path", path, "error", err)
			continue
		}
		parser := NewFortiGateParser(r, path)
		parser.Tag = tag
		fileResult, err := parser.Parse()
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		result.merge(fileResult)
	}
	return result, nil
}
