package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

// SourceExt is the extension of source rule lists.
const SourceExt = ".list"

type WriteError struct {
	AppError model.AppError
	Cause    error
}

func (e *WriteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

func writeError(code, msg, path string, cause error) error {
	return &WriteError{
		AppError: model.AppError{
			Code:    code,
			Message: msg,
			Stage:   "write_output",
			Path:    path,
		},
		Cause: cause,
	}
}

// Source is one discovered source rule list.
type Source struct {
	Path string
	Stem string
}

// ListSources returns every *.list file under dir, recursively, sorted by
// path. A missing dir yields no sources.
func ListSources(dir string) ([]Source, error) {
	var out []Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != SourceExt {
			return nil
		}
		out = append(out, Source{Path: path, Stem: Stem(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Stem is the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadText reads a source file as text.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteIfChanged writes content to path unless the file already holds
// exactly those bytes. It reports whether a write happened.
func WriteIfChanged(path string, content string) (bool, error) {
	data := []byte(content)
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, writeError("WRITE_FAILED", "创建输出目录失败", path, err)
	}

	// Write to a temp file first, then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return false, writeError("WRITE_FAILED", "写入输出文件失败", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, writeError("WRITE_FAILED", "写入输出文件失败", path, err)
	}
	return true, nil
}

// ListGenerated returns the regular files directly under dir whose
// extension is ext. A missing dir yields nothing.
func ListGenerated(dir string, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// Remove deletes path. A file that is already gone is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return writeError("REMOVE_FAILED", "删除过期输出失败", path, err)
	}
	return nil
}

// FS is the on-disk implementation of the sync run's file collaborator.
type FS struct{}

func (FS) ListSources(dir string) ([]Source, error)          { return ListSources(dir) }
func (FS) ReadText(path string) (string, error)              { return ReadText(path) }
func (FS) WriteIfChanged(path, content string) (bool, error) { return WriteIfChanged(path, content) }
func (FS) ListGenerated(dir, ext string) ([]string, error)   { return ListGenerated(dir, ext) }
func (FS) Remove(path string) error                          { return Remove(path) }
