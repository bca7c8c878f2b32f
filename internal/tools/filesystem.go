package tools

import (
	"errors"
	"os"
	"path/filepath"
)

// AfterDebugDir is the workspace subdirectory receiving patched copies.
const AfterDebugDir = "after_debug"

// Filesystem provides file operations rooted at the workspace directory.
type Filesystem struct {
	guard      *PathGuard
	allowWrite bool
}

// NewFilesystem builds a filesystem tool with write permissions controlled by allowWrite.
func NewFilesystem(baseDir string, allowWrite bool) (*Filesystem, error) {
	guard, err := NewPathGuard(baseDir)
	if err != nil {
		return nil, err
	}
	return &Filesystem{guard: guard, allowWrite: allowWrite}, nil
}

// BaseDir returns the absolute root of the filesystem.
func (f *Filesystem) BaseDir() string {
	return f.guard.BaseDir
}

// ReadFile returns file contents as string. Reads are not confined to the
// base directory because the target may be passed explicitly on the command line.
func (f *Filesystem) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content to a file inside the base directory if allowed,
// creating parent directories.
func (f *Filesystem) WriteFile(path string, content string) (string, error) {
	if !f.allowWrite {
		return "", errors.New("write is disabled by configuration")
	}
	resolved, err := f.guard.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", err
	}
	return resolved, os.WriteFile(resolved, []byte(content), 0o644)
}

// AfterDebugPath returns where the patched copy of target is written: the
// after-debug directory of the workspace, keeping the original file name.
func (f *Filesystem) AfterDebugPath(target string) string {
	return filepath.Join(f.guard.BaseDir, AfterDebugDir, filepath.Base(target))
}
