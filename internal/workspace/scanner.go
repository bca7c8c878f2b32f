package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/logging"
)

// DefaultEntryFile is tried when the configured entry file is absent.
const DefaultEntryFile = "main.py"

// DefaultPatterns select fallback candidates when neither entry file exists.
var DefaultPatterns = []string{"*.py"}

// ErrEntryNotFound reports that no runnable entry file could be located.
var ErrEntryNotFound = errors.New("entry file not found")

// Scanner locates the entry file inside a workspace directory.
type Scanner struct {
	Dir       string
	EntryFile string
	Patterns  []string
	Logger    *zap.Logger
}

// FindEntryFile is a convenience wrapper around Scanner.Find.
func FindEntryFile(dir, entry string, patterns []string) (string, error) {
	s := Scanner{Dir: dir, EntryFile: entry, Patterns: patterns}
	return s.Find()
}

// Find returns the absolute path of the entry file. Lookup order: the
// configured entry file, DefaultEntryFile, then the first top-level file (in
// lexical order) whose name matches one of Patterns.
func (s Scanner) Find() (string, error) {
	log := logging.OrNop(s.Logger)

	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntryNotFound, err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: workspace %s is not a directory", ErrEntryNotFound, dir)
	}

	for _, name := range []string{s.EntryFile, DefaultEntryFile} {
		if name == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			if name != s.EntryFile {
				log.Warn("configured entry file missing, using default",
					zap.String("configured", s.EntryFile), zap.String("entry", candidate))
			} else {
				log.Info("entry file", zap.String("path", candidate))
			}
			return candidate, nil
		}
	}

	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	matches, err := listMatching(dir, patterns)
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		log.Warn("entry file missing, falling back to first matching file",
			zap.String("configured", s.EntryFile), zap.String("entry", matches[0]))
		return matches[0], nil
	}

	return "", fmt.Errorf("%w: no %s, %s or file matching %v in %s", ErrEntryNotFound, s.EntryFile, DefaultEntryFile, patterns, dir)
}

// ListSources returns top-level files in dir matching any of patterns, sorted by name.
func ListSources(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return listMatching(dir, patterns)
}

func listMatching(dir string, patterns []string) ([]string, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid workspace pattern %q", p)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, e.Name()); ok {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return out, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
