package workspace

import (
	"path/filepath"
	"strings"
)

// Language names a source language and the tag used for its markdown code fences.
type Language struct {
	Name  string
	Fence string
}

// DefaultLanguage is assumed for unknown extensions.
var DefaultLanguage = Language{Name: "Python", Fence: "python"}

var languagesByExt = map[string]Language{
	".py":    {"Python", "python"},
	".go":    {"Go", "go"},
	".java":  {"Java", "java"},
	".kt":    {"Kotlin", "kotlin"},
	".js":    {"JavaScript", "javascript"},
	".ts":    {"TypeScript", "typescript"},
	".tsx":   {"TypeScript React", "tsx"},
	".jsx":   {"JavaScript React", "jsx"},
	".rs":    {"Rust", "rust"},
	".cpp":   {"C++", "cpp"},
	".cc":    {"C++", "cpp"},
	".cxx":   {"C++", "cpp"},
	".c":     {"C", "c"},
	".h":     {"C/C++ Header", "c"},
	".rb":    {"Ruby", "ruby"},
	".php":   {"PHP", "php"},
	".swift": {"Swift", "swift"},
	".scala": {"Scala", "scala"},
	".sh":    {"Shell", "bash"},
}

// DetectLanguage infers the language of path from its extension.
func DetectLanguage(path string) Language {
	if l, ok := languagesByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return l
	}
	return DefaultLanguage
}
