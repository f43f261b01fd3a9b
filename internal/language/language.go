// Package language maps file names to the language tags stored on file
// records and knows how to run each language.
package language

import (
	"path/filepath"
	"slices"
	"strings"
)

// Default is the tag used when nothing better is known.
const Default = "python"

// Text is the tag for files with no recognized extension.
const Text = "text"

var byExt = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".java": "java",
	".go":   "go",
	".sh":   "shell",
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
	".txt":  "text",
}

var extByLang = map[string]string{
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"java":       ".java",
	"go":         ".go",
	"shell":      ".sh",
	"html":       ".html",
	"css":        ".css",
	"json":       ".json",
	"markdown":   ".md",
	"text":       ".txt",
}

// Known returns every supported language tag, sorted.
func Known() []string {
	out := make([]string, 0, len(extByLang))
	for lang := range extByLang {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// IsKnown reports whether lang is a supported tag.
func IsKnown(lang string) bool {
	_, ok := extByLang[lang]
	return ok
}

// Detect returns the language tag for a file name based on its extension.
func Detect(name string) string {
	if lang, ok := byExt[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return Text
}

// Extension returns the canonical file extension for lang, including the
// leading dot, or "" if unknown.
func Extension(lang string) string {
	return extByLang[lang]
}

// Interpreter returns the command used to run a single source file of the
// given language. The file path is appended as the last argument. ok is false
// for languages that cannot be executed directly.
func Interpreter(lang string) (argv []string, ok bool) {
	switch lang {
	case "python":
		return []string{"python3"}, true
	case "javascript":
		return []string{"node"}, true
	case "typescript":
		return []string{"npx", "--yes", "tsx"}, true
	case "go":
		return []string{"go", "run"}, true
	case "shell":
		return []string{"sh"}, true
	case "java":
		return []string{"java"}, true
	}
	return nil, false
}

// DetectProject guesses the primary language of a project from the names
// of the files at its root.
func DetectProject(rootFiles []string) string {
	markers := []struct {
		file string
		lang string
	}{
		{"go.mod", "go"},
		{"package.json", "javascript"},
		{"tsconfig.json", "typescript"},
		{"pyproject.toml", "python"},
		{"requirements.txt", "python"},
		{"pom.xml", "java"},
	}
	for _, m := range markers {
		if slices.Contains(rootFiles, m.file) {
			return m.lang
		}
	}
	return ""
}

// DefaultBuildCommand suggests a build command for a project language.
func DefaultBuildCommand(lang string) string {
	switch lang {
	case "go":
		return "go build ./..."
	case "javascript", "typescript":
		return "npm install && npm run build"
	case "python":
		return "python3 -m compileall -q ."
	case "java":
		return "mvn -q package"
	}
	return ""
}
