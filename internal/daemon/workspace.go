package daemon

import (
	"os"
	"path/filepath"
)

// languageMarkers lists, per language, the marker files searched for
// when walking up from a file to find its workspace root. In each
// directory the language's markers are tried in order, then
// genericMarkers (.git); the nearest directory holding any of them wins.
var languageMarkers = map[string][]string{
	"go":         {"go.mod"},
	"rust":       {"Cargo.toml"},
	"javascript": {"package.json"},
	"typescript": {"package.json", "tsconfig.json"},
	"python":     {"pyproject.toml", "setup.py", "setup.cfg"},
	"java":       {"pom.xml", "build.gradle", "build.gradle.kts"},
	"csharp":     {"*.sln", "*.csproj"},
	"cpp":        {"CMakeLists.txt", "compile_commands.json"},
	"php":        {"composer.json"},
}

var genericMarkers = []string{".git"}

// ResolveWorkspace walks up from filePath and returns the nearest
// directory holding either a marker for language or .git, or
// filePath's own directory if nothing is found.
func ResolveWorkspace(filePath, language string) string {
	dir := filepath.Dir(filePath)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	markers := append(append([]string(nil), languageMarkers[language]...), genericMarkers...)

	for cur := dir; ; {
		for _, m := range markers {
			if hasMarker(cur, m) {
				return cur
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	return dir
}

func hasMarker(dir, pattern string) bool {
	if containsGlobChar(pattern) {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		return err == nil && len(matches) > 0
	}
	_, err := os.Stat(filepath.Join(dir, pattern))
	return err == nil
}

func containsGlobChar(s string) bool {
	for _, c := range s {
		if c == '*' || c == '?' || c == '[' {
			return true
		}
	}
	return false
}
