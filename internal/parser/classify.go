package parser

import (
	"path"
	"strings"
)

var testDirs = []string{"test", "tests", "__tests__", "spec", "testdata"}

// IsTestFile reports whether a slash-separated relative path looks like a test file.
func IsTestFile(relPath string) bool {
	name := path.Base(relPath)
	base := strings.ToLower(name)

	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasSuffix(base, "_test.py"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_spec.rb"),
		strings.HasSuffix(name, "Test.java"),
		strings.HasSuffix(name, "Tests.java"),
		strings.HasSuffix(name, "Test.cs"),
		strings.HasSuffix(name, "Tests.cs"):
		return true
	}

	stem := strings.TrimSuffix(base, path.Ext(base))
	if strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, ".spec") {
		return true
	}

	for _, dir := range strings.Split(path.Dir(relPath), "/") {
		for _, td := range testDirs {
			if strings.EqualFold(dir, td) {
				return true
			}
		}
	}
	return false
}

var configExts = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".env": true,
}

// IsConfigFile reports whether a relative path looks like project configuration
// rather than application code.
func IsConfigFile(relPath string) bool {
	base := strings.ToLower(path.Base(relPath))
	if configExts[path.Ext(base)] {
		return true
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return strings.HasSuffix(stem, ".config") ||
		strings.HasPrefix(base, ".") && strings.HasSuffix(base, "rc") ||
		stem == "setup" || stem == "conftest" || stem == "settings"
}
