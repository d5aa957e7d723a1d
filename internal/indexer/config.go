package indexer

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/pkg/types"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultMaxFileSize = 1 << 20
	DefaultMaxFiles    = 10000
)

// DefaultExclude lists the directories skipped unless Exclude is set.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
}

// Config controls discovery and extraction.
type Config struct {
	Include          []string // doublestar globs; empty means every registered extension
	Exclude          []string
	MaxFileSize      int64
	MaxFiles         int
	Languages        []string // nil means every registered language
	IncludeTests     bool
	RespectGitignore bool
	Workers          int
}

// DefaultConfig returns the configuration used when Index is given nil.
func DefaultConfig() *Config {
	return &Config{
		Exclude:          append([]string(nil), DefaultExclude...),
		MaxFileSize:      DefaultMaxFileSize,
		MaxFiles:         DefaultMaxFiles,
		IncludeTests:     true,
		RespectGitignore: true,
		Workers:          runtime.NumCPU(),
	}
}

// Validate checks the configuration. Errors are *types.ConfigError.
func (c *Config) Validate() error {
	if c.Languages != nil && len(c.Languages) == 0 {
		return types.NewConfigError("languages", "language allow-list is empty")
	}
	for _, lang := range c.Languages {
		if _, ok := parser.ForLanguage(lang); !ok {
			return types.NewConfigError("languages", fmt.Sprintf("unsupported language %q", lang))
		}
	}
	if c.MaxFileSize < 0 {
		return types.NewConfigError("max_file_size", "must not be negative")
	}
	if c.MaxFiles < 0 {
		return types.NewConfigError("max_files", "must not be negative")
	}
	for _, p := range c.Include {
		if !doublestar.ValidatePattern(p) {
			return types.NewConfigError("include", fmt.Sprintf("invalid glob %q", p))
		}
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return types.NewConfigError("exclude", fmt.Sprintf("invalid glob %q", p))
		}
	}
	return nil
}

// Fingerprint identifies the settings that change what gets indexed.
// Workers is excluded.
func (c *Config) Fingerprint() string {
	langs := append([]string(nil), c.Languages...)
	sort.Strings(langs)
	return strings.Join([]string{
		strings.Join(c.Include, ","),
		strings.Join(c.Exclude, ","),
		fmt.Sprint(c.MaxFileSize),
		fmt.Sprint(c.MaxFiles),
		fmt.Sprint(c.Languages == nil),
		strings.Join(langs, ","),
		fmt.Sprint(c.IncludeTests),
		fmt.Sprint(c.RespectGitignore),
	}, "|")
}

// withDefaults fills zero numeric limits and the default include set.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.MaxFileSize == 0 {
		out.MaxFileSize = DefaultMaxFileSize
	}
	if out.MaxFiles == 0 {
		out.MaxFiles = DefaultMaxFiles
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if len(out.Include) == 0 {
		for _, ext := range parser.Extensions() {
			out.Include = append(out.Include, "**/*"+ext)
		}
	}
	return &out
}

func (c *Config) allowsLanguage(lang string) bool {
	if c.Languages == nil {
		return true
	}
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
