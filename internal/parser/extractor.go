package parser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/pkg/types"
)

// Version identifies the extraction rules. Stored results produced under a
// different version are re-extracted.
const Version = "1.1.0"

// Result is the output of extracting one file.
type Result struct {
	Symbols      []types.Symbol
	Dependencies []string            // verbatim specifiers, in order of first appearance
	Imports      map[string][]string // specifier -> imported names, when known
	Package      string
}

// Extractor turns file content into symbols and dependency specifiers for one language.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Language() string
	Extensions() []string
	Extract(path string, src []byte) (*Result, error)
}

var (
	registryMu  sync.RWMutex
	byLanguage  = make(map[string]Extractor)
	byExtension = make(map[string]Extractor)
)

// Register adds an extractor to the registry. Later registrations for the
// same language or extension replace earlier ones.
func Register(e Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	byLanguage[e.Language()] = e
	for _, ext := range e.Extensions() {
		byExtension[strings.ToLower(ext)] = e
	}
}

// ForLanguage returns the extractor registered under name.
func ForLanguage(name string) (Extractor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := byLanguage[name]
	return e, ok
}

// ForExtension returns the extractor for a file extension such as ".ts".
func ForExtension(ext string) (Extractor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := byExtension[strings.ToLower(ext)]
	return e, ok
}

// LanguageForPath returns the language name for path, or "" if no extractor handles it.
func LanguageForPath(path string) string {
	if e, ok := ForExtension(filepath.Ext(path)); ok {
		return e.Language()
	}
	return ""
}

// Languages returns the registered language names, sorted.
func Languages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(byLanguage))
	for name := range byLanguage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parser runs registered extractors with failure isolation.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser. A nil logger discards warnings.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logging.OrDiscard(logger)}
}

// Parse extracts symbols and dependencies from src. It never fails: when the
// extractor errors or panics the symbol list is empty, a warning is logged,
// and dependencies fall back to the specifier scanner.
func (p *Parser) Parse(path string, src []byte, language string) *Result {
	if language == "" {
		language = LanguageForPath(path)
	}

	ext, ok := ForLanguage(language)
	if !ok {
		p.logger.Warn("no extractor for language", "path", path, "language", language)
		return &Result{}
	}

	res, err := safeExtract(ext, path, src)
	if err != nil {
		p.logger.Warn("symbol extraction failed", "path", path, "language", language, "error", err)
		imports := ScanImports(language, src)
		return &Result{
			Dependencies: Specifiers(imports),
			Imports:      importNames(imports),
		}
	}
	return res
}

func safeExtract(e Extractor, path string, src []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()

	res, err = e.Extract(path, src)
	if err == nil && res == nil {
		res = &Result{}
	}
	return res, err
}
