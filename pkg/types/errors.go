package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrNotInitialized is returned by context accessors before the first successful build.
	ErrNotInitialized = errors.New("context not initialized")

	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidRoot         = errors.New("invalid root path")
	ErrFileNotIndexed      = errors.New("file not indexed")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrEmptyQuery          = errors.New("query intent cannot be empty")
	ErrUnsupportedLanguage = errors.New("unsupported language")

	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrEmptyContent          = errors.New("content cannot be empty")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any ConfigError with errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}
