package types

import (
	"crypto/sha256"
	"errors"
)

// ChunkKind represents the structural kind of a code chunk
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkClass    ChunkKind = "class"
	ChunkType     ChunkKind = "type"
	ChunkTest     ChunkKind = "test"
	ChunkModule   ChunkKind = "module"
	ChunkBlock    ChunkKind = "block"
)

// CharsPerToken is the token estimate ratio used throughout the engine.
const CharsPerToken = 4

// CodeChunk is a contiguous, addressable span of source code used as the retrieval unit
type CodeChunk struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"` // relative to project root

	// Location
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`

	// Content
	Content     string   `json:"content"`
	ContentHash [32]byte `json:"-"` // SHA-256 for deduplication
	Size        int      `json:"size"`
	TokenCount  int      `json:"token_count"`

	// Metadata
	Language     string    `json:"language"`
	Kind         ChunkKind `json:"kind"`
	Symbols      []string  `json:"symbols,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	IsTest       bool      `json:"is_test,omitempty"`
	IsConfig     bool      `json:"is_config,omitempty"`
}

// EstimateTokens returns the estimated token cost of text.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// ComputeTokenCount estimates the number of tokens in the chunk
func (c *CodeChunk) ComputeTokenCount() int {
	c.Size = len(c.Content)
	c.TokenCount = EstimateTokens(c.Content)
	return c.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *CodeChunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs basic validation of the chunk
func (c *CodeChunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}

	return nil
}
