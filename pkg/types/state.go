package types

import "time"

// ContextState is a read-only projection of the shared context cache.
type ContextState struct {
	Initialized bool      `json:"initialized"`
	InProgress  bool      `json:"in_progress"`
	RootPath    string    `json:"root_path,omitempty"`
	FileCount   int       `json:"file_count"`
	ChunkCount  int       `json:"chunk_count"`
	LastIndexed time.Time `json:"last_indexed,omitzero"`

	// Usage statistics
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	MemoryBytes int64   `json:"memory_bytes"`
}
