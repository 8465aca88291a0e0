package blob

import (
	memorystore "arbitros/internal/infra/blob/memory"
)

// MemoryStore re-exports the in-memory driver so tests can reach its helpers.
type MemoryStore = memorystore.Store

// NewMemory returns an in-memory blob.Store for the named bucket.
func NewMemory(bucket string) *MemoryStore { return memorystore.New(bucket) }
