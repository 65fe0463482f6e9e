// Package types defines the core data structures for the mnemo memory system.
// These types represent extracted memories and the transient candidates the
// extraction engine produces before a memory is persisted.
package types

// MemoryType classifies what kind of knowledge a memory records.
type MemoryType string

// Memory type constants
const (
	// MemoryTypeFact is a stable statement about the user (name, home, job, dates).
	MemoryTypeFact MemoryType = "fact"

	// MemoryTypePreference records a like, dislike or favorite.
	MemoryTypePreference MemoryType = "preference"

	// MemoryTypePattern records recurring behaviour.
	MemoryTypePattern MemoryType = "pattern"

	// MemoryTypeNote is free-form information.
	MemoryTypeNote MemoryType = "note"

	// MemoryTypeEntity describes a person, place or thing the user mentioned.
	MemoryTypeEntity MemoryType = "entity"
)

// ValidMemoryTypes is a slice of all valid memory types for validation
var ValidMemoryTypes = []MemoryType{
	MemoryTypeFact,
	MemoryTypePreference,
	MemoryTypePattern,
	MemoryTypeNote,
	MemoryTypeEntity,
}

// Source constants record where a memory came from.
const (
	// SourceAutoExtraction marks memories produced by the extraction pipeline.
	SourceAutoExtraction = "auto-extraction"

	// SourceManual marks memories entered directly by the user.
	SourceManual = "manual"
)

// Importance bounds. Extracted memories use a 0-10 scale.
const (
	MinImportance = 0.0
	MaxImportance = 10.0
)

// IsValidMemoryType checks if the given memory type is valid.
func IsValidMemoryType(memoryType MemoryType) bool {
	for _, valid := range ValidMemoryTypes {
		if memoryType == valid {
			return true
		}
	}
	return false
}
