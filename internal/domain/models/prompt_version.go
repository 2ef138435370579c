package models

import "time"

// PromptSource records how a prompt version came to exist.
type PromptSource string

const (
	SourceManual    PromptSource = "manual"
	SourceGenerated PromptSource = "generated"
	SourceOptimized PromptSource = "optimized"
)

func (s PromptSource) Valid() bool {
	switch s {
	case SourceManual, SourceGenerated, SourceOptimized:
		return true
	}
	return false
}

// PromptVersion is an immutable snapshot of a judge's system prompt
// plus its provenance and lineage. Versions form a forest per dataset:
// ParentVersionID is empty for roots. Version numbers are assigned as
// max(existing)+1 at creation time and never reused.
type PromptVersion struct {
	ID              string       `json:"id"`
	Version         int          `json:"version"`
	SystemPrompt    string       `json:"systemPrompt"`
	Source          PromptSource `json:"source"`
	CreatedAt       time.Time    `json:"createdAt"`
	ParentVersionID string       `json:"parentVersionId,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	OptimizerType   string       `json:"optimizerType,omitempty"`
}

// NewPromptVersion creates a prompt version with the given number.
// Callers obtain the number from Dataset.NextVersionNumber.
func NewPromptVersion(id string, version int, systemPrompt string, source PromptSource, now time.Time) *PromptVersion {
	return &PromptVersion{
		ID:           id,
		Version:      version,
		SystemPrompt: systemPrompt,
		Source:       source,
		CreatedAt:    now,
	}
}
