package training

import (
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

// Tab identifies the renderer view the store considers active.
type Tab string

const (
	TabTestCases Tab = "test-cases"
	TabResults   Tab = "results"
	TabVersions  Tab = "versions"
)

// Snapshot is a value copy of the store's state, handed to renderers.
// Slices are copied; the elements they point at must be treated as
// read-only, since all mutation goes through store actions.
type Snapshot struct {
	Datasets []models.DatasetListItem `json:"datasets"`

	ActiveDatasetID       string                  `json:"activeDatasetId,omitempty"`
	DatasetName           string                  `json:"datasetName,omitempty"`
	Intent                string                  `json:"intent"`
	TestCases             []*models.TestCase      `json:"testCases"`
	PromptVersions        []*models.PromptVersion `json:"promptVersions"`
	Runs                  []*models.Run           `json:"runs"`
	ActivePromptVersionID string                  `json:"activePromptVersionId,omitempty"`
	GenerateCount         int                     `json:"generateCount"`
	HasGenerated          bool                    `json:"hasGenerated"`
	IsSplit               bool                    `json:"isSplit"`

	CurrentSystemPrompt string `json:"currentSystemPrompt"`
	ModelName           string `json:"modelName"`
	OptimizerType       string `json:"optimizerType"`
	ActiveTab           Tab    `json:"activeTab"`
	SidebarCollapsed    bool   `json:"sidebarCollapsed"`

	IsGenerating bool   `json:"isGenerating"`
	IsRunning    bool   `json:"isRunning"`
	IsOptimizing bool   `json:"isOptimizing"`
	ErrorMessage string `json:"error,omitempty"`
}

// snapshotLocked builds the value copy. Callers hold s.mu.
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Datasets:            append([]models.DatasetListItem(nil), s.datasets...),
		Intent:              s.intent,
		TestCases:           []*models.TestCase{},
		PromptVersions:      []*models.PromptVersion{},
		Runs:                []*models.Run{},
		GenerateCount:       s.generateCount(),
		CurrentSystemPrompt: s.currentSystemPrompt,
		ModelName:           s.modelName,
		OptimizerType:       s.optimizerType,
		ActiveTab:           s.activeTab,
		SidebarCollapsed:    s.sidebarCollapsed,
		IsGenerating:        s.isGenerating,
		IsRunning:           s.isRunning,
		IsOptimizing:        s.isOptimizing,
		ErrorMessage:        s.errorMessage,
	}
	if s.active != nil {
		snap.ActiveDatasetID = s.active.ID
		snap.DatasetName = s.active.Name
		snap.TestCases = append(snap.TestCases, s.active.TestCases...)
		snap.PromptVersions = append(snap.PromptVersions, s.active.PromptVersions...)
		snap.Runs = append(snap.Runs, s.active.Runs...)
		snap.ActivePromptVersionID = s.active.ActivePromptVersionID
		snap.HasGenerated = s.active.HasGenerated
		snap.IsSplit = s.active.IsSplit
	}
	return snap
}
