package models

import "time"

// LegacyJudge is the pre-versioning persisted shape: one flat system
// prompt and at most one result set per judge. It exists only for the
// one-time migration into the dataset model and is never written back.
type LegacyJudge struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Intent        string      `json:"intent"`
	SystemPrompt  string      `json:"systemPrompt"`
	TestCases     []*TestCase `json:"testCases"`
	RunStats      *RunStats   `json:"runStats"`
	ModelName     string      `json:"modelName"`
	GenerateCount int         `json:"generateCount"`
	HasGenerated  bool        `json:"hasGenerated"`
	IsSplit       bool        `json:"isSplit"`
}

// LegacyIndexEntry is one entry of the legacy judge index.
type LegacyIndexEntry struct {
	ID string `json:"id"`
}
