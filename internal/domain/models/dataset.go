package models

import "time"

// Dataset is the aggregate root for one judge: its intent, labeled
// test cases, prompt version history, and evaluation runs.
// ActivePromptVersionID, when set, references a member of
// PromptVersions. Referential integrity of Run.PromptVersionID and
// EvaluationResult.TestCaseID is maintained by construction, not
// enforced transactionally.
type Dataset struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
	Intent                string           `json:"intent"`
	TestCases             []*TestCase      `json:"testCases"`
	PromptVersions        []*PromptVersion `json:"promptVersions"`
	Runs                  []*Run           `json:"runs"`
	ActivePromptVersionID string           `json:"activePromptVersionId,omitempty"`
	GenerateCount         int              `json:"generateCount"`
	HasGenerated          bool             `json:"hasGenerated"`
	IsSplit               bool             `json:"isSplit"`
}

// NewDataset creates an empty dataset: no test cases, no prompt
// versions, no runs.
func NewDataset(id, name string, now time.Time) *Dataset {
	return &Dataset{
		ID:             id,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
		TestCases:      []*TestCase{},
		PromptVersions: []*PromptVersion{},
		Runs:           []*Run{},
		GenerateCount:  50,
	}
}

// NextVersionNumber returns max(existing versions)+1, or 1 for a
// dataset with no versions. Numbers are never reused.
func (d *Dataset) NextVersionNumber() int {
	next := 1
	for _, v := range d.PromptVersions {
		if v.Version >= next {
			next = v.Version + 1
		}
	}
	return next
}

// ActivePromptVersion returns the currently active version, or nil.
func (d *Dataset) ActivePromptVersion() *PromptVersion {
	if d.ActivePromptVersionID == "" {
		return nil
	}
	return d.PromptVersion(d.ActivePromptVersionID)
}

// PromptVersion returns the version with the given id, or nil.
func (d *Dataset) PromptVersion(id string) *PromptVersion {
	for _, v := range d.PromptVersions {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// LatestRunForVersion returns the most recently appended run whose
// PromptVersionID matches, or nil. Runs are append-only, so the last
// match in slice order is the latest.
func (d *Dataset) LatestRunForVersion(versionID string) *Run {
	for i := len(d.Runs) - 1; i >= 0; i-- {
		if d.Runs[i].PromptVersionID == versionID {
			return d.Runs[i]
		}
	}
	return nil
}

// BestAccuracy returns the highest accuracy across all runs, or false
// when the dataset has never been evaluated.
func (d *Dataset) BestAccuracy() (float64, bool) {
	if len(d.Runs) == 0 {
		return 0, false
	}
	best := d.Runs[0].Stats.Accuracy
	for _, r := range d.Runs[1:] {
		if r.Stats.Accuracy > best {
			best = r.Stats.Accuracy
		}
	}
	return best, true
}

// DatasetListItem is the denormalized summary kept in the index for
// cheap listing without loading full datasets. BestAccuracy is nil
// when the dataset has no runs.
type DatasetListItem struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	TestCaseCount      int       `json:"testCaseCount"`
	PromptVersionCount int       `json:"promptVersionCount"`
	BestAccuracy       *float64  `json:"bestAccuracy"`
}

// ListItem projects the dataset into its index entry, recomputing the
// denormalized fields from current state.
func (d *Dataset) ListItem() DatasetListItem {
	item := DatasetListItem{
		ID:                 d.ID,
		Name:               d.Name,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		TestCaseCount:      len(d.TestCases),
		PromptVersionCount: len(d.PromptVersions),
	}
	if best, ok := d.BestAccuracy(); ok {
		item.BestAccuracy = &best
	}
	return item
}
