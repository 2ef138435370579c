// Package training implements the reactive state container behind the
// judge editor: one active dataset plus a collection index, mutation
// and async orchestration actions, and debounced auto-persistence.
// All mutation happens inside action methods; renderers observe state
// through Subscribe or Snapshot and never touch it directly.
package training

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

const defaultGenerateCount = 50

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Options tunes store construction. Zero values get sensible defaults.
type Options struct {
	DefaultModel     string
	OptimizerType    string
	DebounceInterval time.Duration
	Clock            ports.Clock
}

// Store owns the in-memory dataset state. One instance per process;
// the durable store has no other writer.
type Store struct {
	mu    sync.Mutex
	repo  ports.DatasetRepository
	eval  ports.EvalService
	ids   ports.IDGenerator
	clock ports.Clock

	datasets []models.DatasetListItem
	active   *models.Dataset

	intent              string
	stagedCount         int
	currentSystemPrompt string
	modelName           string
	optimizerType       string
	activeTab           Tab
	sidebarCollapsed    bool
	errorMessage        string

	isGenerating bool
	isRunning    bool
	isOptimizing bool

	persist            *persistScheduler
	persistErrSurfaced bool

	subs []func(Snapshot)
}

func New(repo ports.DatasetRepository, eval ports.EvalService, ids ports.IDGenerator, opts Options) *Store {
	if opts.DefaultModel == "" {
		opts.DefaultModel = "gpt-4o"
	}
	if opts.OptimizerType == "" {
		opts.OptimizerType = "bootstrap_fewshot"
	}
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	s := &Store{
		repo:          repo,
		eval:          eval,
		ids:           ids,
		clock:         opts.Clock,
		datasets:      []models.DatasetListItem{},
		stagedCount:   defaultGenerateCount,
		modelName:     opts.DefaultModel,
		optimizerType: opts.OptimizerType,
		activeTab:     TabTestCases,
	}
	s.persist = newPersistScheduler(s, opts.DebounceInterval)
	return s
}

// Subscribe registers a change-notification callback, invoked with a
// fresh snapshot after every committed state transition.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Snapshot returns a value copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// notify hands the current snapshot to every subscriber. Called
// without the lock held.
func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := append(([]func(Snapshot))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Load reads the index and selects the most recently updated dataset,
// reconstituting its derived UI fields.
func (s *Store) Load(ctx context.Context) error {
	index, err := s.repo.ListIndex(ctx)
	if err != nil {
		return domain.NewDomainError(err, "loading dataset index")
	}

	s.mu.Lock()
	s.datasets = index
	s.mu.Unlock()

	if len(index) > 0 {
		latest := index[0]
		for _, item := range index[1:] {
			if item.UpdatedAt.After(latest.UpdatedAt) {
				latest = item
			}
		}
		return s.SelectDataset(ctx, latest.ID)
	}

	s.notify()
	return nil
}

// Close flushes any pending debounced save.
func (s *Store) Close(ctx context.Context) error {
	s.persist.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveActiveLocked(ctx)
}

func (s *Store) generateCount() int {
	if s.active != nil {
		return s.active.GenerateCount
	}
	return s.stagedCount
}

// --- Setters ---
//
// Setters that touch dataset state arm the debounced save; pure UI
// setters (tab, sidebar) do not.

func (s *Store) SetIntent(intent string) {
	s.mu.Lock()
	s.intent = intent
	if s.active != nil {
		s.active.Intent = intent
		s.persist.Schedule()
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetGenerateCount(count int) {
	if count <= 0 {
		return
	}
	s.mu.Lock()
	s.stagedCount = count
	if s.active != nil {
		s.active.GenerateCount = count
		s.persist.Schedule()
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetModelName(name string) {
	s.mu.Lock()
	s.modelName = name
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetOptimizerType(optimizerType string) {
	s.mu.Lock()
	s.optimizerType = optimizerType
	s.mu.Unlock()
	s.notify()
}

// SetCurrentSystemPrompt stages prompt text in the editor. The dataset
// is untouched until SavePromptVersion commits it.
func (s *Store) SetCurrentSystemPrompt(prompt string) {
	s.mu.Lock()
	s.currentSystemPrompt = prompt
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetActiveTab(tab Tab) {
	s.mu.Lock()
	s.activeTab = tab
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetSidebarCollapsed(collapsed bool) {
	s.mu.Lock()
	s.sidebarCollapsed = collapsed
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.errorMessage = ""
	s.mu.Unlock()
	s.notify()
}

// SavePromptVersion commits the staged prompt text as a new manual
// version, parented to the previously active version, and makes it
// active.
func (s *Store) SavePromptVersion(notes string) error {
	s.mu.Lock()

	prompt := strings.TrimSpace(s.currentSystemPrompt)
	if prompt == "" {
		s.errorMessage = "System prompt cannot be empty"
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrInvalidInput, "system prompt cannot be empty")
	}
	if s.active == nil {
		s.createDatasetLocked(datasetNameFromIntent(s.intent))
	}

	version := models.NewPromptVersion(
		s.ids.GeneratePromptVersionID(),
		s.active.NextVersionNumber(),
		prompt,
		models.SourceManual,
		s.clock.Now(),
	)
	version.ParentVersionID = s.active.ActivePromptVersionID
	version.Notes = notes

	s.active.PromptVersions = append(s.active.PromptVersions, version)
	s.active.ActivePromptVersionID = version.ID
	s.errorMessage = ""
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return nil
}

// SetActivePromptVersion switches the active version and reconstitutes
// the prompt editor from it.
func (s *Store) SetActivePromptVersion(versionID string) error {
	s.mu.Lock()

	if s.active == nil {
		s.mu.Unlock()
		return domain.ErrDatasetNotFound
	}
	version := s.active.PromptVersion(versionID)
	if version == nil {
		s.mu.Unlock()
		return domain.ErrPromptVersionNotFound
	}

	s.active.ActivePromptVersionID = version.ID
	s.currentSystemPrompt = version.SystemPrompt
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return nil
}

// --- Test case mutations ---

// TestCasePatch carries optional field updates; nil means unchanged.
type TestCasePatch struct {
	InputText       *string
	ExpectedVerdict *models.Verdict
	Reasoning       *string
	Verified        *bool
}

func (s *Store) AddTestCase(inputText string, expected models.Verdict, reasoning string) (*models.TestCase, error) {
	s.mu.Lock()

	if !expected.Valid() {
		s.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "expected verdict must be PASS or FAIL")
	}
	if s.active == nil {
		s.createDatasetLocked(datasetNameFromIntent(s.intent))
	}

	tc := models.NewTestCase(s.ids.GenerateTestCaseID(), inputText, expected, reasoning)
	s.active.TestCases = append(s.active.TestCases, tc)
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return tc, nil
}

func (s *Store) UpdateTestCase(id string, patch TestCasePatch) error {
	s.mu.Lock()

	tc := s.findTestCaseLocked(id)
	if tc == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	if patch.InputText != nil {
		tc.InputText = *patch.InputText
	}
	if patch.ExpectedVerdict != nil {
		if !patch.ExpectedVerdict.Valid() {
			s.mu.Unlock()
			return domain.NewDomainError(domain.ErrInvalidInput, "expected verdict must be PASS or FAIL")
		}
		tc.ExpectedVerdict = *patch.ExpectedVerdict
	}
	if patch.Reasoning != nil {
		tc.Reasoning = *patch.Reasoning
	}
	if patch.Verified != nil {
		tc.Verified = *patch.Verified
	}
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) RemoveTestCase(id string) error {
	s.mu.Lock()

	if s.active == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	kept := s.active.TestCases[:0]
	found := false
	for _, tc := range s.active.TestCases {
		if tc.ID == id {
			found = true
			continue
		}
		kept = append(kept, tc)
	}
	if !found {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	s.active.TestCases = kept
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) ToggleTestCaseVerified(id string) error {
	s.mu.Lock()

	tc := s.findTestCaseLocked(id)
	if tc == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	tc.Verified = !tc.Verified
	s.persist.Schedule()

	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) findTestCaseLocked(id string) *models.TestCase {
	if s.active == nil {
		return nil
	}
	for _, tc := range s.active.TestCases {
		if tc.ID == id {
			return tc
		}
	}
	return nil
}

// --- Dataset CRUD ---

// createDatasetLocked creates and activates an empty dataset without
// persisting it; callers schedule or perform the save.
func (s *Store) createDatasetLocked(name string) *models.Dataset {
	dataset := models.NewDataset(s.ids.GenerateDatasetID(), name, s.clock.Now())
	dataset.Intent = s.intent
	dataset.GenerateCount = s.stagedCount
	s.active = dataset
	s.upsertIndexLocked(dataset.ListItem())
	return dataset
}

func (s *Store) upsertIndexLocked(item models.DatasetListItem) {
	for i := range s.datasets {
		if s.datasets[i].ID == item.ID {
			s.datasets[i] = item
			return
		}
	}
	s.datasets = append(s.datasets, item)
}

// CreateDataset saves the outgoing dataset, then creates, activates,
// and persists an empty one.
func (s *Store) CreateDataset(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = "Untitled dataset"
	}

	s.persist.Cancel()
	s.mu.Lock()

	if err := s.saveActiveLocked(ctx); err != nil {
		s.mu.Unlock()
		return "", err
	}

	s.intent = ""
	s.currentSystemPrompt = ""
	s.stagedCount = defaultGenerateCount
	s.errorMessage = ""
	s.activeTab = TabTestCases

	dataset := s.createDatasetLocked(name)
	err := s.saveActiveLocked(ctx)

	s.mu.Unlock()
	s.notify()
	if err != nil {
		return "", err
	}
	return dataset.ID, nil
}

// SelectDataset persists the outgoing dataset first, then loads the
// incoming one and reconstitutes derived UI fields. The explicit save
// guarantees no edit is lost on navigation even with a debounce
// pending.
func (s *Store) SelectDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.active != nil && s.active.ID == id {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.persist.Cancel()
	s.mu.Lock()

	if err := s.saveActiveLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}

	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		s.errorMessage = "Failed to load dataset"
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.active = dataset
	s.intent = dataset.Intent
	s.stagedCount = dataset.GenerateCount
	s.currentSystemPrompt = ""
	if v := dataset.ActivePromptVersion(); v != nil {
		s.currentSystemPrompt = v.SystemPrompt
	}
	s.errorMessage = ""
	s.activeTab = TabTestCases

	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) RenameDataset(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewDomainError(domain.ErrInvalidInput, "dataset name is required")
	}

	s.mu.Lock()

	if s.active != nil && s.active.ID == id {
		s.active.Name = name
		err := s.saveActiveLocked(ctx)
		s.mu.Unlock()
		s.notify()
		return err
	}

	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	dataset.Name = name
	if err := s.repo.Save(ctx, dataset); err != nil {
		s.mu.Unlock()
		return err
	}
	s.upsertIndexLocked(dataset.ListItem())

	s.mu.Unlock()
	s.notify()
	return nil
}

// DeleteDataset removes the record and its index entry. Deleting the
// active dataset resets every active-dataset-scoped field to its empty
// initial value.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	s.persist.Cancel()
	s.mu.Lock()

	if err := s.repo.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}

	kept := s.datasets[:0]
	for _, item := range s.datasets {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	s.datasets = kept

	if s.active != nil && s.active.ID == id {
		s.active = nil
		s.intent = ""
		s.currentSystemPrompt = ""
		s.stagedCount = defaultGenerateCount
		s.errorMessage = ""
		s.activeTab = TabTestCases
	}

	s.mu.Unlock()
	s.notify()
	return nil
}

// ListDatasets returns the index sorted by most recent update.
func (s *Store) ListDatasets() []models.DatasetListItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append([]models.DatasetListItem(nil), s.datasets...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items
}

// saveActiveLocked persists the active dataset synchronously and
// refreshes its index entry. No-op when nothing is active. Callers
// hold s.mu.
func (s *Store) saveActiveLocked(ctx context.Context) error {
	if s.active == nil {
		return nil
	}
	if err := s.repo.Save(ctx, s.active); err != nil {
		return domain.NewDomainError(err, "saving dataset")
	}
	s.upsertIndexLocked(s.active.ListItem())
	return nil
}

func datasetNameFromIntent(intent string) string {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return "Untitled dataset"
	}
	if len(intent) > 60 {
		return intent[:60]
	}
	return intent
}
