package training

import (
	"context"
	"strings"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/metrics"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

// User-visible validation messages.
const (
	msgEmptyIntent   = "Please enter an intent first"
	msgNoTestCases   = "Please generate test cases first"
	msgNoPrompt      = "Please generate or save a system prompt first"
	msgNoEligibleRun = "Run an evaluation with the current prompt first"
)

// GenerateTestCases asks the evaluation service for synthetic labeled
// cases and an initial judge prompt. On success it replaces the
// dataset's test cases, creates a new generated root version, makes it
// active, and clears run history: results from a previous prompt and
// case set cannot be compared against a new generation.
func (s *Store) GenerateTestCases(ctx context.Context) error {
	s.mu.Lock()
	if s.isGenerating {
		s.mu.Unlock()
		return nil
	}

	intent := strings.TrimSpace(s.intent)
	if intent == "" {
		s.errorMessage = msgEmptyIntent
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrInvalidInput, msgEmptyIntent)
	}

	if s.active == nil {
		s.createDatasetLocked(datasetNameFromIntent(intent))
	}
	datasetID := s.active.ID
	count := s.active.GenerateCount
	model := s.modelName

	s.isGenerating = true
	s.errorMessage = ""
	s.mu.Unlock()
	s.notify()

	result, err := s.eval.Generate(ctx, intent, count, model)

	s.mu.Lock()
	s.isGenerating = false

	if err != nil {
		metrics.StoreActionsTotal.WithLabelValues("generate", "error").Inc()
		s.errorMessage = "Generation failed: " + err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}

	// A response that arrives after the user switched datasets must
	// not be committed against the wrong aggregate.
	if s.active == nil || s.active.ID != datasetID {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	version := models.NewPromptVersion(
		s.ids.GeneratePromptVersionID(),
		s.active.NextVersionNumber(),
		result.SystemPrompt,
		models.SourceGenerated,
		s.clock.Now(),
	)

	testCases := result.TestCases
	if testCases == nil {
		testCases = []*models.TestCase{}
	}

	s.active.PromptVersions = append(s.active.PromptVersions, version)
	s.active.ActivePromptVersionID = version.ID
	s.active.TestCases = testCases
	s.active.Runs = []*models.Run{}
	s.active.HasGenerated = true
	s.active.IsSplit = false
	s.active.Intent = intent
	s.currentSystemPrompt = result.SystemPrompt
	s.activeTab = TabTestCases
	s.persist.Schedule()

	metrics.StoreActionsTotal.WithLabelValues("generate", "ok").Inc()
	s.mu.Unlock()
	s.notify()
	return nil
}

// RunEvaluation evaluates every test case under the active prompt
// version. On success it appends exactly one run; run history is
// append-only and prior runs are never touched.
func (s *Store) RunEvaluation(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	if s.active == nil || len(s.active.TestCases) == 0 {
		s.errorMessage = msgNoTestCases
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrInvalidInput, msgNoTestCases)
	}
	version := s.active.ActivePromptVersion()
	if version == nil {
		s.errorMessage = msgNoPrompt
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrNoActivePromptVersion, msgNoPrompt)
	}

	datasetID := s.active.ID
	versionID := version.ID
	systemPrompt := version.SystemPrompt
	testCases := append([]*models.TestCase(nil), s.active.TestCases...)
	model := s.modelName

	s.isRunning = true
	s.errorMessage = ""
	s.mu.Unlock()
	s.notify()

	stats, err := s.eval.Run(ctx, systemPrompt, testCases, model)

	s.mu.Lock()
	s.isRunning = false

	if err != nil {
		metrics.StoreActionsTotal.WithLabelValues("run", "error").Inc()
		s.errorMessage = "Evaluation failed: " + err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}

	if s.active == nil || s.active.ID != datasetID {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	run := &models.Run{
		ID:              s.ids.GenerateRunID(),
		PromptVersionID: versionID,
		ModelName:       model,
		CreatedAt:       s.clock.Now(),
		Stats:           *stats,
	}
	s.active.Runs = append(s.active.Runs, run)
	s.activeTab = TabResults
	s.persist.Schedule()

	metrics.StoreActionsTotal.WithLabelValues("run", "ok").Inc()
	s.mu.Unlock()
	s.notify()
	return nil
}

// OptimizePrompt requests a refined prompt derived from the failures
// in the latest run of the active version. On success it creates an
// optimized version parented to the previously active one, replaces
// the test cases with the returned train/test partitions (each case
// stamped with its split), and makes the new version active.
func (s *Store) OptimizePrompt(ctx context.Context) error {
	s.mu.Lock()
	if s.isOptimizing {
		s.mu.Unlock()
		return nil
	}

	if s.active == nil {
		s.errorMessage = msgNoTestCases
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrInvalidInput, msgNoTestCases)
	}
	version := s.active.ActivePromptVersion()
	if version == nil {
		s.errorMessage = msgNoPrompt
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrNoActivePromptVersion, msgNoPrompt)
	}
	// The most recently appended run for the active version is the
	// optimization basis.
	basis := s.active.LatestRunForVersion(version.ID)
	if basis == nil {
		s.errorMessage = msgNoEligibleRun
		s.mu.Unlock()
		s.notify()
		return domain.NewDomainError(domain.ErrNoEligibleRun, msgNoEligibleRun)
	}

	datasetID := s.active.ID
	parentID := version.ID
	req := ports.OptimizeRequest{
		CurrentPrompt: version.SystemPrompt,
		TestCases:     append([]*models.TestCase(nil), s.active.TestCases...),
		Results:       basis.Stats.Results,
		OptimizerType: s.optimizerType,
		ModelName:     s.modelName,
	}
	optimizerType := s.optimizerType

	s.isOptimizing = true
	s.errorMessage = ""
	s.mu.Unlock()
	s.notify()

	result, err := s.eval.Optimize(ctx, req)

	s.mu.Lock()
	s.isOptimizing = false

	if err != nil {
		metrics.StoreActionsTotal.WithLabelValues("optimize", "error").Inc()
		s.errorMessage = "Optimization failed: " + err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}

	if s.active == nil || s.active.ID != datasetID {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	newVersion := models.NewPromptVersion(
		s.ids.GeneratePromptVersionID(),
		s.active.NextVersionNumber(),
		result.OptimizedPrompt,
		models.SourceOptimized,
		s.clock.Now(),
	)
	newVersion.ParentVersionID = parentID
	newVersion.Notes = result.ModificationNotes
	newVersion.OptimizerType = optimizerType

	merged := make([]*models.TestCase, 0, len(result.TrainCases)+len(result.TestCases))
	for _, tc := range result.TrainCases {
		tc.Split = models.SplitTrain
		merged = append(merged, tc)
	}
	for _, tc := range result.TestCases {
		tc.Split = models.SplitTest
		merged = append(merged, tc)
	}

	s.active.PromptVersions = append(s.active.PromptVersions, newVersion)
	s.active.ActivePromptVersionID = newVersion.ID
	s.active.TestCases = merged
	s.active.IsSplit = true
	s.currentSystemPrompt = result.OptimizedPrompt
	s.persist.Schedule()

	metrics.StoreActionsTotal.WithLabelValues("optimize", "ok").Inc()
	s.mu.Unlock()
	s.notify()
	return nil
}
