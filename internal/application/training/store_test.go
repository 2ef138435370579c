package training

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/kv"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

// MockEvalService is a mock implementation of ports.EvalService
type MockEvalService struct {
	mock.Mock
}

func (m *MockEvalService) Generate(ctx context.Context, intent string, count int, modelName string) (*ports.GenerateResult, error) {
	args := m.Called(ctx, intent, count, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.GenerateResult), args.Error(1)
}

func (m *MockEvalService) Run(ctx context.Context, systemPrompt string, testCases []*models.TestCase, modelName string) (*models.RunStats, error) {
	args := m.Called(ctx, systemPrompt, testCases, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunStats), args.Error(1)
}

func (m *MockEvalService) Optimize(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.OptimizeResult), args.Error(1)
}

func (m *MockEvalService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type seqIDGenerator struct {
	n atomic.Int64
}

func (g *seqIDGenerator) next(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, g.n.Add(1))
}

func (g *seqIDGenerator) GenerateDatasetID() string       { return g.next("ds") }
func (g *seqIDGenerator) GeneratePromptVersionID() string { return g.next("pv") }
func (g *seqIDGenerator) GenerateRunID() string           { return g.next("run") }
func (g *seqIDGenerator) GenerateTestCaseID() string      { return g.next("tc") }

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *MockEvalService, ports.DatasetRepository) {
	t.Helper()
	repo := kv.NewDatasetRepositoryWithClock(kv.NewMemory(), fixedClock{testNow})
	eval := new(MockEvalService)
	store := New(repo, eval, &seqIDGenerator{}, Options{
		DebounceInterval: time.Hour, // effectively disabled unless a test flushes
		Clock:            fixedClock{testNow},
	})
	return store, eval, repo
}

func TestGenerateTestCases_EmptyIntent(t *testing.T) {
	store, eval, _ := newTestStore(t)

	err := store.GenerateTestCases(context.Background())
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, "Please enter an intent first", snap.ErrorMessage)
	assert.Empty(t, snap.ActiveDatasetID, "no dataset should be created")
	eval.AssertNotCalled(t, "Generate")
}

func TestGenerateTestCases_CreatesDatasetAndVersion(t *testing.T) {
	store, eval, _ := newTestStore(t)

	generated := &ports.GenerateResult{
		SystemPrompt: "You are a spam judge.",
		TestCases: []*models.TestCase{
			models.NewTestCase("tc_a", "buy pills now", models.VerdictFail, "spam"),
			models.NewTestCase("tc_b", "see you at lunch", models.VerdictPass, "benign"),
		},
	}
	eval.On("Generate", mock.Anything, "detect spam", 50, "gpt-4o").Return(generated, nil)

	store.SetIntent("detect spam")
	err := store.GenerateTestCases(context.Background())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.NotEmpty(t, snap.ActiveDatasetID)
	assert.Equal(t, "detect spam", snap.DatasetName)
	assert.Len(t, snap.TestCases, 2)
	assert.True(t, snap.HasGenerated)
	assert.False(t, snap.IsSplit)
	assert.Equal(t, TabTestCases, snap.ActiveTab)
	assert.Equal(t, "You are a spam judge.", snap.CurrentSystemPrompt)

	require.Len(t, snap.PromptVersions, 1)
	v := snap.PromptVersions[0]
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, models.SourceGenerated, v.Source)
	assert.Equal(t, v.ID, snap.ActivePromptVersionID)
	assert.Empty(t, v.ParentVersionID, "generated version is a root")

	eval.AssertExpectations(t)
}

func TestGenerateTestCases_ClearsRunHistory(t *testing.T) {
	store, eval, _ := newTestStore(t)

	eval.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.GenerateResult{SystemPrompt: "p", TestCases: []*models.TestCase{}}, nil)
	eval.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.RunStats{Total: 1, Passed: 1, Accuracy: 100}, nil)

	store.SetIntent("judge things")
	require.NoError(t, store.GenerateTestCases(context.Background()))

	// Seed a case and run so there is history to clear.
	_, err := store.AddTestCase("input", models.VerdictPass, "")
	require.NoError(t, err)
	require.NoError(t, store.RunEvaluation(context.Background()))
	require.Len(t, store.Snapshot().Runs, 1)

	require.NoError(t, store.GenerateTestCases(context.Background()))

	snap := store.Snapshot()
	assert.Empty(t, snap.Runs, "regeneration must clear run history")
	assert.Len(t, snap.PromptVersions, 2, "old versions are kept")
	assert.Equal(t, 2, snap.PromptVersions[1].Version)
}

func TestGenerateTestCases_FailureSurfacesError(t *testing.T) {
	store, eval, _ := newTestStore(t)

	eval.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("service exploded"))

	store.SetIntent("judge things")
	err := store.GenerateTestCases(context.Background())
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Contains(t, snap.ErrorMessage, "Generation failed")
	assert.False(t, snap.IsGenerating)
	assert.Empty(t, snap.PromptVersions, "failed generation must not mutate the dataset")
}

func TestGenerateTestCases_LateResponseDiscarded(t *testing.T) {
	store, eval, _ := newTestStore(t)

	store.SetIntent("judge things")

	// Simulate the user deleting the dataset while the request is in
	// flight. The hook runs with the store lock released.
	eval.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			snap := store.Snapshot()
			require.NoError(t, store.DeleteDataset(context.Background(), snap.ActiveDatasetID))
		}).
		Return(&ports.GenerateResult{SystemPrompt: "stale", TestCases: []*models.TestCase{}}, nil)

	err := store.GenerateTestCases(context.Background())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Empty(t, snap.ActiveDatasetID, "stale response must not resurrect the dataset")
	assert.Empty(t, snap.PromptVersions)
	assert.False(t, snap.IsGenerating)
}

func TestRunEvaluation_RequiresTestCases(t *testing.T) {
	store, _, _ := newTestStore(t)

	err := store.RunEvaluation(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Please generate test cases first", store.Snapshot().ErrorMessage)
}

func TestRunEvaluation_RequiresActiveVersion(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.AddTestCase("input", models.VerdictPass, "")
	require.NoError(t, err)

	err = store.RunEvaluation(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Please generate or save a system prompt first", store.Snapshot().ErrorMessage)
}

func TestRunEvaluation_AppendsRun(t *testing.T) {
	store, eval, _ := newTestStore(t)

	stats := &models.RunStats{
		Total: 1, Passed: 1, Accuracy: 100,
		Results: []models.EvaluationResult{
			{TestCaseID: "tc_1", ActualVerdict: models.ActualPass, Correct: true},
		},
	}
	eval.On("Run", mock.Anything, "be strict", mock.Anything, "gpt-4o").Return(stats, nil).Twice()

	_, err := store.AddTestCase("input", models.VerdictPass, "")
	require.NoError(t, err)
	store.SetCurrentSystemPrompt("be strict")
	require.NoError(t, store.SavePromptVersion(""))

	require.NoError(t, store.RunEvaluation(context.Background()))
	require.NoError(t, store.RunEvaluation(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap.Runs, 2, "runs are append-only")
	assert.Equal(t, snap.ActivePromptVersionID, snap.Runs[0].PromptVersionID)
	assert.Equal(t, "gpt-4o", snap.Runs[0].ModelName)
	assert.Equal(t, TabResults, snap.ActiveTab)
	assert.NotEqual(t, snap.Runs[0].ID, snap.Runs[1].ID)
}

func TestOptimizePrompt_RequiresEligibleRun(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.AddTestCase("input", models.VerdictPass, "")
	require.NoError(t, err)
	store.SetCurrentSystemPrompt("v1 prompt")
	require.NoError(t, store.SavePromptVersion(""))

	err = store.OptimizePrompt(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Run an evaluation with the current prompt first", store.Snapshot().ErrorMessage)
}

func TestOptimizePrompt_CreatesChildVersionWithSplit(t *testing.T) {
	store, eval, _ := newTestStore(t)

	stats := &models.RunStats{Total: 1, Failed: 1, Results: []models.EvaluationResult{
		{TestCaseID: "tc_1", ActualVerdict: models.ActualFail, Correct: false},
	}}
	eval.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stats, nil)

	optimized := &ports.OptimizeResult{
		OptimizedPrompt:   "v2 prompt",
		ModificationNotes: "added failure examples",
		TrainCases: []*models.TestCase{
			models.NewTestCase("tc_t1", "train input", models.VerdictPass, ""),
		},
		TestCases: []*models.TestCase{
			models.NewTestCase("tc_h1", "holdout input", models.VerdictFail, ""),
		},
	}
	eval.On("Optimize", mock.Anything, mock.MatchedBy(func(req ports.OptimizeRequest) bool {
		return req.CurrentPrompt == "v1 prompt" &&
			req.OptimizerType == "bootstrap_fewshot" &&
			len(req.Results) == 1
	})).Return(optimized, nil)

	_, err := store.AddTestCase("input", models.VerdictPass, "")
	require.NoError(t, err)
	store.SetCurrentSystemPrompt("v1 prompt")
	require.NoError(t, store.SavePromptVersion(""))
	require.NoError(t, store.RunEvaluation(context.Background()))

	parentID := store.Snapshot().ActivePromptVersionID

	require.NoError(t, store.OptimizePrompt(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap.PromptVersions, 2)
	v := snap.PromptVersions[1]
	assert.Equal(t, models.SourceOptimized, v.Source)
	assert.Equal(t, parentID, v.ParentVersionID)
	assert.Equal(t, "added failure examples", v.Notes)
	assert.Equal(t, "bootstrap_fewshot", v.OptimizerType)
	assert.Equal(t, v.ID, snap.ActivePromptVersionID)
	assert.Equal(t, "v2 prompt", snap.CurrentSystemPrompt)

	assert.True(t, snap.IsSplit)
	require.Len(t, snap.TestCases, 2)
	assert.Equal(t, models.SplitTrain, snap.TestCases[0].Split)
	assert.Equal(t, models.SplitTest, snap.TestCases[1].Split)

	eval.AssertExpectations(t)
}

func TestSavePromptVersion(t *testing.T) {
	store, _, _ := newTestStore(t)

	err := store.SavePromptVersion("")
	require.Error(t, err, "empty prompt must be rejected")
	assert.Equal(t, "System prompt cannot be empty", store.Snapshot().ErrorMessage)

	store.SetCurrentSystemPrompt("first prompt")
	require.NoError(t, store.SavePromptVersion("initial"))

	store.SetCurrentSystemPrompt("second prompt")
	require.NoError(t, store.SavePromptVersion("tightened"))

	snap := store.Snapshot()
	require.Len(t, snap.PromptVersions, 2)
	first, second := snap.PromptVersions[0], snap.PromptVersions[1]
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, models.SourceManual, second.Source)
	assert.Equal(t, first.ID, second.ParentVersionID)
	assert.Equal(t, "tightened", second.Notes)
	assert.Equal(t, second.ID, snap.ActivePromptVersionID)
}

func TestSetActivePromptVersion(t *testing.T) {
	store, _, _ := newTestStore(t)

	store.SetCurrentSystemPrompt("first prompt")
	require.NoError(t, store.SavePromptVersion(""))
	firstID := store.Snapshot().ActivePromptVersionID

	store.SetCurrentSystemPrompt("second prompt")
	require.NoError(t, store.SavePromptVersion(""))

	require.NoError(t, store.SetActivePromptVersion(firstID))

	snap := store.Snapshot()
	assert.Equal(t, firstID, snap.ActivePromptVersionID)
	assert.Equal(t, "first prompt", snap.CurrentSystemPrompt)

	err := store.SetActivePromptVersion("pv_nope")
	assert.Error(t, err)
}

func TestTestCaseMutations(t *testing.T) {
	store, _, _ := newTestStore(t)

	tc, err := store.AddTestCase("original input", models.VerdictPass, "why")
	require.NoError(t, err)
	assert.False(t, tc.Verified)

	newInput := "edited input"
	verdict := models.VerdictFail
	require.NoError(t, store.UpdateTestCase(tc.ID, TestCasePatch{
		InputText:       &newInput,
		ExpectedVerdict: &verdict,
	}))

	snap := store.Snapshot()
	require.Len(t, snap.TestCases, 1)
	assert.Equal(t, "edited input", snap.TestCases[0].InputText)
	assert.Equal(t, models.VerdictFail, snap.TestCases[0].ExpectedVerdict)

	require.NoError(t, store.ToggleTestCaseVerified(tc.ID))
	assert.True(t, store.Snapshot().TestCases[0].Verified)

	require.NoError(t, store.RemoveTestCase(tc.ID))
	assert.Empty(t, store.Snapshot().TestCases)

	assert.Error(t, store.RemoveTestCase(tc.ID))
	assert.Error(t, store.UpdateTestCase("tc_nope", TestCasePatch{}))
}

func TestAddTestCase_RejectsInvalidVerdict(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.AddTestCase("input", models.Verdict("MAYBE"), "")
	require.Error(t, err)
	assert.Empty(t, store.Snapshot().ActiveDatasetID, "invalid input must not create a dataset")
}

func TestSelectDataset_SavesOutgoingEdits(t *testing.T) {
	store, _, repo := newTestStore(t)
	ctx := context.Background()

	firstID, err := store.CreateDataset(ctx, "First")
	require.NoError(t, err)
	secondID, err := store.CreateDataset(ctx, "Second")
	require.NoError(t, err)

	require.NoError(t, store.SelectDataset(ctx, firstID))
	store.SetIntent("edited while active")

	// The debounce has not fired; switching must save synchronously.
	require.NoError(t, store.SelectDataset(ctx, secondID))

	persisted, err := repo.Get(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "edited while active", persisted.Intent)

	snap := store.Snapshot()
	assert.Equal(t, secondID, snap.ActiveDatasetID)
	assert.Equal(t, TabTestCases, snap.ActiveTab)
}

func TestSelectDataset_ReconstitutesPrompt(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	firstID, err := store.CreateDataset(ctx, "First")
	require.NoError(t, err)
	store.SetCurrentSystemPrompt("saved prompt")
	require.NoError(t, store.SavePromptVersion(""))

	_, err = store.CreateDataset(ctx, "Second")
	require.NoError(t, err)
	assert.Empty(t, store.Snapshot().CurrentSystemPrompt)

	require.NoError(t, store.SelectDataset(ctx, firstID))
	assert.Equal(t, "saved prompt", store.Snapshot().CurrentSystemPrompt)
}

func TestDeleteDataset_ResetsActiveState(t *testing.T) {
	store, _, repo := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateDataset(ctx, "Doomed")
	require.NoError(t, err)
	store.SetIntent("something")
	store.SetCurrentSystemPrompt("a prompt")

	require.NoError(t, store.DeleteDataset(ctx, id))

	snap := store.Snapshot()
	assert.Empty(t, snap.ActiveDatasetID)
	assert.Empty(t, snap.Intent)
	assert.Empty(t, snap.CurrentSystemPrompt)
	assert.Equal(t, 50, snap.GenerateCount)
	assert.Empty(t, snap.Datasets)

	index, err := repo.ListIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestDeleteDataset_OtherDatasetKeepsActive(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	firstID, err := store.CreateDataset(ctx, "Keep")
	require.NoError(t, err)
	secondID, err := store.CreateDataset(ctx, "Drop")
	require.NoError(t, err)
	require.NoError(t, store.SelectDataset(ctx, firstID))

	require.NoError(t, store.DeleteDataset(ctx, secondID))

	snap := store.Snapshot()
	assert.Equal(t, firstID, snap.ActiveDatasetID)
	assert.Len(t, snap.Datasets, 1)
}

func TestLoad_SelectsMostRecentlyUpdated(t *testing.T) {
	substrate := kv.NewMemory()
	eval := new(MockEvalService)

	older := kv.NewDatasetRepositoryWithClock(substrate, fixedClock{testNow.Add(-time.Hour)})
	require.NoError(t, older.Save(context.Background(), models.NewDataset("ds_old", "Old", testNow.Add(-2*time.Hour))))
	newer := kv.NewDatasetRepositoryWithClock(substrate, fixedClock{testNow})
	require.NoError(t, newer.Save(context.Background(), models.NewDataset("ds_new", "New", testNow.Add(-time.Hour))))

	store := New(newer, eval, &seqIDGenerator{}, Options{
		DebounceInterval: time.Hour,
		Clock:            fixedClock{testNow},
	})
	require.NoError(t, store.Load(context.Background()))

	snap := store.Snapshot()
	assert.Equal(t, "ds_new", snap.ActiveDatasetID)
	assert.Len(t, snap.Datasets, 2)
}

func TestListDatasets_SortedByUpdate(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateDataset(ctx, "A")
	require.NoError(t, err)
	bID, err := store.CreateDataset(ctx, "B")
	require.NoError(t, err)

	items := store.ListDatasets()
	require.Len(t, items, 2)
	// Equal timestamps under the fixed clock keep insertion stability
	// irrelevant; just assert both are present and B is active.
	assert.Equal(t, bID, store.Snapshot().ActiveDatasetID)
}

func TestSubscribe_NotifiedOnMutation(t *testing.T) {
	store, _, _ := newTestStore(t)

	var calls atomic.Int32
	var last atomic.Value
	store.Subscribe(func(snap Snapshot) {
		calls.Add(1)
		last.Store(snap)
	})

	store.SetIntent("observed")

	assert.Equal(t, int32(1), calls.Load())
	snap := last.Load().(Snapshot)
	assert.Equal(t, "observed", snap.Intent)
}
