package kv

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

func seedLegacyJudge(t *testing.T, store *Memory, judge models.LegacyJudge) {
	t.Helper()
	ctx := context.Background()

	blob, err := json.Marshal(judge)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, legacyKey(judge.ID), string(blob)); err != nil {
		t.Fatal(err)
	}

	raw, ok, err := store.Get(ctx, LegacyIndexKey)
	if err != nil {
		t.Fatal(err)
	}
	var index []models.LegacyIndexEntry
	if ok {
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			t.Fatal(err)
		}
	}
	index = append(index, models.LegacyIndexEntry{ID: judge.ID})
	blob, _ = json.Marshal(index)
	if err := store.Set(ctx, LegacyIndexKey, string(blob)); err != nil {
		t.Fatal(err)
	}
}

func TestMigrate_FreshInstall(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	raw, ok, _ := store.Get(ctx, MigrationKey)
	if !ok || raw != "1" {
		t.Errorf("expected marker \"1\", got %q (ok=%v)", raw, ok)
	}
}

func TestMigrate_ConvertsLegacyJudge(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	seedLegacyJudge(t, store, models.LegacyJudge{
		ID:           "j1",
		Name:         "Toxicity Judge",
		CreatedAt:    created,
		UpdatedAt:    updated,
		Intent:       "flag toxic replies",
		SystemPrompt: "You are a strict judge.",
		TestCases: []*models.TestCase{
			models.NewTestCase("tc_1", "some input", models.VerdictPass, "fine"),
		},
		RunStats: &models.RunStats{
			Total: 1, Passed: 1, Accuracy: 100,
			Results: []models.EvaluationResult{
				{TestCaseID: "tc_1", ActualVerdict: models.ActualPass, Correct: true},
			},
		},
		ModelName:     "gpt-4o",
		GenerateCount: 25,
		HasGenerated:  true,
	})

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	repo := NewDatasetRepositoryWithClock(store, fixedClock{testNow})
	ds, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("converted dataset not readable: %v", err)
	}

	if ds.Name != "Toxicity Judge" || ds.Intent != "flag toxic replies" {
		t.Errorf("identity not carried over: %+v", ds)
	}
	if ds.GenerateCount != 25 || !ds.HasGenerated {
		t.Errorf("settings not carried over: %+v", ds)
	}

	if len(ds.PromptVersions) != 1 {
		t.Fatalf("expected 1 synthesized version, got %d", len(ds.PromptVersions))
	}
	v := ds.PromptVersions[0]
	if v.Version != 1 || v.SystemPrompt != "You are a strict judge." {
		t.Errorf("unexpected version: %+v", v)
	}
	if v.Source != models.SourceGenerated {
		t.Errorf("HasGenerated judge should yield a generated version, got %s", v.Source)
	}
	if !v.CreatedAt.Equal(created) {
		t.Errorf("version should inherit judge CreatedAt, got %v", v.CreatedAt)
	}
	if ds.ActivePromptVersionID != v.ID {
		t.Error("synthesized version should be active")
	}

	if len(ds.Runs) != 1 {
		t.Fatalf("expected 1 synthesized run, got %d", len(ds.Runs))
	}
	run := ds.Runs[0]
	if run.PromptVersionID != v.ID || run.ModelName != "gpt-4o" {
		t.Errorf("unexpected run: %+v", run)
	}
	if !run.CreatedAt.Equal(updated) {
		t.Errorf("run should inherit judge UpdatedAt, got %v", run.CreatedAt)
	}
	if run.Stats.Accuracy != 100 {
		t.Errorf("stats not carried over: %+v", run.Stats)
	}

	// Legacy keys are consumed.
	if _, ok, _ := store.Get(ctx, legacyKey("j1")); ok {
		t.Error("legacy record should be deleted")
	}
	if _, ok, _ := store.Get(ctx, LegacyIndexKey); ok {
		t.Error("legacy index should be deleted")
	}

	index, err := repo.ListIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(index) != 1 || index[0].ID != "j1" {
		t.Errorf("unexpected index: %+v", index)
	}
}

func TestMigrate_JudgeWithoutPrompt(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	seedLegacyJudge(t, store, models.LegacyJudge{
		ID:        "j2",
		Name:      "Draft",
		CreatedAt: testNow,
		UpdatedAt: testNow,
		Intent:    "unfinished",
		// RunStats present, but without a prompt there is no version
		// to attribute the run to.
		RunStats: &models.RunStats{Total: 2, Passed: 1, Failed: 1, Accuracy: 50},
	})

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	repo := NewDatasetRepositoryWithClock(store, fixedClock{testNow})
	ds, err := repo.Get(ctx, "j2")
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.PromptVersions) != 0 || len(ds.Runs) != 0 {
		t.Errorf("expected no versions or runs, got %d/%d", len(ds.PromptVersions), len(ds.Runs))
	}
	if ds.ActivePromptVersionID != "" {
		t.Error("expected no active version")
	}
}

func TestMigrate_SkipsMalformedRecord(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	seedLegacyJudge(t, store, models.LegacyJudge{
		ID: "j_good", Name: "Good", CreatedAt: testNow, UpdatedAt: testNow,
	})

	// Corrupt record plus its index entry.
	if err := store.Set(ctx, legacyKey("j_bad"), "{not json"); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := store.Get(ctx, LegacyIndexKey)
	var index []models.LegacyIndexEntry
	_ = json.Unmarshal([]byte(raw), &index)
	index = append(index, models.LegacyIndexEntry{ID: "j_bad"})
	blob, _ := json.Marshal(index)
	_ = store.Set(ctx, LegacyIndexKey, string(blob))

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatalf("Migrate should not fail on a malformed record: %v", err)
	}

	repo := NewDatasetRepositoryWithClock(store, fixedClock{testNow})
	if _, err := repo.Get(ctx, "j_good"); err != nil {
		t.Errorf("good record should be converted: %v", err)
	}

	idx, err := repo.ListIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 1 || idx[0].ID != "j_good" {
		t.Errorf("malformed record should be excluded from index: %+v", idx)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	seedLegacyJudge(t, store, models.LegacyJudge{
		ID: "j1", Name: "Once", CreatedAt: testNow, UpdatedAt: testNow,
		SystemPrompt: "prompt", RunStats: &models.RunStats{Total: 1, Passed: 1, Accuracy: 100},
	})

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatal(err)
	}
	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatal(err)
	}

	repo := NewDatasetRepositoryWithClock(store, fixedClock{testNow})
	ds, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.PromptVersions) != 1 || len(ds.Runs) != 1 {
		t.Errorf("second run must not duplicate: versions=%d runs=%d",
			len(ds.PromptVersions), len(ds.Runs))
	}
}

func TestMigrate_InvalidMarkerRerunsSafely(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Set(ctx, MigrationKey, "garbage"); err != nil {
		t.Fatal(err)
	}

	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	raw, ok, _ := store.Get(ctx, MigrationKey)
	if !ok || raw != "1" {
		t.Errorf("expected marker rewritten to \"1\", got %q", raw)
	}
}

func TestMigrate_PreservesCurrentData(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	repo := NewDatasetRepositoryWithClock(store, fixedClock{testNow})
	ds := models.NewDataset("ds_1", "Existing", testNow)
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatal(err)
	}

	// A second process startup runs Migrate again.
	if err := Migrate(ctx, store, fixedClock{testNow}); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(ctx, "ds_1"); err != nil {
		t.Errorf("current-format data must survive migration: %v", err)
	}
}
