package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo() (*DatasetRepository, *Memory) {
	store := NewMemory()
	return NewDatasetRepositoryWithClock(store, fixedClock{testNow}), store
}

func TestDatasetRepository_SaveAndGet(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	ds := models.NewDataset("ds_1", "Spam Judge", testNow.Add(-time.Hour))
	ds.Intent = "detect spam"

	if err := repo.Save(ctx, ds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !ds.UpdatedAt.Equal(testNow) {
		t.Errorf("Save should stamp UpdatedAt, got %v", ds.UpdatedAt)
	}

	got, err := repo.Get(ctx, "ds_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Spam Judge" || got.Intent != "detect spam" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestDatasetRepository_GetNotFound(t *testing.T) {
	repo, _ := newTestRepo()

	_, err := repo.Get(context.Background(), "ds_missing")
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestDatasetRepository_IndexUpsert(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	ds := models.NewDataset("ds_1", "First", testNow)
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatal(err)
	}

	// Saving again must replace the entry, not append a duplicate.
	ds.Name = "Renamed"
	ds.TestCases = append(ds.TestCases, models.NewTestCase("tc_1", "input", models.VerdictPass, ""))
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatal(err)
	}

	index, err := repo.ListIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(index) != 1 {
		t.Fatalf("expected 1 index entry, got %d", len(index))
	}
	if index[0].Name != "Renamed" || index[0].TestCaseCount != 1 {
		t.Errorf("index entry not refreshed: %+v", index[0])
	}
}

func TestDatasetRepository_Delete(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()

	a := models.NewDataset("ds_a", "A", testNow)
	b := models.NewDataset("ds_b", "B", testNow)
	if err := repo.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, b); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, "ds_a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.Get(ctx, "ds_a"); !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Errorf("expected deleted dataset to be gone, got %v", err)
	}

	index, err := repo.ListIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(index) != 1 || index[0].ID != "ds_b" {
		t.Errorf("expected only ds_b in index, got %+v", index)
	}

	if _, ok, _ := store.Get(ctx, datasetKey("ds_a")); ok {
		t.Error("blob for ds_a should be removed")
	}
}

func TestDatasetRepository_ListIndexEmpty(t *testing.T) {
	repo, _ := newTestRepo()

	index, err := repo.ListIndex(context.Background())
	if err != nil {
		t.Fatalf("ListIndex failed: %v", err)
	}
	if index == nil || len(index) != 0 {
		t.Errorf("expected empty non-nil index, got %#v", index)
	}
}
