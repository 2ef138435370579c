package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// DatasetRepository implements ports.DatasetRepository over a KeyValue
// substrate: one index blob plus one blob per dataset. Migration from
// the legacy layout runs before the first read or write.
type DatasetRepository struct {
	store ports.KeyValue
	clock ports.Clock

	migrateOnce sync.Once
	migrateErr  error
}

func NewDatasetRepository(store ports.KeyValue) *DatasetRepository {
	return &DatasetRepository{store: store, clock: realClock{}}
}

// NewDatasetRepositoryWithClock injects a clock for deterministic tests.
func NewDatasetRepositoryWithClock(store ports.KeyValue, clock ports.Clock) *DatasetRepository {
	return &DatasetRepository{store: store, clock: clock}
}

// ensureMigrated runs the schema migration at most once per process.
// The persisted marker makes it a no-op across restarts.
func (r *DatasetRepository) ensureMigrated(ctx context.Context) error {
	r.migrateOnce.Do(func() {
		r.migrateErr = Migrate(ctx, r.store, r.clock)
	})
	return r.migrateErr
}

func (r *DatasetRepository) ListIndex(ctx context.Context) ([]models.DatasetListItem, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return nil, err
	}
	return r.readIndex(ctx)
}

func (r *DatasetRepository) Get(ctx context.Context, id string) (*models.Dataset, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return nil, err
	}

	raw, ok, err := r.store.Get(ctx, datasetKey(id))
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	if !ok {
		return nil, domain.ErrDatasetNotFound
	}

	var dataset models.Dataset
	if err := json.Unmarshal([]byte(raw), &dataset); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", id, err)
	}
	return &dataset, nil
}

func (r *DatasetRepository) Save(ctx context.Context, dataset *models.Dataset) error {
	if err := r.ensureMigrated(ctx); err != nil {
		return err
	}

	dataset.UpdatedAt = r.clock.Now()

	raw, err := json.Marshal(dataset)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", dataset.ID, err)
	}
	if err := r.store.Set(ctx, datasetKey(dataset.ID), string(raw)); err != nil {
		return fmt.Errorf("write dataset %s: %w", dataset.ID, err)
	}

	return r.upsertIndexEntry(ctx, dataset.ListItem())
}

func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	if err := r.ensureMigrated(ctx); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, datasetKey(id)); err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}

	index, err := r.readIndex(ctx)
	if err != nil {
		return err
	}
	filtered := index[:0]
	for _, item := range index {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	return r.writeIndex(ctx, filtered)
}

func (r *DatasetRepository) readIndex(ctx context.Context) ([]models.DatasetListItem, error) {
	raw, ok, err := r.store.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if !ok {
		return []models.DatasetListItem{}, nil
	}

	var index []models.DatasetListItem
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return index, nil
}

func (r *DatasetRepository) writeIndex(ctx context.Context, index []models.DatasetListItem) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := r.store.Set(ctx, IndexKey, string(raw)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// upsertIndexEntry replaces the entry matching item.ID or appends it,
// keeping exactly one entry per dataset.
func (r *DatasetRepository) upsertIndexEntry(ctx context.Context, item models.DatasetListItem) error {
	index, err := r.readIndex(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range index {
		if index[i].ID == item.ID {
			index[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, item)
	}
	return r.writeIndex(ctx, index)
}
