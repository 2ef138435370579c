package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

// Schema creates the dataset table. The full aggregate lives in a
// jsonb document; the index columns are denormalized from it on every
// save so listing never loads full datasets.
const Schema = `
CREATE TABLE IF NOT EXISTS judge_datasets (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	test_case_count      INT NOT NULL DEFAULT 0,
	prompt_version_count INT NOT NULL DEFAULT 0,
	best_accuracy        DOUBLE PRECISION,
	doc                  JSONB NOT NULL
);
`

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type DatasetRepository struct {
	BaseRepository
	clock ports.Clock
}

func NewDatasetRepository(pool *pgxpool.Pool) *DatasetRepository {
	return &DatasetRepository{BaseRepository: NewBaseRepository(pool), clock: realClock{}}
}

func NewDatasetRepositoryWithClock(pool *pgxpool.Pool, clock ports.Clock) *DatasetRepository {
	return &DatasetRepository{BaseRepository: NewBaseRepository(pool), clock: clock}
}

// EnsureSchema creates the table if missing.
func (r *DatasetRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, Schema)
	return err
}

func (r *DatasetRepository) ListIndex(ctx context.Context) ([]models.DatasetListItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, created_at, updated_at, test_case_count, prompt_version_count, best_accuracy
		FROM judge_datasets
		ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list dataset index: %w", err)
	}
	defer rows.Close()

	index := []models.DatasetListItem{}
	for rows.Next() {
		var item models.DatasetListItem
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.TestCaseCount,
			&item.PromptVersionCount,
			&item.BestAccuracy,
		); err != nil {
			return nil, fmt.Errorf("scan dataset index: %w", err)
		}
		index = append(index, item)
	}
	return index, rows.Err()
}

func (r *DatasetRepository) Get(ctx context.Context, id string) (*models.Dataset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT doc FROM judge_datasets WHERE id = $1`

	var doc []byte
	err := r.conn(ctx).QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}

	var dataset models.Dataset
	if err := json.Unmarshal(doc, &dataset); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", id, err)
	}
	return &dataset, nil
}

// Save upserts the document and the denormalized index columns in one
// statement, so a completed save is always consistent with its index
// entry.
func (r *DatasetRepository) Save(ctx context.Context, dataset *models.Dataset) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	dataset.UpdatedAt = r.clock.Now()

	doc, err := json.Marshal(dataset)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", dataset.ID, err)
	}
	item := dataset.ListItem()

	query := `
		INSERT INTO judge_datasets (
			id, name, created_at, updated_at, test_case_count, prompt_version_count, best_accuracy, doc
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at,
			test_case_count = EXCLUDED.test_case_count,
			prompt_version_count = EXCLUDED.prompt_version_count,
			best_accuracy = EXCLUDED.best_accuracy,
			doc = EXCLUDED.doc`

	_, err = r.conn(ctx).Exec(ctx, query,
		dataset.ID,
		dataset.Name,
		dataset.CreatedAt,
		dataset.UpdatedAt,
		item.TestCaseCount,
		item.PromptVersionCount,
		item.BestAccuracy,
		doc,
	)
	if err != nil {
		return fmt.Errorf("save dataset %s: %w", dataset.ID, err)
	}
	return nil
}

func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM judge_datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	return nil
}
