package ports

import (
	"context"
	"time"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

// DatasetRepository defines operations for dataset persistence. It is
// the sole abstraction between the training store and the durable
// substrate; swapping the implementation must not change store
// behavior.
//
// Save is an upsert: it writes the full record and updates the
// corresponding index entry, recomputing denormalized fields. Delete
// removes both the record and its index entry. Get returns
// domain.ErrDatasetNotFound for unknown ids. All operations are safe
// to call with no prior initialization, and none may partially apply:
// a consumer observing a completed Save must find a consistent index
// entry.
type DatasetRepository interface {
	ListIndex(ctx context.Context) ([]models.DatasetListItem, error)
	Get(ctx context.Context, id string) (*models.Dataset, error)
	Save(ctx context.Context, dataset *models.Dataset) error
	Delete(ctx context.Context, id string) error
}

// KeyValue is a durable string-keyed store. Get reports presence
// explicitly so callers can distinguish "absent" from "empty".
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// IDGenerator defines the interface for generating entity IDs
type IDGenerator interface {
	// GenerateDatasetID generates a new dataset ID (ds_xxx)
	GenerateDatasetID() string

	// GeneratePromptVersionID generates a new prompt version ID (pv_xxx)
	GeneratePromptVersionID() string

	// GenerateRunID generates a new run ID (run_xxx)
	GenerateRunID() string

	// GenerateTestCaseID generates a new test case ID (tc_xxx)
	GenerateTestCaseID() string
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
