package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/id"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
)

// upgrades maps a stored schema version to the routine that brings the
// substrate to version+1. Adding a schema version means adding one
// entry here and bumping MigrationVersion.
var upgrades = map[int]func(ctx context.Context, store ports.KeyValue, clock ports.Clock) error{
	0: upgradeLegacyJudges,
}

// Migrate brings the substrate to MigrationVersion. It is idempotent:
// the persisted marker prevents re-entry, and legacy keys are deleted
// as each record is consumed, so an interrupted migration leaves
// already-converted records converted but never duplicated. This is an
// at-least-once, never-twice guarantee per record, not a transactional
// guarantee across the batch.
func Migrate(ctx context.Context, store ports.KeyValue, clock ports.Clock) error {
	stored, err := storedVersion(ctx, store)
	if err != nil {
		return domain.NewDomainError(err, "reading migration marker")
	}

	for v := stored; v < MigrationVersion; v++ {
		upgrade, ok := upgrades[v]
		if !ok {
			return domain.NewDomainError(domain.ErrMigrationFailed,
				fmt.Sprintf("no upgrade from schema version %d", v))
		}
		if err := upgrade(ctx, store, clock); err != nil {
			return domain.NewDomainError(err, fmt.Sprintf("upgrading schema from version %d", v))
		}
		if err := store.Set(ctx, MigrationKey, strconv.Itoa(v+1)); err != nil {
			return domain.NewDomainError(err, "stamping migration marker")
		}
	}
	return nil
}

func storedVersion(ctx context.Context, store ports.KeyValue) (int, error) {
	raw, ok, err := store.Get(ctx, MigrationKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Unparseable marker: treat as unmigrated rather than failing
		// every subsequent read.
		log.Printf("migration: invalid marker %q, re-running migration", raw)
		return 0, nil
	}
	return v, nil
}

// upgradeLegacyJudges converts every legacy judge record into a
// dataset and rewrites the index. Fresh installs have no legacy index
// and short-circuit to stamping the marker.
func upgradeLegacyJudges(ctx context.Context, store ports.KeyValue, clock ports.Clock) error {
	raw, ok, err := store.Get(ctx, LegacyIndexKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var legacyIndex []models.LegacyIndexEntry
	if err := json.Unmarshal([]byte(raw), &legacyIndex); err != nil {
		log.Printf("migration: legacy index unreadable, abandoning legacy data: %v", err)
		return store.Delete(ctx, LegacyIndexKey)
	}

	idGen := id.New()
	newIndex := []models.DatasetListItem{}

	for _, entry := range legacyIndex {
		dataset, err := convertLegacyRecord(ctx, store, idGen, entry.ID)
		if err != nil {
			// Per-record failures are skipped so one malformed judge
			// does not block the batch.
			log.Printf("migration: skipping judge %s: %v", entry.ID, err)
			continue
		}
		if dataset == nil {
			continue // already migrated or absent
		}

		blob, err := json.Marshal(dataset)
		if err != nil {
			log.Printf("migration: skipping judge %s: %v", entry.ID, err)
			continue
		}
		if err := store.Set(ctx, datasetKey(dataset.ID), string(blob)); err != nil {
			return err
		}
		newIndex = append(newIndex, dataset.ListItem())

		// Consume the legacy record so a re-run never duplicates it.
		if err := store.Delete(ctx, legacyKey(entry.ID)); err != nil {
			return err
		}
	}

	indexBlob, err := json.Marshal(newIndex)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, IndexKey, string(indexBlob)); err != nil {
		return err
	}
	return store.Delete(ctx, LegacyIndexKey)
}

func convertLegacyRecord(ctx context.Context, store ports.KeyValue, idGen ports.IDGenerator, judgeID string) (*models.Dataset, error) {
	raw, ok, err := store.Get(ctx, legacyKey(judgeID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var judge models.LegacyJudge
	if err := json.Unmarshal([]byte(raw), &judge); err != nil {
		return nil, fmt.Errorf("decode legacy record: %w", err)
	}

	dataset := &models.Dataset{
		ID:             judge.ID,
		Name:           judge.Name,
		CreatedAt:      judge.CreatedAt,
		UpdatedAt:      judge.UpdatedAt,
		Intent:         judge.Intent,
		TestCases:      judge.TestCases,
		PromptVersions: []*models.PromptVersion{},
		Runs:           []*models.Run{},
		GenerateCount:  judge.GenerateCount,
		HasGenerated:   judge.HasGenerated,
		IsSplit:        judge.IsSplit,
	}
	if dataset.TestCases == nil {
		dataset.TestCases = []*models.TestCase{}
	}

	if judge.SystemPrompt != "" {
		source := models.SourceManual
		if judge.HasGenerated {
			source = models.SourceGenerated
		}
		version := models.NewPromptVersion(idGen.GeneratePromptVersionID(), 1, judge.SystemPrompt, source, judge.CreatedAt)
		dataset.PromptVersions = append(dataset.PromptVersions, version)
		dataset.ActivePromptVersionID = version.ID
	}

	if judge.RunStats != nil && dataset.ActivePromptVersionID != "" {
		dataset.Runs = append(dataset.Runs, &models.Run{
			ID:              idGen.GenerateRunID(),
			PromptVersionID: dataset.ActivePromptVersionID,
			ModelName:       judge.ModelName,
			CreatedAt:       judge.UpdatedAt,
			Stats:           *judge.RunStats,
		})
	}

	return dataset, nil
}
