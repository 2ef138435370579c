// Package kv implements the dataset repository over a durable
// string-keyed substrate: one index blob, one blob per dataset, and a
// migration marker, mirroring the layout the browser client kept in
// local storage.
package kv

// Current key layout.
const (
	IndexKey         = "judge:datasets:index"
	DatasetKeyPrefix = "judge:dataset:"
	MigrationKey     = "judge:migration:version"
)

// Legacy key layout, consumed and removed by the migrator.
const (
	LegacyIndexKey  = "judge-index"
	LegacyKeyPrefix = "judge:"
)

// MigrationVersion is the schema version this code writes. The
// migrator runs iff the stored marker differs.
const MigrationVersion = 1

func datasetKey(id string) string {
	return DatasetKeyPrefix + id
}

func legacyKey(id string) string {
	return LegacyKeyPrefix + id
}
