package models

import "fmt"

// Column represents a database column as reported by the catalog
type Column struct {
	Name            string
	DataType        string
	OrdinalPosition int
	IsNullable      bool
}

// ForeignKey represents a foreign key relationship between two tables
type ForeignKey struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	ConstraintName   string
}

// TableHash is a content digest of a table at a point in time.
// An empty table has a valid digest with RowCount zero; an unreadable
// table has no TableHash at all (the hasher returns an error instead).
type TableHash struct {
	Digest   string
	RowCount int
}

// Equal reports whether two digests describe the same content
func (h *TableHash) Equal(other *TableHash) bool {
	if h == nil || other == nil {
		return false
	}
	return h.Digest == other.Digest
}

// SyncStatus is the terminal state of one table's reconciliation
type SyncStatus int

const (
	StatusUpToDate SyncStatus = iota
	StatusSynced
	StatusSkipped
	StatusFailed
)

// String returns a human-readable status name
func (s SyncStatus) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusSynced:
		return "synced"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SyncResult records the outcome of one table's reconciliation
type SyncResult struct {
	Table       string
	Status      SyncStatus
	RowsApplied int64
	Reason      string
}

// SchemaError reports a per-table schema condition that prevents an
// upsert (missing or composite primary key, key outside the shared
// column set). It is recoverable at the run level: the table is
// skipped or failed and the run continues.
type SchemaError struct {
	Table  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error on table %s: %s", e.Table, e.Reason)
}
