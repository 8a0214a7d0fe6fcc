package syncer

import (
	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/internal/hasher"
	"github.com/lfsantos/tablesync/internal/inspector"
	"github.com/lfsantos/tablesync/internal/reader"
	"github.com/lfsantos/tablesync/internal/utils"
	"github.com/lfsantos/tablesync/internal/writer"
	"github.com/lfsantos/tablesync/pkg/models"
)

// Options control optional orchestrator behavior
type Options struct {
	DryRun      bool // compare and report only, never write
	OrderByDeps bool // process parents before children per destination FKs
	Verify      bool // re-hash the common projection after each sync
}

// TableSyncer drives the per-table reconciliation workflow: hash both
// sides, compare, and on divergence copy the source's rows for the
// shared columns into the destination. Tables are processed strictly
// one at a time; one table's failure never stops the run.
type TableSyncer struct {
	Source          *connector.DatabaseConnector
	Dest            *connector.DatabaseConnector
	SourceInspector *inspector.SchemaInspector
	DestInspector   *inspector.SchemaInspector
	SourceHasher    *hasher.TableHasher
	DestHasher      *hasher.TableHasher
	Reader          *reader.RowReader
	Writer          *writer.UpsertWriter
	Options         Options
	Logger          *logrus.Logger
}

// NewTableSyncer wires the per-endpoint components around two open
// connections
func NewTableSyncer(source, dest *connector.DatabaseConnector, opts Options, logger *logrus.Logger) *TableSyncer {
	srcInspector := inspector.NewSchemaInspector(source, logger)
	dstInspector := inspector.NewSchemaInspector(dest, logger)

	return &TableSyncer{
		Source:          source,
		Dest:            dest,
		SourceInspector: srcInspector,
		DestInspector:   dstInspector,
		SourceHasher:    hasher.NewTableHasher(source, logger),
		DestHasher:      hasher.NewTableHasher(dest, logger),
		Reader:          reader.NewRowReader(source, logger),
		Writer:          writer.NewUpsertWriter(dest, dstInspector, logger),
		Options:         opts,
		Logger:          logger,
	}
}

// SyncAll reconciles every configured table and returns one result per
// table. The full list is always processed regardless of individual
// outcomes.
func (ts *TableSyncer) SyncAll(tables []string) []models.SyncResult {
	if ts.Options.OrderByDeps {
		tables = ts.orderTables(tables)
	}

	results := make([]models.SyncResult, 0, len(tables))
	for _, table := range tables {
		res := ts.syncTable(table)
		switch res.Status {
		case models.StatusUpToDate:
			ts.Logger.Infof("Table %s is already up to date", table)
		case models.StatusSynced:
			ts.Logger.Infof("Table %s synced (%d rows)", table, res.RowsApplied)
		case models.StatusSkipped:
			ts.Logger.Warningf("Table %s skipped: %s", table, res.Reason)
		case models.StatusFailed:
			ts.Logger.Errorf("Table %s failed: %s", table, res.Reason)
		}
		results = append(results, res)
	}

	return results
}

// syncTable runs one table through the compare/sync state machine
func (ts *TableSyncer) syncTable(table string) models.SyncResult {
	if !utils.ValidIdentifier(table) {
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "invalid table name"}
	}

	srcHash, err := ts.SourceHasher.HashTable(table)
	if err != nil {
		// An unreadable source is never treated as equal to anything
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "source table unreadable"}
	}

	dstHash, err := ts.DestHasher.HashTable(table)
	if err != nil {
		ts.Logger.Warningf("Destination hash unavailable for %s, syncing anyway: %v", table, err)
	} else {
		ts.Logger.Infof("Table %s: source hash=%s (%d rows), destination hash=%s (%d rows)",
			table, srcHash.Digest, srcHash.RowCount, dstHash.Digest, dstHash.RowCount)
		if srcHash.Equal(dstHash) {
			return models.SyncResult{Table: table, Status: models.StatusUpToDate}
		}
	}

	ts.Logger.Infof("Table %s differs, syncing...", table)

	if ts.Options.DryRun {
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "differs (dry run)"}
	}

	srcColumns := ts.SourceInspector.Columns(table)
	dstColumns := ts.DestInspector.Columns(table)
	common := commonColumns(srcColumns, dstColumns)
	if len(common) == 0 {
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "no common columns"}
	}
	ts.Logger.Debugf("Common columns for %s: %v", table, common)

	rows, resultColumns, err := ts.Reader.ReadRows(table, common)
	if err != nil {
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "source read failed"}
	}
	if len(rows) == 0 {
		return models.SyncResult{Table: table, Status: models.StatusSkipped, Reason: "source table empty"}
	}

	applied, err := ts.Writer.Upsert(table, rows, resultColumns)
	if err != nil {
		return models.SyncResult{Table: table, Status: models.StatusFailed, Reason: err.Error()}
	}

	result := models.SyncResult{Table: table, Status: models.StatusSynced, RowsApplied: applied}
	if ts.Options.Verify {
		if !ts.verifyConvergence(table, resultColumns) {
			result.Reason = "verification mismatch over common columns"
		}
	}
	return result
}

// verifyConvergence re-hashes both sides restricted to the synced
// columns and reports whether they now agree
func (ts *TableSyncer) verifyConvergence(table string, columns []string) bool {
	srcHash, err := ts.SourceHasher.HashColumns(table, columns)
	if err != nil {
		ts.Logger.Warningf("Verification of %s skipped, source projection unreadable: %v", table, err)
		return true
	}
	dstHash, err := ts.DestHasher.HashColumns(table, columns)
	if err != nil {
		ts.Logger.Warningf("Verification of %s skipped, destination projection unreadable: %v", table, err)
		return true
	}

	if srcHash.Equal(dstHash) {
		ts.Logger.Infof("Verified %s: both sides agree over %d columns", table, len(columns))
		return true
	}

	ts.Logger.Warningf("Verification of %s found diverging digests after sync (source=%s destination=%s)",
		table, srcHash.Digest, dstHash.Digest)
	return false
}

// orderTables sorts the configured tables so that destination FK
// parents precede their children. Cycles fall back to the configured
// order with a warning.
func (ts *TableSyncer) orderTables(tables []string) []string {
	fks, err := ts.DestInspector.ForeignKeys(tables)
	if err != nil {
		ts.Logger.Warningf("Could not order tables by dependencies: %v", err)
		return tables
	}
	if len(fks) == 0 {
		return tables
	}

	index := make(map[string]int, len(tables))
	for i, table := range tables {
		index[table] = i
	}

	g := graph.New(len(tables))
	for _, fk := range fks {
		child, okChild := index[fk.Table]
		parent, okParent := index[fk.ReferencedTable]
		if okChild && okParent && child != parent {
			g.Add(parent, child)
		}
	}

	order, ok := graph.TopSort(g)
	if !ok {
		ts.Logger.Warningf("Foreign key cycle among configured tables, keeping configured order")
		return tables
	}

	ordered := make([]string, 0, len(tables))
	for _, idx := range order {
		ordered = append(ordered, tables[idx])
	}
	ts.Logger.Debugf("Dependency order: %v", ordered)
	return ordered
}

// commonColumns intersects two column sets by name, preserving the
// source's column order
func commonColumns(source, dest []models.Column) []string {
	inDest := make(map[string]bool, len(dest))
	for _, col := range dest {
		inDest[col.Name] = true
	}

	var common []string
	for _, col := range source {
		if inDest[col.Name] {
			common = append(common, col.Name)
		}
	}
	return common
}
