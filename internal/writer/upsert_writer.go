package writer

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/internal/inspector"
	"github.com/lfsantos/tablesync/internal/utils"
	"github.com/lfsantos/tablesync/pkg/models"
)

// UpsertWriter applies row batches to the destination with
// insert-or-update semantics keyed on the table's primary key. A whole
// table's batch runs in one transaction: any row failure rolls back
// everything, leaving the destination at its previous committed state.
type UpsertWriter struct {
	DB        *connector.DatabaseConnector
	Inspector *inspector.SchemaInspector
	Logger    *logrus.Logger
}

// NewUpsertWriter creates a writer bound to the destination endpoint
func NewUpsertWriter(db *connector.DatabaseConnector, si *inspector.SchemaInspector, logger *logrus.Logger) *UpsertWriter {
	return &UpsertWriter{
		DB:        db,
		Inspector: si,
		Logger:    logger,
	}
}

// Upsert writes rows into table, updating existing rows that share a
// primary key value and inserting the rest. The primary key is
// discovered at write time and must be part of the incoming columns.
// Rows absent from the batch are never deleted. Returns the number of
// rows applied.
func (uw *UpsertWriter) Upsert(table string, rows [][]interface{}, columns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if !utils.ValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table identifier: %q", table)
	}
	if err := utils.ValidIdentifiers(columns); err != nil {
		return 0, err
	}

	pk, err := uw.Inspector.PrimaryKey(table)
	if err != nil {
		return 0, err
	}

	pkIncluded := false
	for _, col := range columns {
		if col == pk {
			pkIncluded = true
			break
		}
	}
	if !pkIncluded {
		return 0, &models.SchemaError{Table: table, Reason: fmt.Sprintf("primary key %s is not among the synced columns", pk)}
	}

	query := uw.buildStatement(table, pk, columns)
	uw.Logger.Debugf("Upserting %d rows into %s (PK: %s)", len(rows), table, pk)

	paramsList := make([][]interface{}, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d of table %s has %d values for %d columns", i, table, len(row), len(columns))
		}
		paramsList = append(paramsList, row)
	}

	if _, err := uw.DB.ExecuteMany(query, paramsList); err != nil {
		return 0, fmt.Errorf("upsert into %s: %w", table, err)
	}

	// Drivers disagree on affected-row counts for upserts (MySQL
	// reports 2 per updated row), so the applied count is the batch size.
	return int64(len(rows)), nil
}

// buildStatement assembles the dialect-specific upsert. Non-key
// columns are fully replaced with incoming values; columns outside the
// batch are left untouched on existing rows.
func (uw *UpsertWriter) buildStatement(table, pk string, columns []string) string {
	var nonKey []string
	for _, col := range columns {
		if col != pk {
			nonKey = append(nonKey, col)
		}
	}

	columnList := strings.Join(columns, ", ")
	placeholders := uw.DB.Placeholders(len(columns))

	if uw.DB.Dialect == connector.DialectMySQL {
		var assignments []string
		for _, col := range nonKey {
			assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", col, col))
		}
		if len(assignments) == 0 {
			// Key-only table: nothing to update on conflict
			assignments = append(assignments, fmt.Sprintf("%s = %s", pk, pk))
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, columnList, placeholders, strings.Join(assignments, ", "))
	}

	if len(nonKey) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			table, columnList, placeholders, pk)
	}

	var assignments []string
	for _, col := range nonKey {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, columnList, placeholders, pk, strings.Join(assignments, ", "))
}
