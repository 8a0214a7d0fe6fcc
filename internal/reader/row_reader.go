package reader

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/internal/utils"
)

// RowReader materializes source rows restricted to an explicit column
// projection. The columns reported by the result set travel with the
// rows so positional correspondence never depends on the caller's
// assumptions about driver column ordering.
type RowReader struct {
	DB     *connector.DatabaseConnector
	Logger *logrus.Logger
}

// NewRowReader creates a reader bound to one endpoint
func NewRowReader(db *connector.DatabaseConnector, logger *logrus.Logger) *RowReader {
	return &RowReader{
		DB:     db,
		Logger: logger,
	}
}

// ReadRows selects the given columns from a table and returns the
// materialized tuples plus the result-set column names. On failure it
// returns empty rows and columns; callers treat that as nothing to sync.
func (rr *RowReader) ReadRows(table string, columns []string) ([][]interface{}, []string, error) {
	if !utils.ValidIdentifier(table) {
		return nil, nil, fmt.Errorf("invalid table identifier: %q", table)
	}
	if err := utils.ValidIdentifiers(columns); err != nil {
		return nil, nil, err
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("no columns to read from table %s", table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	rr.Logger.Debugf("Reading from %s: %s", rr.DB.Role, query)

	rows, resultColumns, err := rr.DB.QueryRows(query)
	if err != nil {
		rr.Logger.Errorf("Failed to read rows from table %s: %v", table, err)
		return nil, nil, err
	}

	rr.Logger.Debugf("Read %d rows from %s", len(rows), table)
	return rows, resultColumns, nil
}
