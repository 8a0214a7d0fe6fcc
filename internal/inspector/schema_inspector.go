package inspector

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/pkg/models"
)

// SchemaInspector answers catalog questions about one endpoint: ordered
// column lists, the primary key used as the upsert conflict target, and
// foreign key edges between the configured tables.
type SchemaInspector struct {
	DB     *connector.DatabaseConnector
	Logger *logrus.Logger
}

// NewSchemaInspector creates a schema inspector bound to one endpoint
func NewSchemaInspector(db *connector.DatabaseConnector, logger *logrus.Logger) *SchemaInspector {
	return &SchemaInspector{
		DB:     db,
		Logger: logger,
	}
}

// Columns returns the ordered columns for a table. Lookup failures
// (missing table, permission error) log a warning and return an empty
// list rather than an error.
func (si *SchemaInspector) Columns(table string) []models.Column {
	var (
		query  string
		params []interface{}
	)

	switch si.DB.Dialect {
	case connector.DialectMySQL:
		query = `
			SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = ?
			AND table_name = ?
			ORDER BY ordinal_position
		`
		params = []interface{}{si.DB.Database, table}
	default:
		query = `
			SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_name = $1
			AND table_schema = current_schema()
			ORDER BY ordinal_position
		`
		params = []interface{}{table}
	}

	result, err := si.DB.ExecuteQuery(query, params...)
	if err != nil {
		si.Logger.Warningf("Failed to retrieve columns for table %s on %s: %v", table, si.DB.Role, err)
		return nil
	}

	var columns []models.Column
	for i, row := range result {
		columns = append(columns, models.Column{
			Name:            asString(row["column_name"]),
			DataType:        asString(row["data_type"]),
			OrdinalPosition: i + 1,
			IsNullable:      strings.EqualFold(asString(row["is_nullable"]), "YES"),
		})
	}

	return columns
}

// PrimaryKey returns the single primary key column of a table. A table
// without a primary key, or with a composite one, yields a SchemaError:
// neither can serve as an upsert conflict target.
func (si *SchemaInspector) PrimaryKey(table string) (string, error) {
	var (
		query  string
		params []interface{}
	)

	switch si.DB.Dialect {
	case connector.DialectMySQL:
		query = `
			SELECT column_name
			FROM information_schema.key_column_usage
			WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
			ORDER BY ordinal_position
		`
		params = []interface{}{si.DB.Database, table}
	default:
		query = `
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			WHERE tc.table_name = $1
			AND tc.table_schema = current_schema()
			AND tc.constraint_type = 'PRIMARY KEY'
			ORDER BY kcu.ordinal_position
		`
		params = []interface{}{table}
	}

	result, err := si.DB.ExecuteQuery(query, params...)
	if err != nil {
		return "", fmt.Errorf("primary key lookup for %s: %w", table, err)
	}

	switch len(result) {
	case 0:
		return "", &models.SchemaError{Table: table, Reason: "no primary key for upsert"}
	case 1:
		return asString(result[0]["column_name"]), nil
	default:
		return "", &models.SchemaError{Table: table, Reason: fmt.Sprintf("composite primary key (%d columns) not supported for upsert", len(result))}
	}
}

// ForeignKeys returns the foreign key edges whose referencing and
// referenced tables are both in the given set
func (si *SchemaInspector) ForeignKeys(tables []string) ([]models.ForeignKey, error) {
	var (
		query  string
		params []interface{}
	)

	switch si.DB.Dialect {
	case connector.DialectMySQL:
		query = `
			SELECT
				table_name,
				column_name,
				referenced_table_name,
				referenced_column_name,
				constraint_name
			FROM information_schema.key_column_usage
			WHERE table_schema = ?
			AND referenced_table_name IS NOT NULL
			ORDER BY table_name, column_name
		`
		params = []interface{}{si.DB.Database}
	default:
		query = `
			SELECT
				tc.table_name,
				kcu.column_name,
				ccu.table_name AS referenced_table_name,
				ccu.column_name AS referenced_column_name,
				tc.constraint_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			JOIN information_schema.constraint_column_usage ccu
			  ON tc.constraint_name = ccu.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()
			ORDER BY tc.table_name, kcu.column_name
		`
	}

	result, err := si.DB.ExecuteQuery(query, params...)
	if err != nil {
		return nil, fmt.Errorf("foreign key lookup: %w", err)
	}

	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	var fks []models.ForeignKey
	for _, row := range result {
		fk := models.ForeignKey{
			Table:            asString(row["table_name"]),
			Column:           asString(row["column_name"]),
			ReferencedTable:  asString(row["referenced_table_name"]),
			ReferencedColumn: asString(row["referenced_column_name"]),
			ConstraintName:   asString(row["constraint_name"]),
		}
		if inSet[fk.Table] && inSet[fk.ReferencedTable] {
			fks = append(fks, fk)
		}
	}

	return fks, nil
}

// asString converts a catalog value to a string. Drivers report
// information_schema text as either string or []byte.
func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
