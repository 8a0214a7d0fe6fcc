package connector

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Dialect identifies the SQL flavor of an endpoint
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect validates a dialect name from configuration
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s", s)
	}
}

// DatabaseConnector handles database connection and query execution
// for one endpoint of a sync run
type DatabaseConnector struct {
	Role     string // "source" or "destination", used in log lines only
	Dialect  Dialect
	Host     string
	User     string
	Password string
	Database string
	Port     string
	SSLMode  string
	DB       *sql.DB
	Logger   *logrus.Logger
}

// NewDatabaseConnector creates a connector for one endpoint. Empty
// parameters fall back to <envPrefix>_HOST, <envPrefix>_USER,
// <envPrefix>_PASSWORD, <envPrefix>_NAME, <envPrefix>_PORT and
// <envPrefix>_DIALECT environment variables.
func NewDatabaseConnector(role, envPrefix, dialect, host, user, password, database, port string, logger *logrus.Logger) (*DatabaseConnector, error) {
	if dialect == "" {
		dialect = os.Getenv(envPrefix + "_DIALECT")
	}
	d, err := ParseDialect(dialect)
	if err != nil {
		return nil, err
	}

	if host == "" {
		host = getEnvOrDefault(envPrefix+"_HOST", "localhost")
	}
	if user == "" {
		user = os.Getenv(envPrefix + "_USER")
	}
	if password == "" {
		password = os.Getenv(envPrefix + "_PASSWORD")
	}
	if database == "" {
		database = os.Getenv(envPrefix + "_NAME")
	}
	if port == "" {
		defaultPort := "5432"
		if d == DialectMySQL {
			defaultPort = "3306"
		}
		port = getEnvOrDefault(envPrefix+"_PORT", defaultPort)
	}

	return &DatabaseConnector{
		Role:     role,
		Dialect:  d,
		Host:     host,
		User:     user,
		Password: password,
		Database: database,
		Port:     port,
		SSLMode:  getEnvOrDefault(envPrefix+"_SSLMODE", "disable"),
		Logger:   logger,
	}, nil
}

// DSN builds the driver connection string for the endpoint's dialect
func (dc *DatabaseConnector) DSN() string {
	switch dc.Dialect {
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", dc.User, dc.Password, dc.Host, dc.Port, dc.Database)
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.User, dc.Password, dc.Database, dc.SSLMode)
	}
}

// DriverName returns the database/sql driver name for the dialect
func (dc *DatabaseConnector) DriverName() string {
	if dc.Dialect == DialectMySQL {
		return "mysql"
	}
	return "postgres"
}

// Connect establishes and verifies the database connection
func (dc *DatabaseConnector) Connect() error {
	if dc.Database == "" {
		return fmt.Errorf("%s database name must be provided either as an argument or via environment", dc.Role)
	}

	db, err := sql.Open(dc.DriverName(), dc.DSN())
	if err != nil {
		dc.Logger.Errorf("Error connecting to %s database: %v", dc.Role, err)
		return err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		dc.Logger.Errorf("Error pinging %s database: %v", dc.Role, err)
		return err
	}

	dc.DB = db
	dc.Logger.Infof("Connected to %s database %s at %s:%s (%s)", dc.Role, dc.Database, dc.Host, dc.Port, dc.Dialect)
	return nil
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB != nil {
		if err := dc.DB.Close(); err != nil {
			dc.Logger.Errorf("Error closing %s connection: %v", dc.Role, err)
		} else {
			dc.Logger.Infof("Closed %s connection", dc.Role)
		}
	}
}

// ExecuteQuery executes a SQL query and returns the results as maps
// keyed by column name
func (dc *DatabaseConnector) ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error) {
	rows, err := dc.DB.Query(query, params...)
	if err != nil {
		dc.Logger.Debugf("Error executing query on %s: %v", dc.Role, err)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// QueryRows executes a SQL query and returns positional row tuples
// together with the column names reported by the result set
func (dc *DatabaseConnector) QueryRows(query string, params ...interface{}) ([][]interface{}, []string, error) {
	rows, err := dc.DB.Query(query, params...)
	if err != nil {
		dc.Logger.Debugf("Error executing query on %s: %v", dc.Role, err)
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var results [][]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}

		row := make([]interface{}, len(columns))
		for i, val := range values {
			row[i] = normalizeValue(val)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return results, columns, nil
}

// ExecuteMany executes a SQL statement once per parameter set inside a
// single transaction. Any failure rolls the whole batch back.
func (dc *DatabaseConnector) ExecuteMany(query string, paramsList [][]interface{}) (int64, error) {
	tx, err := dc.DB.Begin()
	if err != nil {
		dc.Logger.Errorf("Error starting transaction on %s: %v", dc.Role, err)
		return 0, err
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		dc.Logger.Errorf("Error preparing statement on %s: %v", dc.Role, err)
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var total int64

	for _, params := range paramsList {
		result, err := stmt.Exec(params...)
		if err != nil {
			dc.Logger.Errorf("Error executing batch statement on %s: %v", dc.Role, err)
			tx.Rollback()
			return 0, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, err
		}

		total += affected
	}

	if err := tx.Commit(); err != nil {
		dc.Logger.Errorf("Error committing transaction on %s: %v", dc.Role, err)
		tx.Rollback()
		return 0, err
	}

	return total, nil
}

// Placeholders returns n bind-parameter markers in the endpoint's
// dialect, e.g. "$1, $2, $3" or "?, ?, ?"
func (dc *DatabaseConnector) Placeholders(n int) string {
	markers := make([]string, n)
	for i := range markers {
		markers[i] = dc.Placeholder(i + 1)
	}
	return strings.Join(markers, ", ")
}

// Placeholder returns the bind marker for one parameter at position i (1-based)
func (dc *DatabaseConnector) Placeholder(i int) string {
	if dc.Dialect == DialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// normalizeValue converts driver values to comparable Go types.
// Text columns arrive as []byte from both drivers.
func normalizeValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case time.Time:
		return v
	default:
		return val
	}
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
