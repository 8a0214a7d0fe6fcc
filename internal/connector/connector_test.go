package connector

import (
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
)

// Helper function to create a test logger
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestNewDatabaseConnector(t *testing.T) {
	// Set environment variables for testing
	os.Setenv("SOURCE_DB_HOST", "test-host")
	os.Setenv("SOURCE_DB_USER", "test-user")
	os.Setenv("SOURCE_DB_PASSWORD", "test-password")
	os.Setenv("SOURCE_DB_NAME", "test-database")
	os.Setenv("SOURCE_DB_PORT", "5433")
	defer func() {
		for _, v := range []string{"SOURCE_DB_HOST", "SOURCE_DB_USER", "SOURCE_DB_PASSWORD", "SOURCE_DB_NAME", "SOURCE_DB_PORT"} {
			os.Unsetenv(v)
		}
	}()

	logger := testLogger()

	// Create a connector with all parameters empty
	db, err := NewDatabaseConnector("source", "SOURCE_DB", "", "", "", "", "", "", logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Check that environment variables were used
	if db.Host != "test-host" {
		t.Errorf("Expected host to be 'test-host', got '%s'", db.Host)
	}
	if db.User != "test-user" {
		t.Errorf("Expected user to be 'test-user', got '%s'", db.User)
	}
	if db.Password != "test-password" {
		t.Errorf("Expected password to be 'test-password', got '%s'", db.Password)
	}
	if db.Database != "test-database" {
		t.Errorf("Expected database to be 'test-database', got '%s'", db.Database)
	}
	if db.Port != "5433" {
		t.Errorf("Expected port to be '5433', got '%s'", db.Port)
	}
	if db.Dialect != DialectPostgres {
		t.Errorf("Expected default dialect to be postgres, got '%s'", db.Dialect)
	}

	// Test with explicit parameters
	db, err = NewDatabaseConnector("destination", "DEST_DB", "mysql", "explicit-host", "explicit-user", "explicit-password", "explicit-database", "3307", logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if db.Host != "explicit-host" {
		t.Errorf("Expected host to be 'explicit-host', got '%s'", db.Host)
	}
	if db.Dialect != DialectMySQL {
		t.Errorf("Expected dialect to be mysql, got '%s'", db.Dialect)
	}
	if db.Port != "3307" {
		t.Errorf("Expected port to be '3307', got '%s'", db.Port)
	}
}

func TestNewDatabaseConnectorDefaultPorts(t *testing.T) {
	logger := testLogger()

	pg, err := NewDatabaseConnector("source", "NO_SUCH_PREFIX", "postgres", "h", "u", "p", "d", "", logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pg.Port != "5432" {
		t.Errorf("Expected default postgres port 5432, got '%s'", pg.Port)
	}

	my, err := NewDatabaseConnector("source", "NO_SUCH_PREFIX", "mysql", "h", "u", "p", "d", "", logger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if my.Port != "3306" {
		t.Errorf("Expected default mysql port 3306, got '%s'", my.Port)
	}
}

func TestParseDialect(t *testing.T) {
	cases := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"", DialectPostgres, false},
		{"postgres", DialectPostgres, false},
		{"PostgreSQL", DialectPostgres, false},
		{"mysql", DialectMySQL, false},
		{"oracle", "", true},
	}

	for _, c := range cases {
		got, err := ParseDialect(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseDialect(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDialect(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDSN(t *testing.T) {
	pg := &DatabaseConnector{
		Dialect: DialectPostgres, Host: "db1", Port: "5432",
		User: "alice", Password: "secret", Database: "prod", SSLMode: "disable",
	}
	want := "host=db1 port=5432 user=alice password=secret dbname=prod sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("Postgres DSN = %q, want %q", got, want)
	}

	my := &DatabaseConnector{
		Dialect: DialectMySQL, Host: "db2", Port: "3306",
		User: "bob", Password: "hunter2", Database: "prod",
	}
	want = "bob:hunter2@tcp(db2:3306)/prod?parseTime=true"
	if got := my.DSN(); got != want {
		t.Errorf("MySQL DSN = %q, want %q", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	pg := &DatabaseConnector{Dialect: DialectPostgres}
	if got := pg.Placeholders(3); got != "$1, $2, $3" {
		t.Errorf("Postgres placeholders = %q", got)
	}
	if got := pg.Placeholder(4); got != "$4" {
		t.Errorf("Postgres placeholder = %q", got)
	}

	my := &DatabaseConnector{Dialect: DialectMySQL}
	if got := my.Placeholders(2); got != "?, ?" {
		t.Errorf("MySQL placeholders = %q", got)
	}
	if got := my.Placeholder(1); got != "?" {
		t.Errorf("MySQL placeholder = %q", got)
	}
}

func TestQueryRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	dc := &DatabaseConnector{Role: "source", Dialect: DialectPostgres, DB: db, Logger: testLogger()}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, []byte("Alice")).
			AddRow(2, nil))

	rows, columns, err := dc.QueryRows("SELECT id, name FROM accounts")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(columns) != 2 || columns[0] != "id" || columns[1] != "name" {
		t.Errorf("Unexpected columns: %v", columns)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Alice" {
		t.Errorf("Expected []byte value to be normalized to string, got %#v", rows[0][1])
	}
	if rows[1][1] != nil {
		t.Errorf("Expected nil cell to stay nil, got %#v", rows[1][1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteManyCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	dc := &DatabaseConnector{Role: "destination", Dialect: DialectPostgres, DB: db, Logger: testLogger()}
	query := "INSERT INTO accounts (id, name) VALUES ($1, $2)"

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(query))
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(1, "Alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(2, "Bob").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := dc.ExecuteMany(query, [][]interface{}{
		{1, "Alice"},
		{2, "Bob"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if affected != 2 {
		t.Errorf("Expected 2 affected rows, got %d", affected)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteManyRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	dc := &DatabaseConnector{Role: "destination", Dialect: DialectPostgres, DB: db, Logger: testLogger()}
	query := "INSERT INTO accounts (id, name) VALUES ($1, $2)"

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(query))
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(1, "Alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(2, "Bob").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err = dc.ExecuteMany(query, [][]interface{}{
		{1, "Alice"},
		{2, "Bob"},
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
