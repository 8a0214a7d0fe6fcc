package reader

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/internal/connector"
)

// Helper function to create a test logger
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func newMockReader(t *testing.T) (*RowReader, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dc := &connector.DatabaseConnector{
		Role:    "source",
		Dialect: connector.DialectPostgres,
		DB:      db,
		Logger:  testLogger(),
	}
	return NewRowReader(dc, testLogger()), mock
}

func TestReadRowsProjection(t *testing.T) {
	rr, mock := newMockReader(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Alice").
			AddRow(2, "Bob"))

	rows, columns, err := rr.ReadRows("accounts", []string{"id", "name"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if len(columns) != 2 || columns[0] != "id" || columns[1] != "name" {
		t.Errorf("Unexpected result columns: %v", columns)
	}
	if len(rows[0]) != len(columns) {
		t.Errorf("Expected tuple length %d to match column count %d", len(rows[0]), len(columns))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestReadRowsQueryFailure(t *testing.T) {
	rr, mock := newMockReader(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM accounts")).
		WillReturnError(errors.New("connection reset"))

	rows, columns, err := rr.ReadRows("accounts", []string{"id"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if len(rows) != 0 || len(columns) != 0 {
		t.Errorf("Expected empty results on failure, got %d rows, %v columns", len(rows), columns)
	}
}

func TestReadRowsRejectsInvalidIdentifiers(t *testing.T) {
	rr, _ := newMockReader(t)

	if _, _, err := rr.ReadRows("accounts; --", []string{"id"}); err == nil {
		t.Error("Expected invalid table identifier to be rejected")
	}
	if _, _, err := rr.ReadRows("accounts", []string{"id", "na me"}); err == nil {
		t.Error("Expected invalid column identifier to be rejected")
	}
	if _, _, err := rr.ReadRows("accounts", nil); err == nil {
		t.Error("Expected empty projection to be rejected")
	}
}
