package testutil

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
)

// MockDB wraps sqlmock behind the transaction-aware database wrapper, so
// repositories under test run exactly the code they run in production.
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a new mock database for unit testing.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	defer mockDB.Close()
//
//	mockDB.ExpectOrgQuery(orgID, "SELECT ...", rows)
//	repo := repository.NewLicensePlateRepository(mockDB.DB)
func NewMockDB(t *testing.T) *MockDB {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	sqlxDB := sqlx.NewDb(db, "postgres")

	return &MockDB{
		DB:   database.NewWithDB(sqlxDB, logger.New("test", "test")),
		Mock: mock,
	}
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// ExpectQuery sets up an expected query
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// ExpectOrgScope sets up the transaction prologue of an org RLS scope:
// begin, SET LOCAL search_path, SET LOCAL app.current_org. Statements
// running inside the scope and the final commit are expected separately.
func (m *MockDB) ExpectOrgScope(orgID string) {
	m.Mock.ExpectBegin()
	m.Mock.ExpectExec(regexp.QuoteMeta("SET LOCAL search_path TO public")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	m.Mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("SET LOCAL app.current_org = '%s'", orgID))).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// ExpectOrgQuery sets up expectations for a single org-scoped query:
// the full RLS scope around one query.
func (m *MockDB) ExpectOrgQuery(orgID, query string, rows *sqlmock.Rows) {
	m.ExpectOrgScope(orgID)
	m.Mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(rows)
	m.Mock.ExpectCommit()
}

// ExpectOrgExec sets up expectations for a single org-scoped exec.
func (m *MockDB) ExpectOrgExec(orgID, query string, result driver.Result) {
	m.ExpectOrgScope(orgID)
	m.Mock.ExpectExec(regexp.QuoteMeta(query)).WillReturnResult(result)
	m.Mock.ExpectCommit()
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// AnyUUID is a matcher for any UUID string
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	matched, _ := regexp.MatchString(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, s)
	return matched
}
