package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/actor"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Shared container across integration suites in a package. Starting one
// PostgreSQL per test run keeps the suites fast; org isolation keeps them
// independent.
var (
	sharedContainer *PostgresContainer
	sharedErr       error
	sharedOnce      sync.Once
)

// SharedPostgres returns the package-wide PostgreSQL container, starting it
// on first use.
func SharedPostgres(ctx context.Context) (*PostgresContainer, error) {
	sharedOnce.Do(func() {
		sharedContainer, sharedErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return sharedContainer, sharedErr
}

// IntegrationSuite is the base for integration tests running against a real
// PostgreSQL. Each test gets a fresh organization, so row-level security
// isolates tests from one another without truncation.
type IntegrationSuite struct {
	suite.Suite
	DB    *database.DB
	OrgID string
	Ctx   context.Context
}

// SetupSuite starts (or reuses) the container and creates the schema
func (s *IntegrationSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := SharedPostgres(ctx)
	s.Require().NoError(err, "failed to start postgres container")

	sqlxDB, err := container.Connect(ctx)
	s.Require().NoError(err, "failed to connect to test database")

	s.Require().NoError(container.CreateLedgerSchema(ctx, sqlxDB))

	s.DB = database.NewWithDB(sqlxDB, logger.New("test", "test"))
}

// SetupTest gives the test a fresh organization and acting user
func (s *IntegrationSuite) SetupTest() {
	s.OrgID = uuid.New().String()
	s.Ctx = NewOrgContext(s.OrgID)
}

// TearDownSuite closes the database connection. The shared container is left
// running for the next suite and reaped by testcontainers at process exit.
func (s *IntegrationSuite) TearDownSuite() {
	if s.DB != nil {
		s.DB.Close()
	}
}

// NewOrgContext returns a context carrying an organization and a test actor,
// the shape requests have after the identity middleware.
func NewOrgContext(orgID string) context.Context {
	ctx := org.WithOrgID(context.Background(), orgID)
	return actor.WithActor(ctx, &Actor{
		ID:    uuid.New().String(),
		Name:  "Test Operator",
		Email: "operator@test.local",
		OrgID: orgID,
	})
}

// Actor aliases the identity type so fixtures can build actors without an
// extra import.
type Actor = actor.Actor

// GetEnvOrDefault returns an environment variable or a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// IsCI reports whether tests run in a CI environment
func IsCI() bool {
	return os.Getenv("CI") != ""
}

// SkipIfShort skips the test when -short is set
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
}
