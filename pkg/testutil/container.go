// Package testutil provides testing utilities for the ledger service:
// testcontainers for PostgreSQL, sqlmock wrappers aware of the org RLS
// pattern, org context helpers and fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "ledger_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "ledger_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateLedgerSchema creates the ledger tables with their row-level security
// policies. FORCE ROW LEVEL SECURITY keeps the policies active for the table
// owner, which the test user is.
func (c *PostgresContainer) CreateLedgerSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS license_plates (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		lp_number VARCHAR(50) NOT NULL,
		product_id UUID NOT NULL,
		quantity NUMERIC(18,3) NOT NULL,
		uom VARCHAR(20) NOT NULL,
		batch_number VARCHAR(100),
		supplier_batch_number VARCHAR(100),
		expiry_date DATE,
		manufacture_date DATE,
		warehouse_id UUID NOT NULL,
		location_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'available',
		qa_status VARCHAR(20) NOT NULL DEFAULT 'passed',
		source VARCHAR(20) NOT NULL,
		source_order_number VARCHAR(50),
		goods_receipt_id UUID,
		work_order_id UUID,
		parent_lp_id UUID,
		catch_weight NUMERIC(18,3),
		blocked_reason VARCHAR(500),
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT quantity_non_negative CHECK (quantity >= 0),
		CONSTRAINT status_valid CHECK (status IN ('available', 'reserved', 'blocked', 'consumed')),
		CONSTRAINT qa_status_valid CHECK (qa_status IN ('pending', 'passed', 'failed', 'quarantine')),
		CONSTRAINT source_valid CHECK (source IN ('receipt', 'production', 'merge', 'transfer')),
		CONSTRAINT uq_license_plates_lp_number UNIQUE (org_id, lp_number)
	);
	CREATE INDEX IF NOT EXISTS idx_license_plates_allocation
		ON license_plates (org_id, product_id, status, qa_status);
	CREATE INDEX IF NOT EXISTS idx_license_plates_lp_number
		ON license_plates (org_id, lp_number text_pattern_ops);

	CREATE TABLE IF NOT EXISTS lp_sequences (
		org_id UUID NOT NULL,
		name VARCHAR(50) NOT NULL,
		value BIGINT NOT NULL,
		PRIMARY KEY (org_id, name)
	);

	CREATE TABLE IF NOT EXISTS lp_genealogy (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		parent_lp_id UUID NOT NULL,
		child_lp_id UUID NOT NULL,
		relation VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS purchase_orders (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		order_number VARCHAR(50) NOT NULL,
		supplier_id UUID,
		warehouse_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		order_id UUID NOT NULL REFERENCES purchase_orders(id),
		line_no INT NOT NULL,
		product_id UUID NOT NULL,
		uom VARCHAR(20) NOT NULL,
		ordered_quantity NUMERIC(18,3) NOT NULL,
		received_quantity NUMERIC(18,3) NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transfer_orders (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		order_number VARCHAR(50) NOT NULL,
		source_warehouse_id UUID NOT NULL,
		destination_warehouse_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS transfer_order_lines (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		order_id UUID NOT NULL REFERENCES transfer_orders(id),
		line_no INT NOT NULL,
		product_id UUID NOT NULL,
		uom VARCHAR(20) NOT NULL,
		shipped_quantity NUMERIC(18,3) NOT NULL,
		received_quantity NUMERIC(18,3) NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS goods_receipts (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		receipt_number VARCHAR(50) NOT NULL,
		order_type VARCHAR(20) NOT NULL,
		order_id UUID NOT NULL,
		warehouse_id UUID NOT NULL,
		received_by UUID NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_goods_receipts_receipt_number UNIQUE (org_id, receipt_number)
	);

	CREATE TABLE IF NOT EXISTS goods_receipt_items (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		receipt_id UUID NOT NULL REFERENCES goods_receipts(id),
		order_line_id UUID NOT NULL,
		lp_id UUID NOT NULL,
		product_id UUID NOT NULL,
		quantity NUMERIC(18,3) NOT NULL,
		uom VARCHAR(20) NOT NULL,
		variance_quantity NUMERIC(18,3),
		variance_reason VARCHAR(500)
	);

	CREATE TABLE IF NOT EXISTS over_consumption_requests (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		work_order_id UUID NOT NULL,
		product_id UUID NOT NULL,
		quantity NUMERIC(18,3) NOT NULL,
		uom VARCHAR(20) NOT NULL DEFAULT '',
		reason VARCHAR(500) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL,
		requested_by UUID NOT NULL,
		decided_by UUID,
		decided_at TIMESTAMPTZ,
		decision_reason VARCHAR(500),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT request_status_valid CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled'))
	);

	CREATE TABLE IF NOT EXISTS product_cache (
		org_id UUID NOT NULL,
		product_id UUID NOT NULL,
		code VARCHAR(100) NOT NULL,
		name VARCHAR(255) NOT NULL,
		uom VARCHAR(20) NOT NULL,
		shelf_life_days INT,
		batch_tracked BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (org_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS warehouse_config_cache (
		org_id UUID NOT NULL,
		warehouse_id UUID NOT NULL,
		over_receipt_enabled BOOLEAN NOT NULL DEFAULT false,
		over_receipt_tolerance_pct NUMERIC(5,2) NOT NULL DEFAULT 0,
		batch_required_on_receipt BOOLEAN NOT NULL DEFAULT false,
		expiry_required_on_receipt BOOLEAN NOT NULL DEFAULT false,
		qa_required_on_receipt BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (org_id, warehouse_id)
	);

	CREATE TABLE IF NOT EXISTS location_cache (
		org_id UUID NOT NULL,
		location_id UUID NOT NULL,
		warehouse_id UUID NOT NULL,
		code VARCHAR(100) NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (org_id, location_id)
	);

	DO $$
	DECLARE
		t TEXT;
	BEGIN
		FOREACH t IN ARRAY ARRAY[
			'license_plates', 'lp_sequences', 'lp_genealogy',
			'purchase_orders', 'purchase_order_lines',
			'transfer_orders', 'transfer_order_lines',
			'goods_receipts', 'goods_receipt_items',
			'over_consumption_requests',
			'product_cache', 'warehouse_config_cache', 'location_cache'
		] LOOP
			EXECUTE format('ALTER TABLE %I ENABLE ROW LEVEL SECURITY', t);
			EXECUTE format('ALTER TABLE %I FORCE ROW LEVEL SECURITY', t);
			EXECUTE format(
				'DROP POLICY IF EXISTS %I_org ON %I', t, t);
			EXECUTE format(
				'CREATE POLICY %I_org ON %I USING (org_id = current_setting(''app.current_org'', true)::uuid) WITH CHECK (org_id = current_setting(''app.current_org'', true)::uuid)',
				t, t);
		END LOOP;
	END $$;
`
