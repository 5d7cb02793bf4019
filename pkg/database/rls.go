package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithOrgRLS executes a function with RLS-based organization isolation.
//
// Usage in repositories:
//
//	orgID, err := org.OrgID(ctx)
//	if err != nil { return err }
//	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &lp, "SELECT * FROM license_plates WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction
//  2. Sets "SET LOCAL search_path TO <service_schema>, public" (from db.searchPath)
//  3. Sets "SET LOCAL app.current_org = '<org-uuid>'"
//  4. RLS policies filter rows automatically: USING (org_id = current_setting('app.current_org')::uuid)
//  5. Commits the transaction (SET LOCAL state ends with it)
//
// The call is reentrant: when the context already carries a transaction the
// function runs inside it directly. Service-level operations rely on this to
// make multi-repository mutations (merge, goods receipt, consumption) a single
// atomic transaction — they open one scope and every repository call joins it.
func (db *DB) WithOrgRLS(ctx context.Context, orgID string, fn func(context.Context) error) error {
	if tx := db.getTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		searchPath := db.searchPath
		if searchPath == "" {
			searchPath = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", searchPath, err)
		}

		// SET LOCAL doesn't support parameterized queries ($1), must use fmt.Sprintf.
		// Safe because orgID is a UUID validated upstream, not raw user input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_org = '%s'", orgID)); err != nil {
			return fmt.Errorf("failed to set app.current_org to %s: %w", orgID, err)
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// getTx extracts the transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
