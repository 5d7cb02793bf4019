// Package org carries the acting organization through the request context.
// Every ledger table is row-level-security scoped by organization; repositories
// read the org ID from the context and refuse to run without one.
package org

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const orgIDKey contextKey = "org_id"

// ErrNoOrgInContext is returned when organization context is missing
var ErrNoOrgInContext = errors.New("no organization in context")

// WithOrgID returns a context carrying the organization ID.
// Called by middleware after extracting the org from gateway headers.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgID extracts the organization ID from context.
// Returns ErrNoOrgInContext if it is not set.
func OrgID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(orgIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoOrgInContext
	}
	return id, nil
}

// MustOrgID extracts the organization ID from context and panics if not found.
// Use only where a missing org is a programming error.
func MustOrgID(ctx context.Context) string {
	id, err := OrgID(ctx)
	if err != nil {
		panic("organization ID not found in context")
	}
	return id
}
