package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
)

func TestListAvailableValidation(t *testing.T) {
	svc := NewAllocationService(nil)
	ctx := context.Background()

	_, err := svc.ListAvailable(ctx, repository.AvailableParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "product_id")

	_, err = svc.ListAvailable(ctx, repository.AvailableParams{
		ProductID: "product-1",
		Strategy:  "LIFO",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "FIFO or FEFO")

	_, err = svc.ListAvailable(ctx, repository.AvailableParams{
		ProductID: "product-1",
		Limit:     -1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestTotalAvailableValidation(t *testing.T) {
	svc := NewAllocationService(nil)

	_, err := svc.TotalAvailable(context.Background(), repository.AvailableParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestListValidation(t *testing.T) {
	svc := NewAllocationService(nil)
	ctx := context.Background()

	_, _, err := svc.List(ctx, repository.ListParams{Search: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "at least 2 characters")

	// A single multi-byte character is still one character.
	_, _, err = svc.List(ctx, repository.ListParams{Search: "ł"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "at least 2 characters")

	_, _, err = svc.List(ctx, repository.ListParams{Statuses: []string{"bogus"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "invalid status filter")

	_, _, err = svc.List(ctx, repository.ListParams{QAStatuses: []string{"bogus"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "invalid QA status filter")
}
