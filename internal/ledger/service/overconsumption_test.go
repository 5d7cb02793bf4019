package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
)

func TestSubmitValidation(t *testing.T) {
	svc := NewOverConsumptionService(nil, nil, nil)
	ctx := context.Background()

	valid := SubmitInput{
		WorkOrderID: "wo-1",
		ProductID:   "product-1",
		Quantity:    decimal.NewFromInt(5),
		Reason:      "recipe adjustment",
	}

	tests := []struct {
		name       string
		mutate     func(*SubmitInput)
		wantErrMsg string
	}{
		{
			name:       "missing work order",
			mutate:     func(in *SubmitInput) { in.WorkOrderID = "" },
			wantErrMsg: "work_order_id",
		},
		{
			name:       "missing product",
			mutate:     func(in *SubmitInput) { in.ProductID = "" },
			wantErrMsg: "product_id",
		},
		{
			name:       "zero quantity",
			mutate:     func(in *SubmitInput) { in.Quantity = decimal.Zero },
			wantErrMsg: "positive",
		},
		{
			name:       "negative quantity",
			mutate:     func(in *SubmitInput) { in.Quantity = decimal.NewFromInt(-1) },
			wantErrMsg: "positive",
		},
		{
			name:       "reason too long",
			mutate:     func(in *SubmitInput) { in.Reason = strings.Repeat("x", 501) },
			wantErrMsg: "500 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)

			_, err := svc.Submit(ctx, input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErrMsg)
		})
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc := NewOverConsumptionService(nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Reject(ctx, "req-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "rejection reason is required")

	_, err = svc.Reject(ctx, "req-1", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestApproveReasonLength(t *testing.T) {
	svc := NewOverConsumptionService(nil, nil, nil)

	_, err := svc.Approve(context.Background(), "req-1", strings.Repeat("x", 501))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCheckReason(t *testing.T) {
	assert.NoError(t, checkReason(""))
	assert.NoError(t, checkReason(strings.Repeat("x", 500)))
	assert.Error(t, checkReason(strings.Repeat("x", 501)))
}
