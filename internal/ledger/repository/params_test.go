package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListParamsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListParams
		want ListParams
	}{
		{
			name: "zero values get defaults",
			in:   ListParams{},
			want: ListParams{Page: 1, Limit: DefaultPageSize, SortBy: "created_at", SortOrder: "desc"},
		},
		{
			name: "negative page clamps to 1",
			in:   ListParams{Page: -3, Limit: 20},
			want: ListParams{Page: 1, Limit: 20, SortBy: "created_at", SortOrder: "desc"},
		},
		{
			name: "limit above maximum clamps",
			in:   ListParams{Page: 2, Limit: 1000},
			want: ListParams{Page: 2, Limit: MaxPageSize, SortBy: "created_at", SortOrder: "desc"},
		},
		{
			name: "explicit ascending sort kept",
			in:   ListParams{Page: 1, Limit: 10, SortBy: "expiry_date", SortOrder: "asc"},
			want: ListParams{Page: 1, Limit: 10, SortBy: "expiry_date", SortOrder: "asc"},
		},
		{
			name: "unknown sort order falls back to desc",
			in:   ListParams{Page: 1, Limit: 10, SortOrder: "sideways"},
			want: ListParams{Page: 1, Limit: 10, SortBy: "created_at", SortOrder: "desc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.want.Page, tt.in.Page)
			assert.Equal(t, tt.want.Limit, tt.in.Limit)
			assert.Equal(t, tt.want.SortBy, tt.in.SortBy)
			assert.Equal(t, tt.want.SortOrder, tt.in.SortOrder)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "LP0001", escapeLike("LP0001"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}

func TestFormatLPNumber(t *testing.T) {
	assert.Equal(t, "LP00000001", FormatLPNumber(1))
	assert.Equal(t, "LP00000042", FormatLPNumber(42))
	assert.Equal(t, "LP99999999", FormatLPNumber(99999999))
	assert.Equal(t, "LP100000000", FormatLPNumber(100000000))
}

func TestFormatReceiptNumber(t *testing.T) {
	assert.Equal(t, "GRN-2026-1", FormatReceiptNumber(2026, 1))
	assert.Equal(t, "GRN-2026-157", FormatReceiptNumber(2026, 157))
}

func TestLicensePlateIsExpired(t *testing.T) {
	today := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	lp := &LicensePlate{}
	assert.False(t, lp.IsExpired(today), "no expiry date never expires")

	lp.ExpiryDate = &yesterday
	assert.True(t, lp.IsExpired(today))

	lp.ExpiryDate = &sameDay
	assert.False(t, lp.IsExpired(today), "a plate expiring today is still usable")

	lp.ExpiryDate = &tomorrow
	assert.False(t, lp.IsExpired(today))
}
