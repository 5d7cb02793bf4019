package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/testutil"
)

func TestMultiValue(t *testing.T) {
	assert.Nil(t, multiValue(nil))
	assert.Equal(t, []string{"a"}, multiValue([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, multiValue([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b", "c"}, multiValue([]string{"a,b", "c"}))
	assert.Equal(t, []string{"a", "b"}, multiValue([]string{" a , b "}), "whitespace trimmed")
	assert.Nil(t, multiValue([]string{"", " , "}), "empty parts dropped")
}

func TestParseDateParam(t *testing.T) {
	got, err := parseDateParam("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseDateParam("2026-08-29")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, 29, got.Day())

	_, err = parseDateParam("29/08/2026")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestParseListParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/license-plates?status=available,blocked&product_id=p1&product_id=p2&search=LP0&page=3&limit=25&sort_by=expiry_date&sort_order=ASC", nil)

	params, err := parseListParams(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"available", "blocked"}, params.Statuses)
	assert.Equal(t, []string{"p1", "p2"}, params.ProductIDs)
	assert.Equal(t, "LP0", params.Search)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 25, params.Limit)
	assert.Equal(t, "expiry_date", params.SortBy)
	assert.Equal(t, "asc", params.SortOrder)
}

func TestParseListParamsBadValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/license-plates?page=abc", nil)
	_, err := parseListParams(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	req = httptest.NewRequest(http.MethodGet, "/license-plates?limit=ten", nil)
	_, err = parseListParams(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	req = httptest.NewRequest(http.MethodGet, "/license-plates?created_from=nope", nil)
	_, err = parseListParams(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

// Requests rejected by body validation never reach a service, so the handler
// can be wired with nil services for these cases.
func validationRouter() chi.Router {
	h := NewLicensePlateHandler(nil, nil, nil, nil, nil, logger.New("test", "test"))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestBlockRejectsEmptyReason(t *testing.T) {
	r := validationRouter()

	rec := testutil.MakeRequest(t, r, http.MethodPost, "/license-plates/lp-1/block",
		map[string]string{"reason": ""}, "")
	testutil.RequireStatus(t, rec, http.StatusBadRequest)
}

func TestUpdateQAStatusRejectsUnknownStatus(t *testing.T) {
	r := validationRouter()

	rec := testutil.MakeRequest(t, r, http.MethodPut, "/license-plates/lp-1/qa-status",
		map[string]string{"qa_status": "approved"}, "")
	testutil.RequireStatus(t, rec, http.StatusBadRequest)
}

func TestMergeRejectsSingleLP(t *testing.T) {
	r := validationRouter()

	rec := testutil.MakeRequest(t, r, http.MethodPost, "/license-plates/merge",
		map[string]interface{}{"lp_ids": []string{"0d9e8b69-9c5f-4c4e-9a39-14f8f1f0a001"}}, "")
	testutil.RequireStatus(t, rec, http.StatusBadRequest)
}

func TestCreateOutputRejectsMissingWorkOrder(t *testing.T) {
	r := validationRouter()

	rec := testutil.MakeRequest(t, r, http.MethodPost, "/license-plates",
		map[string]interface{}{
			"product_id":   "0d9e8b69-9c5f-4c4e-9a39-14f8f1f0a001",
			"quantity":     "10",
			"warehouse_id": "0d9e8b69-9c5f-4c4e-9a39-14f8f1f0a002",
			"location_id":  "0d9e8b69-9c5f-4c4e-9a39-14f8f1f0a003",
		}, "")
	testutil.RequireStatus(t, rec, http.StatusBadRequest)
}
