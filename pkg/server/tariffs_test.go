package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tariffscope/tariffscope/pkg/openei"
	"github.com/tariffscope/tariffscope/pkg/storage"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
)

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func parsedTariff(t *testing.T) types.Tariff {
	t.Helper()
	tariff, err := urdb.ParseTariff(apiRecord())
	require.NoError(t, err)
	return tariff
}

func TestHandleListTariffs(t *testing.T) {
	ms := &mockStorage{}
	ms.On("ListTariffs", anyCtx).Return([]types.TariffSummary{
		{Label: "a", Utility: "PG&E", Name: "E-19"},
		{Label: "b", Utility: "ComEd", Name: "BES"},
	}, nil)
	_, h := newTestServer(ms)

	req := httptest.NewRequest("GET", "/api/list/tariffs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var summaries []types.TariffSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "a", summaries[0].Label)
	ms.AssertExpectations(t)
}

func TestHandleListTariffsEmpty(t *testing.T) {
	ms := &mockStorage{}
	ms.On("ListTariffs", anyCtx).Return(nil, nil)
	_, h := newTestServer(ms)

	req := httptest.NewRequest("GET", "/api/list/tariffs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	// empty list, not null
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHandleGetTariff(t *testing.T) {
	tariff := parsedTariff(t)

	ms := &mockStorage{}
	ms.On("GetTariff", anyCtx, "5d1a9a935457a3ae0d6ed1b4").Return(tariff, nil)
	ms.On("GetTariff", anyCtx, "missing").Return(types.Tariff{},
		fmt.Errorf("%w: missing", storage.ErrTariffNotFound))
	_, h := newTestServer(ms)

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/tariffs/5d1a9a935457a3ae0d6ed1b4", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Result().StatusCode)
		var record map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
		assert.Equal(t, "Pacific Gas & Electric Co", record["utility"])
		assert.Equal(t, "5d1a9a935457a3ae0d6ed1b4", record["label"])
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/tariffs/missing", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})
}

func TestHandleSaveTariff(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		ms := &mockStorage{}
		ms.On("SaveTariff", anyCtx, mock.AnythingOfType("types.Tariff")).Return(nil)
		_, h := newTestServer(ms)

		w := postJSON(t, h, "/api/tariffs", apiRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp saveTariffResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "5d1a9a935457a3ae0d6ed1b4", resp.Label)
		ms.AssertExpectations(t)
	})

	t.Run("LocalDialect", func(t *testing.T) {
		ms := &mockStorage{}
		ms.On("SaveTariff", anyCtx, mock.AnythingOfType("types.Tariff")).Return(nil)
		_, h := newTestServer(ms)

		record := apiRecord()
		delete(record, "label")
		record["_id"] = map[string]any{"$oid": "5d1a9a935457a3ae0d6ed1b4"}
		record["utilityName"] = record["utility"]
		delete(record, "utility")

		w := postJSON(t, h, "/api/tariffs", record)
		require.Equal(t, http.StatusOK, w.Result().StatusCode)
		ms.AssertExpectations(t)
	})

	t.Run("MissingLabel", func(t *testing.T) {
		ms := &mockStorage{}
		_, h := newTestServer(ms)

		record := apiRecord()
		delete(record, "label")
		w := postJSON(t, h, "/api/tariffs", record)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		ms := &mockStorage{}
		_, h := newTestServer(ms)

		record := apiRecord()
		record["utility"] = ""
		w := postJSON(t, h, "/api/tariffs", record)
		require.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)

		var resp struct {
			Issues []types.Issue `json:"issues"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotEmpty(t, resp.Issues)
		// nothing saved on validation failure
		ms.AssertNotCalled(t, "SaveTariff", anyCtx, mock.Anything)
	})

	t.Run("BadJSON", func(t *testing.T) {
		_, h := newTestServer(&mockStorage{})
		req := httptest.NewRequest("POST", "/api/tariffs", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})
}

func TestHandleDeleteTariff(t *testing.T) {
	ms := &mockStorage{}
	ms.On("DeleteTariff", anyCtx, "5d1a9a935457a3ae0d6ed1b4").Return(nil)
	_, h := newTestServer(ms)

	req := httptest.NewRequest("DELETE", "/api/tariffs/5d1a9a935457a3ae0d6ed1b4", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Result().StatusCode)
	ms.AssertExpectations(t)
}

func TestHandleImportOpenEI(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp map[string]any
		if r.URL.Query().Get("getpage") == "5d1a9a935457a3ae0d6ed1b4" {
			resp = map[string]any{"items": []any{apiRecord()}}
		} else {
			resp = map[string]any{"items": []any{}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer upstream.Close()

	ms := &mockStorage{}
	ms.On("SaveTariff", anyCtx, mock.AnythingOfType("types.Tariff")).Return(nil)
	srv := &Server{
		storage:    ms,
		openei:     openei.NewClient(upstream.URL, "test-key"),
		bypassAuth: true,
	}
	h := srv.setupHandler()

	t.Run("Imports", func(t *testing.T) {
		w := postJSON(t, h, "/api/import/openei", map[string]any{"label": "5d1a9a935457a3ae0d6ed1b4"})
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp saveTariffResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "5d1a9a935457a3ae0d6ed1b4", resp.Label)
		ms.AssertExpectations(t)
	})

	t.Run("UpstreamMiss", func(t *testing.T) {
		w := postJSON(t, h, "/api/import/openei", map[string]any{"label": "nope"})
		assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode)
	})

	t.Run("MissingLabel", func(t *testing.T) {
		w := postJSON(t, h, "/api/import/openei", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})
}
