package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/domains/clinics/be/handler"
	"github.com/clinica-io/clinica-backend/domains/clinics/be/repo"
	"github.com/clinica-io/clinica-backend/domains/clinics/be/service"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	svc := service.New(repo.NewMemoryRepository(), nil, zap.NewNop())
	h := handler.New(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/admin/clinics", h.Routes)
	return r
}

func createClinic(t *testing.T, server http.Handler, name, slug string) map[string]any {
	t.Helper()

	body, err := json.Marshal(map[string]string{"name": name, "slug": slug})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/clinics/", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload
}

func TestCreateClinic(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	payload := createClinic(t, server, "Sunrise Medical", "sunrise")

	require.Equal(t, "sunrise", payload["slug"])
	require.Equal(t, "clinic_sunrise", payload["database_name"])
	require.Equal(t, true, payload["is_active"])
	require.NotZero(t, payload["id"])
}

func TestCreateClinicDuplicateSlugIs409(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	createClinic(t, server, "Sunrise", "sunrise")

	body := bytes.NewBufferString(`{"name":"Other","slug":"sunrise"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/clinics/", body)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)

	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestCreateClinicBadBodyIs400(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/clinics/", bytes.NewBufferString("{"))
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetUnknownClinicIs404(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/clinics/999", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeactivateAndList(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	created := createClinic(t, server, "Sunrise", "sunrise")
	createClinic(t, server, "Beta", "beta")

	id := strconv.FormatInt(int64(created["id"].(float64)), 10)
	req := httptest.NewRequest(http.MethodPost, "/admin/clinics/"+id+"/deactivate", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/clinics/?active=true", nil)
	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var list struct {
		Items      []map[string]any `json:"items"`
		TotalItems int              `json:"total_items"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Equal(t, 1, list.TotalItems)
	require.Equal(t, "beta", list.Items[0]["slug"])
}
