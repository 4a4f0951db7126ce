package vpc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCreateVPC_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "missing fields", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid cidr", body: `{"tenant_id":"11111111-1111-1111-1111-111111111111","name":"default","cidr":"not-a-cidr"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid JSON", body: `{bad}`, wantStatus: http.StatusBadRequest},
	}

	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/vpcs", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/vpcs", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestListVPCs_MissingTenantID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/vpcs", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/vpcs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetVPC_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/vpcs", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/vpcs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
