package tenant

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func TestCreateTenant_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing name and slug",
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "slug not alphanumeric",
			body:       `{"name":"Acme Corp","slug":"acme-corp"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "slug too short",
			body:       `{"name":"Acme Corp","slug":"a"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid JSON",
			body:       `{bad}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
		},
	}

	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/tenants", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/tenants", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetTenant_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/tenants", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/tenants/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRotateKey_Validation(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/tenants", h.Routes())

	id := uuid.New()
	r := httptest.NewRequest(http.MethodPost, "/tenants/"+id.String()+"/keys/rotate", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}

func TestUpdateTenant_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := chi.NewRouter()
	router.Mount("/tenants", h.Routes())

	r := httptest.NewRequest(http.MethodPut, "/tenants/not-a-uuid", strings.NewReader(`{"name":"Acme"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
