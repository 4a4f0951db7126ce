package extsvc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(h *Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Mount("/extension-services", h.Routes())
	return router
}

func TestCreateService_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "missing fields", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid JSON", body: `{bad}`, wantStatus: http.StatusBadRequest},
	}

	h := NewHandler(nil, nil)
	router := newTestRouter(h)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/extension-services", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestFindByIDs_MissingQuery(t *testing.T) {
	h := NewHandler(nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/extension-services", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFindByIDs_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/extension-services?ids=not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetService_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/extension-services/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateVersion_Validation(t *testing.T) {
	h := NewHandler(nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodPost, "/extension-services/not-a-uuid/versions", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
