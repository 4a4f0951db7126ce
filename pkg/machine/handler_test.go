package machine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing tenant id",
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid JSON",
			body:       `{bad}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	h := NewHandler(nil, nil, nil)
	router := newTestRouter(h)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/machines", strings.NewReader(tt.body))
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
	h := NewHandler(nil, nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodGet, "/machines", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPhoneHome_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := newTestRouter(h)

	r := httptest.NewRequest(http.MethodPost, "/machines/fm100abc/phone-home", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("fm100a,fm100b,fm100c")
	want := []string{"fm100a", "fm100b", "fm100c"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func newTestRouter(h *Handler) http.Handler {
	router := chi.NewRouter()
	router.Mount("/machines", h.Routes())
	return router
}
