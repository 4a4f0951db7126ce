package agentimds

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func newTestSnapshot() Snapshot {
	instanceID := uuid.New()
	machineID := "fm100test"
	sitename := "dc1"
	return Snapshot{
		InstanceMetadata: &InstanceMetadata{
			InstanceID: &instanceID,
			MachineID:  &machineID,
			Address:    "10.0.0.5",
			Hostname:   "test-host",
			UserData:   "#cloud-config\n",
			Sitename:   &sitename,
			IBDevices: []InfinibandDevice{
				{
					PFGUID: "pfguid1",
					Instances: []InfinibandInstance{
						{IBGUID: "ibguid1", Attributes: map[string]string{"lid": "1"}},
					},
				},
				{PFGUID: "pfguid2"},
			},
			ConfigVersion: "1.0",
		},
		NetworkConfig: &NetworkConfig{ASN: "65001"},
	}
}

func TestHandler_MetaDataRoutes(t *testing.T) {
	store := NewStore()
	store.Swap(newTestSnapshot())
	h := NewHandler(store, nil)
	router := h.Routes()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/meta-data/instance-id", http.StatusOK, ""},
		{"/meta-data/machine-id", http.StatusOK, "fm100test"},
		{"/meta-data/hostname", http.StatusOK, "test-host"},
		{"/meta-data/public-ipv4", http.StatusOK, "10.0.0.5"},
		{"/meta-data/asn", http.StatusOK, "65001"},
		{"/meta-data/bogus", http.StatusNotFound, ""},
		{"/user-data", http.StatusOK, "#cloud-config\n"},
		{"/meta-data/infiniband/devices", http.StatusOK, "0=pfguid1\n1=pfguid2\n"},
		{"/meta-data/infiniband/devices/0", http.StatusOK, "0=ibguid1\n"},
		{"/meta-data/infiniband/devices/5", http.StatusNotFound, ""},
		{"/meta-data/infiniband/devices/0/instances/0", http.StatusOK, "lid\n"},
		{"/meta-data/infiniband/devices/0/instances/0/lid", http.StatusOK, "1"},
		{"/meta-data/infiniband/devices/0/instances/0/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_NoSnapshotInstalled(t *testing.T) {
	h := NewHandler(NewStore(), nil)
	router := h.Routes()

	r := httptest.NewRequest(http.MethodGet, "/meta-data/hostname", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestHandler_PhoneHomeRateLimit(t *testing.T) {
	calls := 0
	h := NewHandler(NewStore(), func(r *http.Request) error {
		calls++
		return nil
	})
	router := h.Routes()

	var lastCode int
	for i := 0; i < phoneHomeRatePerMinute+1; i++ {
		r := httptest.NewRequest(http.MethodPost, "/meta-data/phone_home", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		lastCode = w.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("final call status = %d, want 429", lastCode)
	}
	if calls != phoneHomeRatePerMinute {
		t.Fatalf("trigger called %d times, want %d", calls, phoneHomeRatePerMinute)
	}
}
