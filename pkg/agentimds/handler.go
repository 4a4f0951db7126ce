package agentimds

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// metaDataRootFields is the fixed key-name listing returned for the
// meta-data root, in the order the route table specifies.
var metaDataRootFields = []string{"hostname", "sitename", "machine-id", "instance-id", "asn"}

// Handler answers the IMDS route table against whatever Snapshot its Store
// currently holds.
type Handler struct {
	store     *Store
	phoneHome *phoneHomeTrigger
}

// NewHandler builds an IMDS Handler. trigger is called for every accepted
// POST /meta-data/phone_home request; it is expected to report the DPU's
// liveness to the site controller.
func NewHandler(store *Store, trigger func(*http.Request) error) *Handler {
	return &Handler{
		store:     store,
		phoneHome: newPhoneHomeTrigger(trigger),
	}
}

// Routes returns the chi.Router to mount at the root of the IMDS listener.
// Responses are all text/plain, per the cloud-init convention this surface
// imitates, not the JSON envelope the rest of the corpus uses.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/meta-data", func(r chi.Router) {
		r.Get("/", h.handleRoot)
		r.Get("/instance-id", h.handleInstanceID)
		r.Get("/machine-id", h.handleMachineID)
		r.Post("/phone_home", h.handlePhoneHome)
		r.Route("/infiniband/devices", func(r chi.Router) {
			r.Get("/", h.handleDevices)
			r.Route("/{deviceIdx}", func(r chi.Router) {
				r.Get("/", h.handleDeviceInstances)
				r.Route("/instances/{instanceIdx}", func(r chi.Router) {
					r.Get("/", h.handleInstanceAttrNames)
					r.Get("/{attr}", h.handleInstanceAttrValue)
				})
			})
		})
		r.Get("/{category}", h.handleCategory)
	})
	r.Get("/user-data", h.handleUserData)
	return r
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil {
		plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
		return
	}
	plainOK(w, strings.Join(metaDataRootFields, "\n")+"\n")
}

func (h *Handler) handleInstanceID(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil || snap.InstanceMetadata.InstanceID == nil {
		plainError(w, http.StatusNotFound, "instance-id not set")
		return
	}
	plainOK(w, snap.InstanceMetadata.InstanceID.String())
}

func (h *Handler) handleMachineID(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil || snap.InstanceMetadata.MachineID == nil {
		plainError(w, http.StatusNotFound, "machine-id not set")
		return
	}
	plainOK(w, *snap.InstanceMetadata.MachineID)
}

func (h *Handler) handleUserData(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil {
		plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
		return
	}
	plainOK(w, snap.InstanceMetadata.UserData)
}

// handleCategory resolves every meta-data/{category} path not covered by a
// more specific route: public-ipv4, hostname, sitename, user-data, asn.
func (h *Handler) handleCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snap := h.store.Get()

	switch category {
	case "public-ipv4":
		if snap.InstanceMetadata == nil {
			plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
			return
		}
		plainOK(w, snap.InstanceMetadata.Address)
	case "hostname":
		if snap.InstanceMetadata == nil {
			plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
			return
		}
		plainOK(w, snap.InstanceMetadata.Hostname)
	case "sitename":
		if snap.InstanceMetadata == nil || snap.InstanceMetadata.Sitename == nil {
			plainError(w, http.StatusNotFound, "sitename not set")
			return
		}
		plainOK(w, *snap.InstanceMetadata.Sitename)
	case "user-data":
		if snap.InstanceMetadata == nil {
			plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
			return
		}
		plainOK(w, snap.InstanceMetadata.UserData)
	case "asn":
		if snap.NetworkConfig == nil {
			plainError(w, http.StatusInternalServerError, "no network config snapshot installed")
			return
		}
		plainOK(w, snap.NetworkConfig.ASN)
	default:
		plainError(w, http.StatusNotFound, fmt.Sprintf("unknown metadata category %q", category))
	}
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil {
		plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
		return
	}
	var b strings.Builder
	for i, dev := range snap.InstanceMetadata.IBDevices {
		fmt.Fprintf(&b, "%d=%s\n", i, dev.PFGUID)
	}
	plainOK(w, b.String())
}

func (h *Handler) handleDeviceInstances(w http.ResponseWriter, r *http.Request) {
	dev, ok := h.resolveDevice(w, r)
	if !ok {
		return
	}
	var b strings.Builder
	for i, inst := range dev.Instances {
		fmt.Fprintf(&b, "%d=%s\n", i, inst.IBGUID)
	}
	plainOK(w, b.String())
}

func (h *Handler) handleInstanceAttrNames(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.resolveInstance(w, r)
	if !ok {
		return
	}
	names := make([]string, 0, len(inst.Attributes))
	for name := range inst.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	plainOK(w, b.String())
}

func (h *Handler) handleInstanceAttrValue(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.resolveInstance(w, r)
	if !ok {
		return
	}
	attr := chi.URLParam(r, "attr")
	value, present := inst.Attributes[attr]
	if !present {
		plainError(w, http.StatusNotFound, fmt.Sprintf("attribute %q not present", attr))
		return
	}
	plainOK(w, value)
}

func (h *Handler) handlePhoneHome(w http.ResponseWriter, r *http.Request) {
	if err := h.phoneHome.trigger(r); err != nil {
		if err == errPhoneHomeRateLimited {
			plainError(w, http.StatusTooManyRequests, "phone-home rate limit exceeded")
			return
		}
		plainError(w, http.StatusInternalServerError, "phone-home failed")
		return
	}
	plainOK(w, "ok")
}

func (h *Handler) resolveDevice(w http.ResponseWriter, r *http.Request) (InfinibandDevice, bool) {
	snap := h.store.Get()
	if snap.InstanceMetadata == nil {
		plainError(w, http.StatusInternalServerError, "no instance metadata snapshot installed")
		return InfinibandDevice{}, false
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "deviceIdx"))
	if err != nil || idx < 0 || idx >= len(snap.InstanceMetadata.IBDevices) {
		plainError(w, http.StatusNotFound, "device index out of range")
		return InfinibandDevice{}, false
	}
	return snap.InstanceMetadata.IBDevices[idx], true
}

func (h *Handler) resolveInstance(w http.ResponseWriter, r *http.Request) (InfinibandInstance, bool) {
	dev, ok := h.resolveDevice(w, r)
	if !ok {
		return InfinibandInstance{}, false
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "instanceIdx"))
	if err != nil || idx < 0 || idx >= len(dev.Instances) {
		plainError(w, http.StatusNotFound, "instance index out of range")
		return InfinibandInstance{}, false
	}
	return dev.Instances[idx], true
}

func plainOK(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func plainError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(reason))
}
