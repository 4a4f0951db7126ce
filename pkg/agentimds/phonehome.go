package agentimds

import (
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// phoneHomeRatePerMinute is the guest-triggerable phone-home rate: 10/min,
// matching the control plane's own throttle on the RPC this fans out to.
const phoneHomeRatePerMinute = 10

var errPhoneHomeRateLimited = errors.New("phone-home rate limited")

// phoneHomeTrigger throttles guest-initiated phone-home calls in-process.
// Unlike the control plane's Redis-backed limiter, IMDS runs DPU-local with
// no shared store available, so this is a single rate.Limiter rather than a
// keyed remote counter; rate.Limiter is already safe for concurrent use.
type phoneHomeTrigger struct {
	limiter *rate.Limiter
	fn      func(*http.Request) error
}

func newPhoneHomeTrigger(fn func(*http.Request) error) *phoneHomeTrigger {
	return &phoneHomeTrigger{
		limiter: rate.NewLimiter(rate.Limit(phoneHomeRatePerMinute)/60, phoneHomeRatePerMinute),
		fn:      fn,
	}
}

func (t *phoneHomeTrigger) trigger(r *http.Request) error {
	if !t.limiter.Allow() {
		return errPhoneHomeRateLimited
	}
	if t.fn == nil {
		return nil
	}
	return t.fn(r)
}
