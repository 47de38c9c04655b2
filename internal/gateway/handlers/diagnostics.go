package handlers

import (
	"log"
	"net/http"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/ratelimit"
)

// DiagnosticsHandler exposes rate-limit introspection for integration
// testing. Registered only in debug, non-production configurations.
type DiagnosticsHandler struct {
	limiter *ratelimit.Limiter
}

func NewDiagnosticsHandler(limiter *ratelimit.Limiter) *DiagnosticsHandler {
	return &DiagnosticsHandler{limiter: limiter}
}

type rateLimitProbeResponse struct {
	APIKeyID  string `json:"api_key_id"`
	KeyName   string `json:"key_name"`
	Allowed   bool   `json:"allowed"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     int    `json:"reset"`
	Window    int    `json:"window"`
}

// RateLimitProbe charges one request against a dedicated probe counter for
// the calling key and reports the window state. The probe counter is separate
// from real endpoint counters, so polling it never consumes API quota.
func (h *DiagnosticsHandler) RateLimitProbe(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
		return
	}

	res, err := h.limiter.Check(r.Context(), identity, "probe")
	if err != nil {
		log.Printf("rate limit probe failed for key %s: %v", identity.ID, err)
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "Rate limit backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, rateLimitProbeResponse{
		APIKeyID:  identity.ID,
		KeyName:   identity.Name,
		Allowed:   res.Allowed,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		Reset:     res.Reset,
		Window:    res.Window,
	})
}
