package management

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/zoff-tech/go-clearing/pkg/resilience"
	"github.com/zoff-tech/go-clearing/pkg/token"
	"github.com/zoff-tech/go-clearing/pkg/uetr"
)

// API exposes the operator endpoints: token cache control, circuit breaker
// inspection and reset, and UETR tracking history. These are discrete
// operations, never side effects of normal adapter calls.
type API struct {
	tokens   *token.CacheManager
	breakers []*resilience.BreakerRegistry
	uetrs    *uetr.Service
}

// NewAPI creates the management API over the process's token cache, the
// breaker registries of every adapter, and the UETR service.
func NewAPI(tokens *token.CacheManager, uetrs *uetr.Service, breakers ...*resilience.BreakerRegistry) *API {
	return &API{
		tokens:   tokens,
		breakers: breakers,
		uetrs:    uetrs,
	}
}

// Handler builds a standalone admin mux.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Register(mux)
	return mux
}

// Register attaches the admin endpoints to an existing mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /admin/token-cache", a.invalidateTokens)
	mux.HandleFunc("POST /admin/token-cache/refresh", a.refreshToken)
	mux.HandleFunc("GET /admin/token-cache/stats", a.tokenStats)
	mux.HandleFunc("GET /admin/circuit-breakers", a.breakerStats)
	mux.HandleFunc("DELETE /admin/circuit-breakers", a.resetBreaker)
	mux.HandleFunc("GET /admin/uetr/{uetr}", a.uetrHistory)
}

// invalidateTokens drops one cached token when ?key= is given, otherwise the
// whole cache.
func (a *API) invalidateTokens(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		a.tokens.Invalidate(key)
		log.Printf("Invalidated cached token for %s", key)
	} else {
		a.tokens.Clear()
		log.Println("Cleared token cache")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key query parameter is required", http.StatusBadRequest)
		return
	}
	tok, err := a.tokens.RefreshToken(r.Context(), key)
	if err != nil {
		log.Printf("Token refresh for %s failed: %v", key, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{
		"key":        key,
		"issued_at":  tok.IssuedAt,
		"expires_at": tok.ExpiresAt,
	})
}

func (a *API) tokenStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.tokens.Stats())
}

func (a *API) breakerStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]resilience.BreakerStats, 0)
	for _, registry := range a.breakers {
		stats = append(stats, registry.Stats()...)
	}
	writeJSON(w, stats)
}

// resetBreaker forces the breaker for ?key= back to CLOSED. Keys are unique
// across registries, so resetting on every registry touches at most one.
func (a *API) resetBreaker(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key query parameter is required", http.StatusBadRequest)
		return
	}
	for _, registry := range a.breakers {
		registry.Reset(key)
	}
	log.Printf("Reset circuit breaker for %s", key)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) uetrHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uetr")
	if !uetr.Validate(id) {
		http.Error(w, "malformed UETR", http.StatusBadRequest)
		return
	}
	history, err := a.uetrs.History(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		http.Error(w, "unknown UETR", http.StatusNotFound)
		return
	}
	writeJSON(w, history)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode management response: %v", err)
	}
}
