// Package httpapi is the gateway surface the dashboard frontend talks to. It
// holds one live session per browser (keyed by the session cookie) and maps
// session/company operations onto HTTP endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/audit"
	"github.com/leonanthomaz/firecloud-console/internal/company"
	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/obs"
	"github.com/leonanthomaz/firecloud-console/internal/session"
)

// Upstream is the full backend surface the gateway needs: the session slice
// plus the company slice. *upstream.Client satisfies it.
type Upstream interface {
	session.Backend
	company.Backend
}

// ReadyProbe is a simple readiness check (audit database ping when wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the gateway knobs sourced from config.
type Options struct {
	Version       string
	CookieName    string
	CookieTTL     time.Duration
	RateBurst     int
	RatePerSecond int
	CORSOrigins   []string
	ReadyProbe    ReadyProbe
	Auditor       *audit.Recorder
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	upstream   Upstream
	sessions   *Registry
	preview    *company.Cache
	auditor    *audit.Recorder
	readyProbe ReadyProbe

	version     string
	cookieName  string
	cookieTTL   time.Duration
	rateBurst   int
	ratePerSec  int
	corsOrigins []string
}

// New wires the mux. The preview cache serves the public invite-code lookup,
// which has no session to hang a snapshot on.
func New(up Upstream, sessions *Registry, opts Options) *API {
	a := &API{
		mux:         http.NewServeMux(),
		upstream:    up,
		sessions:    sessions,
		preview:     company.New(up, nil),
		auditor:     opts.Auditor,
		readyProbe:  opts.ReadyProbe,
		version:     opts.Version,
		cookieName:  opts.CookieName,
		cookieTTL:   opts.CookieTTL,
		rateBurst:   opts.RateBurst,
		ratePerSec:  opts.RatePerSecond,
		corsOrigins: opts.CORSOrigins,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// session
	a.mux.HandleFunc("/v1/session", a.handleSession)
	a.mux.HandleFunc("/v1/session/login", a.handleLogin)
	a.mux.HandleFunc("/v1/session/google", a.handleGoogleLogin)
	a.mux.HandleFunc("/v1/session/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/session/user", a.handleUserUpdate)

	// company
	a.mux.HandleFunc("/v1/company", a.handleCompany)
	a.mux.HandleFunc("/v1/company/logo", a.handleCompanyLogo)
	a.mux.HandleFunc("/v1/companies/invite/", a.handleInviteLookup)

	// notices (SSE)
	a.mux.HandleFunc("/v1/notices", a.handleNotices)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the mux wrapped with the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 2<<20)
	h = a.cors(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "firecloud-console",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "firecloud-console",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, identity.ErrUnavailable):
		writeError(w, r, http.StatusBadGateway, "upstream unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
