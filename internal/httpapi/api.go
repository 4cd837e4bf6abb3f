// Package httpapi is the HTTP surface of the Atelier service: routing,
// middleware, authentication and the request handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/invite"
	"github.com/atelierhq/atelier/internal/obs"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/workshop"
)

// ReadyProbe checks backing-store readiness (DB ping when one is wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's collaborators.
type Config struct {
	Version    string
	ReadyProbe ReadyProbe

	Identity  *auth.Service
	Users     auth.UserStore
	Invites   *invite.Service
	Sessions  *session.Service
	Workshops *workshop.Service
	Recorder  *audit.Recorder

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	identity  *auth.Service
	users     auth.UserStore
	invites   *invite.Service
	sessions  *session.Service
	workshops *workshop.Service
	recorder  *audit.Recorder
	registry  *entityRegistry

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		identity:   cfg.Identity,
		users:      cfg.Users,
		invites:    cfg.Invites,
		sessions:   cfg.Sessions,
		workshops:  cfg.Workshops,
		recorder:   cfg.Recorder,
		rateBurst:  cfg.RateBurst,
		ratePerSec: cfg.RatePerSecond,
		maxBody:    cfg.MaxBodyBytes,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	a.registry = newEntityRegistry(a)

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// identity
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/profile", a.handleCompleteProfile)

	// tokens
	a.mux.HandleFunc("/v1/invites", a.handleInvites)
	a.mux.HandleFunc("/v1/invites/validate", a.handleInviteValidate)
	a.mux.HandleFunc("/v1/invites/redeem", a.handleInviteRedeem)
	a.mux.HandleFunc("/v1/invites/", a.handleInviteScoped)

	// assistance sessions
	a.mux.HandleFunc("/v1/assist/sessions", a.handleSessions)
	a.mux.HandleFunc("/v1/assist/sessions/", a.handleSessionScoped)

	// workshop domain
	a.mux.HandleFunc("/v1/workshops", a.handleWorkshops)
	a.mux.HandleFunc("/v1/workshops/", a.handleWorkshopScoped)
	a.mux.HandleFunc("/v1/minutes/", a.handleMinutesScoped)

	// audit and admin
	a.mux.HandleFunc("/v1/audit", a.handleAuditList)
	a.mux.HandleFunc("/v1/admin/users", a.handleAdminUsers)
	a.mux.HandleFunc("/v1/admin/users/", a.handleAdminUserScoped)
	a.mux.HandleFunc("/v1/admin/entities/", a.handleAdminEntities)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "atelier-api",
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
