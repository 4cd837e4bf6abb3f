package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/httpapi"
	"github.com/atelierhq/atelier/internal/invite"
	"github.com/atelierhq/atelier/internal/obs"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/store/memory"
	"github.com/atelierhq/atelier/internal/store/pg"
	"github.com/atelierhq/atelier/internal/workshop"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

// backend is the slice of store accessors both backends provide.
type backend interface {
	Users() auth.UserStore
	Grants() auth.GrantStore
	RefreshTokens() auth.RefreshTokenStore
	Audit() audit.Store
	Invites() invite.Store
	Sessions() session.Store
	Workshops() workshop.Store
}

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		store backend
		db    *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("ATELIER_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	secret := cfg.AuthSecret
	if secret == "" {
		if cfg.PGDSN != "" {
			log.Fatal("ATELIER_AUTH_SECRET is required when a database is configured")
		}
		log.Println("ATELIER_AUTH_SECRET not set, using an insecure dev secret")
		secret = "atelier-dev-secret"
	}

	signer, err := auth.NewTokenSigner(secret, cfg.Issuer)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}
	identity, err := auth.NewService(store.Users(), store.Grants(), store.RefreshTokens(), signer,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	invites, err := invite.NewService(store.Invites(), invite.WithTTL(cfg.InviteTTL))
	if err != nil {
		log.Fatalf("invite service: %v", err)
	}
	sessions, err := session.NewService(store.Sessions())
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	workshops, err := workshop.NewService(store.Workshops())
	if err != nil {
		log.Fatalf("workshop service: %v", err)
	}
	recorder := audit.NewRecorder(store.Audit())

	api := httpapi.New(httpapi.Config{
		Version:       version,
		ReadyProbe:    httpapi.ReadyProbe{DB: db},
		Identity:      identity,
		Users:         store.Users(),
		Invites:       invites,
		Sessions:      sessions,
		Workshops:     workshops,
		Recorder:      recorder,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSec,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting atelier-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
