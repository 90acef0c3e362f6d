package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/audit"
	"github.com/leonanthomaz/firecloud-console/internal/config"
	"github.com/leonanthomaz/firecloud-console/internal/httpapi"
	"github.com/leonanthomaz/firecloud-console/internal/obs"
	"github.com/leonanthomaz/firecloud-console/internal/upstream"
)

var (
	version = "0.3.1"
	commit  = "unknown"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Audit trail goes to Postgres when a DSN is configured; the recorder
	// degrades to log-only otherwise.
	var auditor *audit.Recorder
	if cfg.AuditDSN != "" {
		auditor, err = audit.Open(cfg.AuditDSN)
		if err != nil {
			log.Fatalf("open audit db: %v", err)
		}
	}

	backend := upstream.New(cfg.UpstreamBaseURL,
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)

	sessions := httpapi.NewRegistry(backend, auditor, cfg.SessionIdleTTL)
	stopSweeper := sessions.StartSweeper(time.Minute)

	api := httpapi.New(backend, sessions, httpapi.Options{
		Version:       version,
		CookieName:    cfg.CookieName,
		CookieTTL:     cfg.CookieTTL,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
		CORSOrigins:   cfg.CORSOrigins,
		ReadyProbe:    httpapi.ReadyProbe{DB: auditor.DB()},
		Auditor:       auditor,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // notices stream holds connections open
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting firecloud-console %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if auditor != nil {
		_ = auditor.Close()
	}
	log.Println("Stopped")
}
