package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/audit"
	"github.com/leonanthomaz/firecloud-console/internal/company"
	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/ids"
	"github.com/leonanthomaz/firecloud-console/internal/notify"
	"github.com/leonanthomaz/firecloud-console/internal/obs"
	"github.com/leonanthomaz/firecloud-console/internal/session"
	"github.com/leonanthomaz/firecloud-console/internal/tokenstore"
)

// gatewaySession bundles everything the gateway keeps per browser: the
// session state machine, its company snapshot cache and the notice stream.
// The cache is subscribed to the session's company changes at construction,
// which is the one-way Session→Snapshot sync.
type gatewaySession struct {
	id        string
	sess      *session.Session
	companies *company.Cache
	notices   *notify.Stream

	mu       sync.Mutex
	lastSeen time.Time
}

func (g *gatewaySession) touch(now time.Time) {
	g.mu.Lock()
	g.lastSeen = now
	g.mu.Unlock()
}

func (g *gatewaySession) seen() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}

// Registry maps bearer tokens to live gateway sessions. A request carrying a
// cookie the registry has never seen gets a fresh session bootstrapped from
// that token; logout and the sweeper evict.
type Registry struct {
	mu      sync.Mutex
	byToken map[string]*gatewaySession

	backend Upstream
	auditor *audit.Recorder
	idleTTL time.Duration
	now     func() time.Time
}

// NewRegistry constructs an empty registry. idleTTL bounds how long an
// untouched session survives between sweeps.
func NewRegistry(backend Upstream, auditor *audit.Recorder, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &Registry{
		byToken: make(map[string]*gatewaySession),
		backend: backend,
		auditor: auditor,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// newSession builds an unindexed gateway session around the given token
// store and wires cache and notifier.
func (r *Registry) newSession(tokens tokenstore.Store) *gatewaySession {
	notices := notify.New()
	sess := session.New(r.backend, tokens,
		session.WithNotifier(notices),
		session.WithAuditor(r.auditor),
	)
	cache := company.New(r.backend, sess, company.WithNotifier(notices))
	sess.OnCompanyChange(cache.ApplySessionCompany)
	return &gatewaySession{
		id:        ids.New(),
		sess:      sess,
		companies: cache,
		notices:   notices,
		lastSeen:  r.now(),
	}
}

// Begin creates a fresh, empty session for a login attempt. It is not
// indexed until Bind is called with the issued token.
func (r *Registry) Begin() *gatewaySession {
	return r.newSession(tokenstore.NewMemory())
}

// Bind indexes a logged-in session under its token.
func (r *Registry) Bind(token string, gs *gatewaySession) {
	if token == "" || gs == nil {
		return
	}
	r.mu.Lock()
	r.byToken[token] = gs
	size := len(r.byToken)
	r.mu.Unlock()
	obs.SetActiveSessions(size)
}

// Restore finds the live session for the token, or creates one and restores
// it from the token. A token the upstream rejects yields (nil, false); the
// session machinery has already discarded it silently.
func (r *Registry) Restore(ctx context.Context, token string) (*gatewaySession, bool) {
	if token == "" {
		return nil, false
	}
	r.mu.Lock()
	gs, ok := r.byToken[token]
	r.mu.Unlock()
	if ok {
		gs.touch(r.now())
		return gs, true
	}

	gs = r.newSession(tokenstore.Seeded(token))
	gs.sess.Bootstrap(ctx)
	if !gs.sess.IsAuthenticated() {
		return nil, false
	}
	r.Bind(token, gs)
	return gs, true
}

// Drop evicts the session for the token, if any.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	delete(r.byToken, token)
	size := len(r.byToken)
	r.mu.Unlock()
	obs.SetActiveSessions(size)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Sweep evicts sessions that are idle past the TTL or whose token visibly
// expired, and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	var evicted int
	for token, gs := range r.byToken {
		if now.Sub(gs.seen()) > r.idleTTL || identity.TokenExpired(token, now) {
			delete(r.byToken, token)
			evicted++
		}
	}
	size := len(r.byToken)
	r.mu.Unlock()

	obs.SetActiveSessions(size)
	if evicted > 0 {
		obs.LogEvent("info", "registry sweep", map[string]any{
			"evicted": evicted,
			"live":    size,
		})
	}
	return evicted
}

// StartSweeper runs Sweep at the provided interval until the returned stop
// function is called.
func (r *Registry) StartSweeper(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
	return cancel
}
