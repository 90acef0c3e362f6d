package session

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/audit"
	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/notify"
	"github.com/leonanthomaz/firecloud-console/internal/obs"
	"github.com/leonanthomaz/firecloud-console/internal/tokenstore"
)

// Fixed user-facing messages. Internal detail goes to the log, never to the
// notification stream.
const (
	MsgLoginFailed   = "Unable to sign in. Check your credentials and try again."
	MsgLoginOK       = "Signed in successfully."
	MsgProfileOK     = "Profile updated."
	MsgProfileFailed = "Could not update your profile. Try again."
)

// Backend is the slice of the upstream API the session needs.
type Backend interface {
	ExchangeCredentials(ctx context.Context, identifier, secret string) (string, error)
	ExchangeGoogleToken(ctx context.Context, providerToken string) (string, error)
	FetchIdentity(ctx context.Context, token string) (identity.Document, error)
	UpdateUser(ctx context.Context, token string, userID int64, patch identity.UserPatch) (identity.UserPatch, error)
}

// Session is the single source of truth for one signed-in principal. All
// mutation goes through the reducer; reads are cheap copies. The state cell
// is mutex-guarded; concurrent operations resolve last-writer-wins.
type Session struct {
	mu    sync.Mutex
	state State

	tokens   tokenstore.Store
	backend  Backend
	notifier notify.Notifier
	auditor  *audit.Recorder
	now      func() time.Time

	obsMu     sync.Mutex
	observers []func(*identity.Company)
}

// Option configures Session behavior.
type Option func(*Session)

// WithNotifier routes user-facing notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithAuditor attaches the audit recorder.
func WithAuditor(a *audit.Recorder) Option {
	return func(s *Session) { s.auditor = a }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Session) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New constructs a session around a token store and an upstream backend.
func New(backend Backend, tokens tokenstore.Store, opts ...Option) *Session {
	s := &Session{
		tokens:   tokens,
		backend:  backend,
		notifier: notify.Discard{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnCompanyChange registers a callback fired after any state replacement that
// changed the session's company record. The callback receives the new value
// (nil when the company became absent) and must not call back into Session.
func (s *Session) OnCompanyChange(fn func(*identity.Company)) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// dispatch atomically replaces the state and fires company observers when the
// company record changed.
func (s *Session) dispatch(a action) {
	s.mu.Lock()
	before := s.state.company()
	s.state = reduce(s.state, a)
	after := s.state.company()
	s.mu.Unlock()

	if companiesEqual(before, after) {
		return
	}
	s.obsMu.Lock()
	observers := make([]func(*identity.Company), len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(cloneCompany(after))
	}
}

// Bootstrap restores the session from a persisted token. It runs once per
// gateway session: without a token it settles loading and stops; with one it
// fetches the identity document. Any failure silently downgrades to
// logged-out and discards the token. The caller never sees an error.
func (s *Session) Bootstrap(ctx context.Context) {
	token, ok := s.tokens.Token()
	if !ok {
		s.dispatch(setLoading(false))
		return
	}

	if identity.TokenExpired(token, s.now()) {
		s.downgrade(ctx, "token expired")
		obs.ObserveBootstrap("expired")
		return
	}

	s.dispatch(request())
	doc, err := s.backend.FetchIdentity(ctx, token)
	if err != nil {
		s.downgrade(ctx, err.Error())
		obs.ObserveBootstrap("failure")
		return
	}

	s.dispatch(success(&doc))
	obs.ObserveBootstrap("success")
	_ = s.auditor.Record(ctx, "session.bootstrap", map[string]any{
		"user_id": doc.User.ID,
	})
}

// downgrade is the silent bootstrap failure path: discard the token, clear
// the session, settle loading. Logged, not surfaced.
func (s *Session) downgrade(ctx context.Context, reason string) {
	_ = s.tokens.Clear()
	s.dispatch(clear())
	s.dispatch(setLoading(false))
	obs.LogEvent("info", "session restore downgraded to logged-out", map[string]any{
		"reason": reason,
	})
	_ = s.auditor.Record(ctx, "session.bootstrap.downgrade", map[string]any{
		"reason": reason,
	})
}

// Login exchanges credentials for a token, persists it and loads the identity
// document. On any failure the state carries a fixed generic message and the
// user is notified exactly once.
func (s *Session) Login(ctx context.Context, identifier, secret string) error {
	return s.login(ctx, "password", func() (string, error) {
		return s.backend.ExchangeCredentials(ctx, identifier, secret)
	})
}

// LoginWithGoogle is Login with a Google-issued token exchanged for the
// backend's own first.
func (s *Session) LoginWithGoogle(ctx context.Context, providerToken string) error {
	return s.login(ctx, "google", func() (string, error) {
		return s.backend.ExchangeGoogleToken(ctx, providerToken)
	})
}

func (s *Session) login(ctx context.Context, method string, exchange func() (string, error)) error {
	s.dispatch(request())

	token, err := exchange()
	if err != nil {
		return s.loginFailed(ctx, method, err)
	}
	if err := s.tokens.Save(token); err != nil {
		return s.loginFailed(ctx, method, err)
	}
	doc, err := s.backend.FetchIdentity(ctx, token)
	if err != nil {
		return s.loginFailed(ctx, method, err)
	}

	s.dispatch(success(&doc))
	s.notifier.Notify(notify.LevelSuccess, MsgLoginOK)
	obs.ObserveLogin(method, "success")
	_ = s.auditor.Record(ctx, "session.login", map[string]any{
		"method":  method,
		"user_id": doc.User.ID,
	})
	return nil
}

func (s *Session) loginFailed(ctx context.Context, method string, err error) error {
	s.dispatch(failure(MsgLoginFailed))
	s.notifier.Notify(notify.LevelError, MsgLoginFailed)
	obs.ObserveLogin(method, "failure")
	obs.LogEvent("warn", "login failed", map[string]any{
		"method": method,
		"error":  err.Error(),
	})
	_ = s.auditor.Record(ctx, "session.login.failure", map[string]any{
		"method": method,
	})
	return fmt.Errorf("session: login: %w", err)
}

// Logout clears the persisted token and the session state. Synchronous,
// cannot fail. Loading and error flags are left for callers to settle.
func (s *Session) Logout(ctx context.Context) {
	_ = s.tokens.Clear()
	s.dispatch(clear())
	_ = s.auditor.Record(ctx, "session.logout", nil)
}

// UpdateUserFields patches profile fields in place. It requires a persisted
// token and a loaded user, and returns without effect when either is missing.
// On success the returned fields are shallow-merged into the current user;
// on failure the error is stored, the user notified, and the error propagated
// so callers can react too. Loading always settles.
func (s *Session) UpdateUserFields(ctx context.Context, patch identity.UserPatch) error {
	token, ok := s.tokens.Token()
	if !ok {
		return nil
	}
	s.mu.Lock()
	doc := s.state.Data
	s.mu.Unlock()
	if doc == nil {
		return nil
	}

	s.dispatch(setLoading(true))
	defer s.dispatch(setLoading(false))

	returned, err := s.backend.UpdateUser(ctx, token, doc.User.ID, patch)
	if err != nil {
		s.dispatch(setError(MsgProfileFailed))
		s.notifier.Notify(notify.LevelError, MsgProfileFailed)
		obs.ObserveUserUpdate("failure")
		obs.LogEvent("warn", "profile update failed", map[string]any{
			"user_id": doc.User.ID,
			"error":   err.Error(),
		})
		return fmt.Errorf("session: update user: %w", err)
	}

	merged := *doc
	merged.User = doc.User.Merge(returned)
	s.dispatch(setIdentity(&merged))
	s.notifier.Notify(notify.LevelSuccess, MsgProfileOK)
	obs.ObserveUserUpdate("success")
	_ = s.auditor.Record(ctx, "session.user.update", map[string]any{
		"user_id": doc.User.ID,
	})
	return nil
}

// Read helpers ------------------------------------------------------------

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated
}

// IsAdmin reports the signed-in user's admin flag, defaulting to false.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Data == nil {
		return false
	}
	return s.state.Data.User.Admin
}

// Token returns the persisted bearer token, if any.
func (s *Session) Token() (string, bool) { return s.tokens.Token() }

// Document returns a copy of the identity document, if loaded.
func (s *Session) Document() (identity.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Data == nil {
		return identity.Document{}, false
	}
	return *s.state.Data, true
}

// User returns a copy of the signed-in user record, if loaded.
func (s *Session) User() (identity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Data == nil {
		return identity.User{}, false
	}
	return s.state.Data.User, true
}

// Company returns a copy of the session's company record, or nil when absent.
func (s *Session) Company() *identity.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCompany(s.state.company())
}

// Helpers -----------------------------------------------------------------

func (st State) company() *identity.Company {
	if st.Data == nil {
		return nil
	}
	return st.Data.Company
}

func cloneCompany(c *identity.Company) *identity.Company {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

func companiesEqual(a, b *identity.Company) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(*a, *b)
}
