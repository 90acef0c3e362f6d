// Package company caches the company record independently of the session, so
// company-scoped screens can read and write it without a full identity
// re-fetch. The sync with the session is one-way: session changes overwrite
// the snapshot, never the reverse.
package company

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/notify"
	"github.com/leonanthomaz/firecloud-console/internal/obs"
)

// Fixed user-facing messages for company mutations.
const (
	MsgUpdateOK     = "Company settings saved."
	MsgUpdateFailed = "Could not save company settings. Try again."
	MsgLogoOK       = "Company logo updated."
	MsgLogoFailed   = "Could not update the company logo. Try again."
	MsgLookupFailed = "Could not load company data. Try again."
)

// Backend is the slice of the upstream API the cache needs.
type Backend interface {
	CompanyByInviteCode(ctx context.Context, code string) (identity.Company, error)
	CompanyByID(ctx context.Context, token string, companyID int64) (identity.Company, error)
	UpdateCompany(ctx context.Context, token string, companyID int64, patch identity.CompanyPatch) (identity.Company, error)
	UploadLogo(ctx context.Context, token string, companyID int64, filename string, image io.Reader) (identity.Company, error)
	RemoveLogo(ctx context.Context, token string, companyID int64) (identity.Company, error)
}

// SessionView is the read-only slice of the session the cache falls back to.
type SessionView interface {
	Company() *identity.Company
}

// Cache is the independently-mutable copy of the company record. The
// snapshot is only ever overwritten with a full record returned by the
// upstream, so a failed operation never leaves it partially applied.
type Cache struct {
	mu       sync.Mutex
	snapshot *identity.Company
	loading  bool
	err      string

	backend  Backend
	session  SessionView
	notifier notify.Notifier
}

// Option configures Cache behavior.
type Option func(*Cache)

// WithNotifier routes user-facing notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Cache) {
		if n != nil {
			c.notifier = n
		}
	}
}

// New constructs the cache and seeds the snapshot from the session's current
// company record. Callers wire the ongoing sync by registering
// ApplySessionCompany on the session's company observer.
func New(backend Backend, session SessionView, opts ...Option) *Cache {
	c := &Cache{
		backend:  backend,
		session:  session,
		notifier: notify.Discard{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if session != nil {
		c.snapshot = session.Company()
	}
	return c
}

// ApplySessionCompany overwrites the snapshot with the session's new company
// record. Registered as the session's company-change observer; any unsynced
// local value is discarded.
func (c *Cache) ApplySessionCompany(company *identity.Company) {
	c.mu.Lock()
	c.snapshot = cloneCompany(company)
	c.mu.Unlock()
}

// FetchByInviteCode resolves a company through its public invite code. Used
// by unauthenticated chat-preview contexts; overwrites the snapshot.
func (c *Cache) FetchByInviteCode(ctx context.Context, code string) (identity.Company, error) {
	return c.run(ctx, "fetch_by_code", MsgLookupFailed, func() (identity.Company, error) {
		return c.backend.CompanyByInviteCode(ctx, code)
	})
}

// FetchByID loads the full company record; overwrites the snapshot.
func (c *Cache) FetchByID(ctx context.Context, token string, companyID int64) (identity.Company, error) {
	return c.run(ctx, "fetch_by_id", MsgLookupFailed, func() (identity.Company, error) {
		return c.backend.CompanyByID(ctx, token, companyID)
	})
}

// Update sends a partial update and overwrites the snapshot with the full
// record the upstream returns. The session's embedded copy is NOT touched;
// callers who need both views current trigger a session refresh themselves.
func (c *Cache) Update(ctx context.Context, token string, companyID int64, patch identity.CompanyPatch) (identity.Company, error) {
	company, err := c.run(ctx, "update", MsgUpdateFailed, func() (identity.Company, error) {
		return c.backend.UpdateCompany(ctx, token, companyID, patch)
	})
	if err == nil {
		c.notifier.Notify(notify.LevelSuccess, MsgUpdateOK)
	}
	return company, err
}

// UploadLogo replaces the company logo; overwrites the snapshot.
func (c *Cache) UploadLogo(ctx context.Context, token string, companyID int64, filename string, image io.Reader) (identity.Company, error) {
	company, err := c.run(ctx, "upload_logo", MsgLogoFailed, func() (identity.Company, error) {
		return c.backend.UploadLogo(ctx, token, companyID, filename, image)
	})
	if err == nil {
		c.notifier.Notify(notify.LevelSuccess, MsgLogoOK)
	}
	return company, err
}

// RemoveLogo deletes the company logo; overwrites the snapshot.
func (c *Cache) RemoveLogo(ctx context.Context, token string, companyID int64) (identity.Company, error) {
	company, err := c.run(ctx, "remove_logo", MsgLogoFailed, func() (identity.Company, error) {
		return c.backend.RemoveLogo(ctx, token, companyID)
	})
	if err == nil {
		c.notifier.Notify(notify.LevelSuccess, MsgLogoOK)
	}
	return company, err
}

// ReplaceLocal overwrites the snapshot without a network call, for callers
// that already hold a fresher record.
func (c *Cache) ReplaceLocal(company *identity.Company) {
	c.mu.Lock()
	c.snapshot = cloneCompany(company)
	c.err = ""
	c.mu.Unlock()
}

// SyncFromSession force-overwrites the snapshot from the session's current
// company record, including clearing it when the session has none.
func (c *Cache) SyncFromSession() {
	if c.session == nil {
		return
	}
	c.ApplySessionCompany(c.session.Company())
}

// Resolve returns the company visible to readers: the snapshot when present,
// else the session's embedded record, else nil.
func (c *Cache) Resolve() *identity.Company {
	c.mu.Lock()
	snap := cloneCompany(c.snapshot)
	c.mu.Unlock()
	if snap != nil {
		return snap
	}
	if c.session != nil {
		return c.session.Company()
	}
	return nil
}

// Loading reports whether an operation is in flight.
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last operation's stored error message, if any.
func (c *Cache) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// run is the shared operation wrapper: loading on, error cleared; on success
// the snapshot is overwritten; on failure the message is stored, the user
// notified and the error rethrown; loading always settles.
func (c *Cache) run(ctx context.Context, op, failMsg string, fn func() (identity.Company, error)) (identity.Company, error) {
	c.mu.Lock()
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	company, err := fn()

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = failMsg
	} else {
		c.snapshot = cloneCompany(&company)
	}
	c.mu.Unlock()

	if err != nil {
		c.notifier.Notify(notify.LevelError, failMsg)
		obs.ObserveCompanyOp(op, "failure")
		obs.LogEvent("warn", "company operation failed", map[string]any{
			"op":    op,
			"error": err.Error(),
		})
		return identity.Company{}, fmt.Errorf("company: %s: %w", op, err)
	}
	obs.ObserveCompanyOp(op, "success")
	return company, nil
}

func cloneCompany(c *identity.Company) *identity.Company {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
