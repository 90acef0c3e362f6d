package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/tokenstore"
)

// fakeUpstream is an in-memory stand-in for the platform backend.
type fakeUpstream struct {
	token    string
	password string
	doc      identity.Document

	updateErr  error
	companyErr error
}

var _ Upstream = (*fakeUpstream)(nil)

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		token:    "tok-live",
		password: "s3cret",
		doc: identity.Document{
			User: identity.User{
				ID:        7,
				FirstName: "Leona",
				Email:     "leona@firecloud.dev",
				Username:  "leona",
			},
			Company: &identity.Company{
				ID:         31,
				InviteCode: "FC-1234",
				Name:       "Firecloud Ltda",
				Status:     "active",
			},
		},
	}
}

func (f *fakeUpstream) ExchangeCredentials(_ context.Context, identifier, secret string) (string, error) {
	if identifier == f.doc.User.Email && secret == f.password {
		return f.token, nil
	}
	return "", fmt.Errorf("%w: bad credentials", identity.ErrUnauthorized)
}

func (f *fakeUpstream) ExchangeGoogleToken(_ context.Context, providerToken string) (string, error) {
	if providerToken == "google-ok" {
		return f.token, nil
	}
	return "", fmt.Errorf("%w: google rejected", identity.ErrUnauthorized)
}

func (f *fakeUpstream) FetchIdentity(_ context.Context, token string) (identity.Document, error) {
	if token != f.token {
		return identity.Document{}, fmt.Errorf("%w: unknown token", identity.ErrUnauthorized)
	}
	doc := f.doc
	doc.Token = token
	return doc, nil
}

func (f *fakeUpstream) UpdateUser(_ context.Context, token string, userID int64, patch identity.UserPatch) (identity.UserPatch, error) {
	if f.updateErr != nil {
		return identity.UserPatch{}, f.updateErr
	}
	if token != f.token || userID != f.doc.User.ID {
		return identity.UserPatch{}, fmt.Errorf("%w: unknown user", identity.ErrNotFound)
	}
	return patch, nil
}

func (f *fakeUpstream) CompanyByInviteCode(_ context.Context, code string) (identity.Company, error) {
	if f.companyErr != nil {
		return identity.Company{}, f.companyErr
	}
	if code != f.doc.Company.InviteCode {
		return identity.Company{}, fmt.Errorf("%w: unknown code", identity.ErrNotFound)
	}
	return *f.doc.Company, nil
}

func (f *fakeUpstream) CompanyByID(_ context.Context, token string, companyID int64) (identity.Company, error) {
	if f.companyErr != nil {
		return identity.Company{}, f.companyErr
	}
	if token != f.token || companyID != f.doc.Company.ID {
		return identity.Company{}, fmt.Errorf("%w: unknown company", identity.ErrNotFound)
	}
	return *f.doc.Company, nil
}

func (f *fakeUpstream) UpdateCompany(_ context.Context, token string, companyID int64, patch identity.CompanyPatch) (identity.Company, error) {
	if f.companyErr != nil {
		return identity.Company{}, f.companyErr
	}
	updated := *f.doc.Company
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	return updated, nil
}

func (f *fakeUpstream) UploadLogo(_ context.Context, token string, companyID int64, filename string, image io.Reader) (identity.Company, error) {
	if f.companyErr != nil {
		return identity.Company{}, f.companyErr
	}
	if _, err := io.ReadAll(image); err != nil {
		return identity.Company{}, err
	}
	updated := *f.doc.Company
	updated.LogoURL = "https://cdn.firecloud.dev/logos/" + filename
	return updated, nil
}

func (f *fakeUpstream) RemoveLogo(_ context.Context, token string, companyID int64) (identity.Company, error) {
	if f.companyErr != nil {
		return identity.Company{}, f.companyErr
	}
	updated := *f.doc.Company
	updated.LogoURL = ""
	return updated, nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	cookie  string
	t       *testing.T
}

func newTestAPI(t *testing.T, up *fakeUpstream) *apiClient {
	t.Helper()

	sessions := NewRegistry(up, nil, time.Hour)
	api := New(up, sessions, Options{
		Version:       "test",
		CookieName:    tokenstore.DefaultCookieName,
		CookieTTL:     time.Hour,
		RateBurst:     100,
		RatePerSecond: 100,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	c.captureCookie(resp)
	return resp
}

// captureCookie keeps the session cookie between calls, the way a browser
// would. Secure cookies do not survive a plain-HTTP cookie jar, so this is
// done by hand.
func (c *apiClient) captureCookie(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != tokenstore.DefaultCookieName {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			c.cookie = ""
			continue
		}
		c.cookie = ck.Name + "=" + ck.Value
	}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func (c *apiClient) login(t *testing.T) {
	t.Helper()
	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "leona@firecloud.dev",
		"password":   "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if c.cookie == "" {
		t.Fatal("login: expected session cookie")
	}
}

func TestLoginSetsCookieAndReturnsIdentity(t *testing.T) {
	up := newFakeUpstream()
	c := newTestAPI(t, up)

	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "leona@firecloud.dev",
		"password":   "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body sessionResponse
	decodeBody(t, resp, &body)
	if !body.Authenticated {
		t.Fatal("expected authenticated session")
	}
	if body.User == nil || body.User.Email != "leona@firecloud.dev" {
		t.Fatalf("unexpected user: %+v", body.User)
	}
	if body.Company == nil || body.Company.Name != "Firecloud Ltda" {
		t.Fatalf("unexpected company: %+v", body.Company)
	}
	if !strings.Contains(c.cookie, up.token) {
		t.Fatalf("cookie does not carry the session token: %q", c.cookie)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "leona@firecloud.dev",
		"password":   "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Fatal("expected error message in body")
	}
	if c.cookie != "" {
		t.Fatal("failed login must not set a session cookie")
	}
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "leona@firecloud.dev",
		"password":   "s3cret",
		"remember":   "yes",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGoogleLogin(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodPost, "/v1/session/google", map[string]string{
		"token": "google-ok",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if c.cookie == "" {
		t.Fatal("expected session cookie")
	}
}

func TestSessionRequiresCookie(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodGet, "/v1/session", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSessionRestoresFromUnseenToken(t *testing.T) {
	up := newFakeUpstream()
	c := newTestAPI(t, up)

	// The gateway has never seen this token: a browser returning after a
	// gateway restart. The session must come back from the cookie alone.
	c.cookie = tokenstore.DefaultCookieName + "=" + up.token

	resp := c.do(http.MethodGet, "/v1/session", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body sessionResponse
	decodeBody(t, resp, &body)
	if !body.Authenticated || body.User == nil {
		t.Fatalf("expected restored session, got %+v", body)
	}
}

func TestSessionRestoreFailureClearsCookie(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	c.cookie = tokenstore.DefaultCookieName + "=tok-revoked"

	resp := c.do(http.MethodGet, "/v1/session", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if c.cookie != "" {
		t.Fatal("expected the stale cookie to be cleared")
	}
}

func TestUserUpdateMergesPartial(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())
	c.login(t)

	resp := c.do(http.MethodPatch, "/v1/session/user", map[string]string{
		"first_name": "Leona Maria",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var user identity.User
	decodeBody(t, resp, &user)
	if user.FirstName != "Leona Maria" {
		t.Fatalf("expected patched first name, got %q", user.FirstName)
	}
	if user.Email != "leona@firecloud.dev" {
		t.Fatalf("untouched fields must survive the merge, got %q", user.Email)
	}
}

func TestUserUpdateFailurePropagates(t *testing.T) {
	up := newFakeUpstream()
	up.updateErr = fmt.Errorf("%w: backend down", identity.ErrUnavailable)
	c := newTestAPI(t, up)
	c.login(t)

	resp := c.do(http.MethodPatch, "/v1/session/user", map[string]string{
		"first_name": "X",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestUserUpdateRejectsEmptyPatch(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())
	c.login(t)

	resp := c.do(http.MethodPatch, "/v1/session/user", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())
	c.login(t)

	resp := c.do(http.MethodPost, "/v1/session/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if c.cookie != "" {
		t.Fatal("expected cookie to be cleared")
	}

	// Logout never fails, even without a session to tear down.
	resp = c.do(http.MethodPost, "/v1/session/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout without session: expected 204, got %d", resp.StatusCode)
	}
}

func TestCompanyRoundTrip(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())
	c.login(t)

	resp := c.do(http.MethodGet, "/v1/company", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET company: expected 200, got %d", resp.StatusCode)
	}
	var got identity.Company
	decodeBody(t, resp, &got)
	if got.Name != "Firecloud Ltda" {
		t.Fatalf("unexpected company name %q", got.Name)
	}

	resp = c.do(http.MethodPut, "/v1/company", map[string]string{
		"name": "Firecloud SA",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT company: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &got)
	if got.Name != "Firecloud SA" {
		t.Fatalf("expected updated name, got %q", got.Name)
	}

	// The snapshot now serves reads without another upstream call.
	resp = c.do(http.MethodGet, "/v1/company", nil)
	decodeBody(t, resp, &got)
	if got.Name != "Firecloud SA" {
		t.Fatalf("expected snapshot to win, got %q", got.Name)
	}
}

func TestCompanyUpdateFailureKeepsSnapshot(t *testing.T) {
	up := newFakeUpstream()
	c := newTestAPI(t, up)
	c.login(t)

	up.companyErr = fmt.Errorf("%w: backend down", identity.ErrUnavailable)
	resp := c.do(http.MethodPut, "/v1/company", map[string]string{"name": "X"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	up.companyErr = nil
	resp = c.do(http.MethodGet, "/v1/company", nil)
	var got identity.Company
	decodeBody(t, resp, &got)
	if got.Name != "Firecloud Ltda" {
		t.Fatalf("snapshot must survive a failed update, got %q", got.Name)
	}
}

func TestLogoUploadAndRemove(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())
	c.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "logo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/company/logo", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Cookie", c.cookie)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}
	var got identity.Company
	decodeBody(t, resp, &got)
	if !strings.HasSuffix(got.LogoURL, "logo.png") {
		t.Fatalf("expected logo URL, got %q", got.LogoURL)
	}

	resp = c.do(http.MethodDelete, "/v1/company/logo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", resp.StatusCode)
	}
	got = identity.Company{}
	decodeBody(t, resp, &got)
	if got.LogoURL != "" {
		t.Fatalf("expected empty logo URL, got %q", got.LogoURL)
	}
}

func TestInviteLookupIsPublic(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodGet, "/v1/companies/invite/FC-1234", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got identity.Company
	decodeBody(t, resp, &got)
	if got.InviteCode != "FC-1234" {
		t.Fatalf("unexpected company: %+v", got)
	}

	resp = c.do(http.MethodGet, "/v1/companies/invite/NOPE", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthAndInfo(t *testing.T) {
	c := newTestAPI(t, newFakeUpstream())

	resp := c.do(http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["service"] != "firecloud-console" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = c.do(http.MethodGet, "/v1/info", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", resp.StatusCode)
	}
}
