// Package upstream is the HTTP client for the Firecloud REST API: credential
// exchange, identity fetch and the company endpoints. It is the only place
// that talks to the backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/identity"
)

const defaultTimeout = 15 * time.Second

// Client wraps the upstream REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (timeouts, transport).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a client with sensible defaults.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type googleRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// ExchangeCredentials trades identifier+secret for a bearer token.
func (c *Client) ExchangeCredentials(ctx context.Context, identifier, secret string) (string, error) {
	var resp tokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", "", credentialsRequest{
		Identifier: identifier,
		Password:   secret,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ExchangeGoogleToken trades a Google-issued token for the backend's own.
func (c *Client) ExchangeGoogleToken(ctx context.Context, providerToken string) (string, error) {
	var resp tokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/google", "", googleRequest{Token: providerToken}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// FetchIdentity retrieves the composite user+company document for the token.
func (c *Client) FetchIdentity(ctx context.Context, token string) (identity.Document, error) {
	var doc identity.Document
	if err := c.doJSON(ctx, http.MethodGet, "/v1/auth/me", token, nil, &doc); err != nil {
		return identity.Document{}, err
	}
	if doc.Token == "" {
		doc.Token = token
	}
	return doc, nil
}

// UpdateUser patches user fields. The upstream may echo back only the fields
// it changed; callers merge.
func (c *Client) UpdateUser(ctx context.Context, token string, userID int64, patch identity.UserPatch) (identity.UserPatch, error) {
	var resp identity.UserPatch
	path := fmt.Sprintf("/v1/users/%d", userID)
	if err := c.doJSON(ctx, http.MethodPatch, path, token, patch, &resp); err != nil {
		return identity.UserPatch{}, err
	}
	return resp, nil
}

// CompanyByInviteCode looks a company up without authentication, used for the
// public chat-preview context.
func (c *Client) CompanyByInviteCode(ctx context.Context, code string) (identity.Company, error) {
	var company identity.Company
	path := "/v1/companies/code/" + code
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &company); err != nil {
		return identity.Company{}, err
	}
	return company, nil
}

// CompanyByID fetches the full company record.
func (c *Client) CompanyByID(ctx context.Context, token string, companyID int64) (identity.Company, error) {
	var company identity.Company
	path := fmt.Sprintf("/v1/companies/%d", companyID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &company); err != nil {
		return identity.Company{}, err
	}
	return company, nil
}

// UpdateCompany sends a partial update and returns the full record the
// upstream answers with.
func (c *Client) UpdateCompany(ctx context.Context, token string, companyID int64, patch identity.CompanyPatch) (identity.Company, error) {
	var company identity.Company
	path := fmt.Sprintf("/v1/companies/%d", companyID)
	if err := c.doJSON(ctx, http.MethodPut, path, token, patch, &company); err != nil {
		return identity.Company{}, err
	}
	return company, nil
}

// UploadLogo sends the image as multipart form data and returns the full
// company record.
func (c *Client) UploadLogo(ctx context.Context, token string, companyID int64, filename string, image io.Reader) (identity.Company, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return identity.Company{}, fmt.Errorf("upstream: build multipart: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return identity.Company{}, fmt.Errorf("upstream: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return identity.Company{}, fmt.Errorf("upstream: close multipart: %w", err)
	}

	path := fmt.Sprintf("/v1/companies/%d/logo", companyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return identity.Company{}, fmt.Errorf("upstream: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setBearer(req, token)

	var company identity.Company
	if err := c.send(req, &company); err != nil {
		return identity.Company{}, err
	}
	return company, nil
}

// RemoveLogo deletes the company logo and returns the full record.
func (c *Client) RemoveLogo(ctx context.Context, token string, companyID int64) (identity.Company, error) {
	var company identity.Company
	path := fmt.Sprintf("/v1/companies/%d/logo", companyID)
	if err := c.doJSON(ctx, http.MethodDelete, path, token, nil, &company); err != nil {
		return identity.Company{}, err
	}
	return company, nil
}

// Helpers -----------------------------------------------------------------

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("upstream: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("upstream: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setBearer(req, token)
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", identity.ErrUnavailable, err)
	}
	return nil
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func mapStatus(resp *http.Response) error {
	var sentinel error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		sentinel = identity.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		sentinel = identity.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		sentinel = identity.ErrInvalidInput
	default:
		sentinel = identity.ErrUnavailable
	}

	msg := ""
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		if body.Error != "" {
			msg = body.Error
		} else {
			msg = body.Message
		}
	}
	if msg == "" {
		return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
