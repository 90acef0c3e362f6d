package httpapi

import (
	"net/http"
	"strings"

	"github.com/leonanthomaz/firecloud-console/internal/identity"
	"github.com/leonanthomaz/firecloud-console/internal/tokenstore"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *identity.User    `json:"user,omitempty"`
	Company       *identity.Company `json:"company,omitempty"`
}

func (a *API) sessionResponse(gs *gatewaySession) sessionResponse {
	resp := sessionResponse{Authenticated: gs.sess.IsAuthenticated()}
	if user, ok := gs.sess.User(); ok {
		resp.User = &user
	}
	resp.Company = gs.companies.Resolve()
	return resp
}

// requireSession resolves the caller's live session from the cookie,
// restoring it from the token when the gateway has not seen it yet. On
// failure the cookie is cleared and a 401 written.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) (*gatewaySession, bool) {
	token, ok := tokenstore.FromRequest(r, a.cookieName)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return nil, false
	}
	gs, ok := a.sessions.Restore(r.Context(), token)
	if !ok {
		http.SetCookie(w, tokenstore.ExpiredCookie(a.cookieName))
		writeError(w, r, http.StatusUnauthorized, "session expired")
		return nil, false
	}
	return gs, true
}

// handleSession serves GET /v1/session: the restore/me endpoint the
// dashboard calls on load.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	gs, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.sessionResponse(gs))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "identifier and password are required")
		return
	}

	gs := a.sessions.Begin()
	if err := gs.sess.Login(r.Context(), req.Identifier, req.Password); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.finishLogin(w, gs)
}

func (a *API) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	gs := a.sessions.Begin()
	if err := gs.sess.LoginWithGoogle(r.Context(), req.Token); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.finishLogin(w, gs)
}

// finishLogin indexes the session and hands the browser its cookie.
func (a *API) finishLogin(w http.ResponseWriter, gs *gatewaySession) {
	token, _ := gs.sess.Token()
	a.sessions.Bind(token, gs)
	http.SetCookie(w, tokenstore.NewCookie(a.cookieName, token, a.cookieTTL))
	writeJSON(w, http.StatusOK, a.sessionResponse(gs))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	// Logout cannot fail: even without a live session the cookie is cleared.
	if token, ok := tokenstore.FromRequest(r, a.cookieName); ok {
		if gs, found := a.sessions.Restore(r.Context(), token); found {
			gs.sess.Logout(r.Context())
		}
		a.sessions.Drop(token)
	}
	http.SetCookie(w, tokenstore.ExpiredCookie(a.cookieName))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	gs, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	var patch identity.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if patch.IsZero() {
		writeError(w, r, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := gs.sess.UpdateUserFields(r.Context(), patch); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	user, _ := gs.sess.User()
	writeJSON(w, http.StatusOK, user)
}
