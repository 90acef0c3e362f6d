package httpapi

import (
	"net/http"
	"strings"

	"github.com/leonanthomaz/firecloud-console/internal/identity"
)

// maxLogoBytes caps the multipart form used for logo uploads.
const maxLogoBytes = 2 << 20

// companyContext resolves the caller's session plus the token and company
// id the upstream company endpoints need.
func (a *API) companyContext(w http.ResponseWriter, r *http.Request) (*gatewaySession, string, int64, bool) {
	gs, ok := a.requireSession(w, r)
	if !ok {
		return nil, "", 0, false
	}
	token, ok := gs.sess.Token()
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return nil, "", 0, false
	}
	company := gs.companies.Resolve()
	if company == nil {
		writeError(w, r, http.StatusNotFound, "no company on this account")
		return nil, "", 0, false
	}
	return gs, token, company.ID, true
}

func (a *API) handleCompany(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		gs, ok := a.requireSession(w, r)
		if !ok {
			return
		}
		company := gs.companies.Resolve()
		if company == nil {
			writeError(w, r, http.StatusNotFound, "no company on this account")
			return
		}
		writeJSON(w, http.StatusOK, company)
	case http.MethodPut:
		a.handleCompanyUpdate(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleCompanyUpdate(w http.ResponseWriter, r *http.Request) {
	gs, token, companyID, ok := a.companyContext(w, r)
	if !ok {
		return
	}
	var patch identity.CompanyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	company, err := gs.companies.Update(r.Context(), token, companyID, patch)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (a *API) handleCompanyLogo(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleLogoUpload(w, r)
	case http.MethodDelete:
		a.handleLogoRemove(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleLogoUpload(w http.ResponseWriter, r *http.Request) {
	gs, token, companyID, ok := a.companyContext(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	company, err := gs.companies.UploadLogo(r.Context(), token, companyID, header.Filename, file)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (a *API) handleLogoRemove(w http.ResponseWriter, r *http.Request) {
	gs, token, companyID, ok := a.companyContext(w, r)
	if !ok {
		return
	}
	company, err := gs.companies.RemoveLogo(r.Context(), token, companyID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// handleInviteLookup serves GET /v1/companies/invite/{code}. The lookup is
// public: signup flows resolve an invite code before any session exists.
func (a *API) handleInviteLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	code := strings.TrimPrefix(r.URL.Path, "/v1/companies/invite/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, r, http.StatusBadRequest, "invalid invite code")
		return
	}
	company, err := a.preview.FetchByInviteCode(r.Context(), code)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}
