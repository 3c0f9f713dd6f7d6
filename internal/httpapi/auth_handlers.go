package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/Moadams/ProjectTracker/internal/auth"
)

const federatedSecretHeader = "X-Federated-Secret"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type federatedRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type principalResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Roles     []auth.RoleName `json:"roles"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reg, err := a.deps.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleFederated is the callback of a trusted upstream that has already
// completed the external handshake.
func (a *API) handleFederated(w http.ResponseWriter, r *http.Request) {
	got := []byte(r.Header.Get(federatedSecretHeader))
	if subtle.ConstantTimeCompare(got, []byte(a.federatedSecret)) != 1 {
		writeError(w, r, http.StatusUnauthorized, "invalid federated secret")
		return
	}
	var req federatedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.deps.Auth.FederatedLogin(r.Context(), req.Email, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	p, err := a.deps.Auth.Me(r.Context(), id.Subject)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{
		ID:        p.ID,
		Email:     p.Email,
		Roles:     p.Roles,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}
