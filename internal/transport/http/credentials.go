package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dataspace/internal/credential/models"
	"dataspace/internal/credential/service"
	"dataspace/internal/platform/middleware"
	"dataspace/pkg/httputil"
)

type requestCredentialsRequest struct {
	Credentials []models.Spec `json:"credentials"`
}

func (h *Handler) requestCredentials(w http.ResponseWriter, r *http.Request) {
	var req requestCredentialsRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.credentials.RequestCredentials(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"), req.Credentials)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, listResponse{Items: batch, Total: len(batch)})
}

func (h *Handler) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.ListCredentials(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"), credentialStatus(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Items: creds, Total: len(creds)})
}

func (h *Handler) getCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentials.GetCredential(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

type updateCredentialStatusRequest struct {
	Status models.Status `json:"status"`
}

func (h *Handler) updateCredentialStatus(w http.ResponseWriter, r *http.Request) {
	var req updateCredentialStatusRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.UpdateStatus(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "credentialID"), req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

type updateCredentialDetailsRequest struct {
	CredentialType string     `json:"credential_type"`
	Format         string     `json:"format"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (h *Handler) updateCredentialDetails(w http.ResponseWriter, r *http.Request) {
	var req updateCredentialDetailsRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.UpdateDetails(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "credentialID"), service.DetailsUpdate{
			CredentialType: req.CredentialType,
			Format:         req.Format,
			ExpiresAt:      req.ExpiresAt,
		})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}
