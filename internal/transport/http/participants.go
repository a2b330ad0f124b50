package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataspace/internal/participant/service"
	"dataspace/internal/platform/middleware"
	"dataspace/pkg/httputil"
)

type createParticipantRequest struct {
	TenantName  string         `json:"tenant_name"`
	Name        string         `json:"name"`
	Username    string         `json:"username"`
	CompanyName string         `json:"company_name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Password    string         `json:"password"`
}

func (h *Handler) createParticipant(w http.ResponseWriter, r *http.Request) {
	var req createParticipantRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	participant, err := h.participants.CreateParticipant(r.Context(), middleware.GetIdentity(r.Context()),
		service.CreateRequest{
			TenantName:  req.TenantName,
			Name:        req.Name,
			Username:    req.Username,
			CompanyName: req.CompanyName,
			Description: req.Description,
			Metadata:    req.Metadata,
			Password:    req.Password,
		})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, participant)
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	filter := participantFilter(r)
	participants, total, err := h.participants.ListParticipants(r.Context(),
		middleware.GetIdentity(r.Context()), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Items:  participants,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.participants.Me(r.Context(), middleware.GetIdentity(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := h.participants.GetParticipant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participant)
}

type updateParticipantRequest struct {
	CompanyName *string        `json:"company_name"`
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *Handler) updateParticipant(w http.ResponseWriter, r *http.Request) {
	var req updateParticipantRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	participant, err := h.participants.UpdateParticipant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"), service.UpdateRequest{
			CompanyName: req.CompanyName,
			Description: req.Description,
			Metadata:    req.Metadata,
		})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participant)
}

func (h *Handler) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := h.participants.DeleteParticipant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participant)
}

func (h *Handler) activateParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := h.participants.Activate(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participant)
}
