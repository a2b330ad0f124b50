package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataspace/internal/platform/middleware"
	"dataspace/internal/tenant/service"
	"dataspace/pkg/httputil"
)

type createTenantRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Password    string         `json:"password"`
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tenant, err := h.tenants.CreateTenant(r.Context(), middleware.GetIdentity(r.Context()), service.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
		Password:    req.Password,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	filter := tenantFilter(r)
	tenants, total, err := h.tenants.ListTenants(r.Context(), middleware.GetIdentity(r.Context()), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Items:  tenants,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.GetTenant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) getTenantByName(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.GetTenantByName(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "tenantName"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

type updateTenantRequest struct {
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *Handler) updateTenant(w http.ResponseWriter, r *http.Request) {
	var req updateTenantRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tenant, err := h.tenants.UpdateTenant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "tenantID"), service.UpdateRequest{
			Description: req.Description,
			Metadata:    req.Metadata,
		})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) deleteTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.DeleteTenant(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}
