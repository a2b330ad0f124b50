// Package http exposes the REST API: tenants, participants, credentials,
// and the per-participant audit trail. Handlers stay thin; every request
// resolves the caller's identity once and hands it to a workflow.
package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	credmodels "dataspace/internal/credential/models"
	credservice "dataspace/internal/credential/service"
	opmodels "dataspace/internal/operation/models"
	opservice "dataspace/internal/operation/service"
	pmodels "dataspace/internal/participant/models"
	pservice "dataspace/internal/participant/service"
	tenantmodels "dataspace/internal/tenant/models"
	tenantservice "dataspace/internal/tenant/service"
)

// Handler serves the REST API.
type Handler struct {
	tenants      *tenantservice.Service
	participants *pservice.Service
	credentials  *credservice.Service
	operations   *opservice.Service
}

// NewHandler wires the API handler.
func NewHandler(tenants *tenantservice.Service, participants *pservice.Service,
	credentials *credservice.Service, operations *opservice.Service) *Handler {
	return &Handler{
		tenants:      tenants,
		participants: participants,
		credentials:  credentials,
		operations:   operations,
	}
}

// Routes mounts the API. Callers attach authentication before mounting.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.createTenant)
		r.Get("/", h.listTenants)
		r.Get("/name/{tenantName}", h.getTenantByName)
		r.Get("/{tenantID}", h.getTenant)
		r.Patch("/{tenantID}", h.updateTenant)
		r.Delete("/{tenantID}", h.deleteTenant)
	})

	r.Route("/participants", func(r chi.Router) {
		r.Post("/", h.createParticipant)
		r.Get("/", h.listParticipants)
		r.Get("/me", h.me)
		r.Get("/{participantID}", h.getParticipant)
		r.Patch("/{participantID}", h.updateParticipant)
		r.Delete("/{participantID}", h.deleteParticipant)
		r.Post("/{participantID}/activate", h.activateParticipant)

		r.Post("/{participantID}/credentials", h.requestCredentials)
		r.Get("/{participantID}/credentials", h.listCredentials)

		r.Get("/{participantID}/operations", h.listOperations)
		r.Get("/{participantID}/operations/latest", h.latestOperation)
	})

	r.Route("/credentials", func(r chi.Router) {
		r.Get("/{credentialID}", h.getCredential)
		r.Patch("/{credentialID}/status", h.updateCredentialStatus)
		r.Patch("/{credentialID}/details", h.updateCredentialDetails)
	})
}

// listResponse is the shared paged envelope.
type listResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func paging(r *http.Request) (limit, offset int) {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// filter helpers keep query parsing in one place per resource.

func tenantFilter(r *http.Request) tenantmodels.Filter {
	limit, offset := paging(r)
	return tenantmodels.Filter{
		Status: tenantmodels.Status(r.URL.Query().Get("status")),
		Name:   r.URL.Query().Get("name"),
		Limit:  limit,
		Offset: offset,
	}
}

func participantFilter(r *http.Request) pmodels.Filter {
	limit, offset := paging(r)
	return pmodels.Filter{
		State:  pmodels.State(r.URL.Query().Get("state")),
		Name:   r.URL.Query().Get("name"),
		Limit:  limit,
		Offset: offset,
	}
}

func credentialStatus(r *http.Request) credmodels.Status {
	return credmodels.Status(r.URL.Query().Get("status"))
}

func operationEventType(r *http.Request) opmodels.EventType {
	return opmodels.EventType(r.URL.Query().Get("event_type"))
}
