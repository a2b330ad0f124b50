package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataspace/internal/platform/middleware"
	"dataspace/pkg/httputil"
)

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	ops, total, err := h.operations.Query(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"), operationEventType(r), offset, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Items:  ops,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *Handler) latestOperation(w http.ResponseWriter, r *http.Request) {
	op, err := h.operations.Latest(r.Context(), middleware.GetIdentity(r.Context()),
		chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, op)
}
