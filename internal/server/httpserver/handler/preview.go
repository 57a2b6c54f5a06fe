package handler

import (
	"net/http"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// handleResolve handles GET /preview/{token}.
//
// Every denial gets the same 404 body; the reason only reaches logs and
// metrics.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	res, err := h.previews.Resolve(r.Context(), r.PathValue("token"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !res.Allowed() {
		h.writeError(w, r, http.StatusNotFound,
			domain.ErrPreviewInvalid.Code, domain.ErrPreviewInvalid.Message, nil)
		return
	}

	h.writeJSON(w, r, http.StatusOK, ResolveResponse{ResourceID: res.ResourceID})
}
