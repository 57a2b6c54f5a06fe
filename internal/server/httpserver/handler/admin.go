package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
)

// handleListTokens handles GET /admin/v1/tokens.
func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	perPage, err := queryInt(r, "per_page", service.DefaultPageSize)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	list, err := h.previews.List(r.Context(), page, perPage)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	now := time.Now()
	titles := make(map[int64]string)
	items := make([]TokenResponse, 0, len(list.Items))
	for _, rec := range list.Items {
		item := newTokenResponse(rec, now)
		title, ok := titles[rec.ResourceID]
		if !ok {
			title = h.resourceTitle(r, rec.ResourceID)
			titles[rec.ResourceID] = title
		}
		item.ResourceTitle = title
		items = append(items, item)
	}

	h.writeJSON(w, r, http.StatusOK, ListTokensResponse{
		Items:   items,
		Total:   list.Total,
		Page:    list.Page,
		PerPage: list.PageSize,
	})
}

func (h *Handler) resourceTitle(r *http.Request, id int64) string {
	res, err := h.resources.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrResourceNotFound) {
			h.logger.Warn("resource lookup failed", "resource_id", id, "error", err)
			return ""
		}
		return DeletedResourceTitle
	}
	return res.Title
}

// handleRevokeByID handles POST /admin/v1/tokens/{id}/revoke.
func (h *Handler) handleRevokeByID(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.previews.RevokeByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, RevokeResponse{Revoked: revoked})
}

// handleGetSettings handles GET /admin/v1/settings.
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, st)
}

// handleUpdateSettings handles POST /admin/v1/settings.
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	st, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, st)
}

// handleListResources handles GET /admin/v1/resources.
func (h *Handler) handleListResources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.resources.List(r.Context()))
}

// handlePutResource handles PUT /admin/v1/resources/{id}.
func (h *Handler) handlePutResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var res domain.Resource
	if err := decodeJSON(r, &res); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if res.ID != 0 && res.ID != id {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("body id does not match path"))
		return
	}
	res.ID = id

	created, err := h.resources.Upsert(r.Context(), &res)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, r, status, res)
}

// handleDeleteResource handles DELETE /admin/v1/resources/{id}.
func (h *Handler) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if err := h.resources.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"deleted": true, "id": id})
}
