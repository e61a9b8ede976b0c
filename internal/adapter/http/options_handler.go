package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

// Options lists taxonomy children: types at the root, their categories and
// sub-categories, and the region and sub-region trees by tag.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.Options")
	defer span.End()

	nodes := []domain.TaxonomyNode{}
	if h.taxonomy != nil {
		q := r.URL.Query()
		found, err := h.taxonomy.Children(ctx, strings.TrimSpace(q.Get("parentId")), strings.TrimSpace(q.Get("tag")))
		if err != nil {
			h.writeError(w, r, "/options", err)
			return
		}
		if found != nil {
			nodes = found
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"options": nodes})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("Handler.Health: store unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
