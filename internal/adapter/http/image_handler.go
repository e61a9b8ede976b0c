package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
)

const routeImages = "/listings/{id}/images"

type galleryResponse struct {
	HaveImage      bool        `json:"haveImage"`
	FirstImagePath *string     `json:"firstImagePath"`
	Images         []imageView `json:"images"`
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.ListImages")
	defer span.End()

	g, err := h.images.List(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, routeImages, err)
		return
	}
	writeJSON(w, http.StatusOK, galleryResponse{
		HaveImage:      g.HaveImage,
		FirstImagePath: g.FirstImagePath,
		Images:         toImageViews(g.Images),
	})
}

type attachResponse struct {
	OK             bool       `json:"ok"`
	Images         []fileView `json:"images"`
	Failed         []fileView `json:"failed"`
	FirstImagePath *string    `json:"firstImagePath"`
}

func (h *Handler) AttachImages(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.AttachImages")
	defer span.End()
	listingID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.writeError(w, r, routeImages, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := readFiles(r.MultipartForm.File[domain.FormFiles])
	if err != nil {
		h.writeError(w, r, routeImages, err)
		return
	}
	mainIndex := 0
	if s := formValue(r.MultipartForm.Value, domain.FormMainIndex); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			mainIndex = n
		}
	}
	span.SetAttributes(attribute.String("listing.id", listingID), attribute.Int("files", len(files)))

	res, err := h.images.Attach(ctx, auth.IdentityFrom(ctx), listingID, files, mainIndex)
	if err != nil {
		span.RecordError(err)
		h.writeError(w, r, routeImages, err)
		return
	}
	writeJSON(w, http.StatusOK, attachResponse{
		OK:             true,
		Images:         toFileViews(res.Uploaded()),
		Failed:         toFileViews(res.Failed()),
		FirstImagePath: res.FirstImagePath,
	})
}

type detachResponse struct {
	OK             bool        `json:"ok"`
	Removed        imageView   `json:"removed"`
	Remaining      []imageView `json:"remaining"`
	HaveImage      bool        `json:"haveImage"`
	FirstImagePath *string     `json:"firstImagePath"`
}

func (h *Handler) DetachImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.DetachImage")
	defer span.End()

	q := r.URL.Query()
	ref := usecase.ImageRef{
		ID:   strings.TrimSpace(q.Get("imageId")),
		Path: strings.TrimSpace(q.Get("url")),
	}
	res, err := h.images.Detach(ctx, auth.IdentityFrom(ctx), chi.URLParam(r, "id"), ref)
	if err != nil {
		h.writeError(w, r, routeImages, err)
		return
	}
	writeJSON(w, http.StatusOK, detachResponse{
		OK:             true,
		Removed:        imageView{ID: res.Removed.ID, ImagePath: res.Removed.Path},
		Remaining:      toImageViews(res.Remaining),
		HaveImage:      res.HaveImage,
		FirstImagePath: res.FirstImagePath,
	})
}
