package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// classify maps an error onto its HTTP status and the class name used in
// metrics.
func classify(err error) (int, string) {
	var tooBig *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooBig), errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "media"
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "media"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrListingDeleted), errors.As(err, &invalid):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "authorization"
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "storage"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, class := classify(err)
	h.metrics.RequestError(route, class)

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("Handler: request failed", "route", route, "request_id", chimw.GetReqID(r.Context()), "error", err)
		msg = "internal server error"
	case http.StatusRequestEntityTooLarge:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			msg = domain.ErrPayloadTooLarge.Error()
		}
	case http.StatusUnauthorized:
		msg = domain.ErrUnauthenticated.Error()
	case http.StatusForbidden:
		msg = domain.ErrForbidden.Error()
	default:
		h.logger.Debug("Handler: request rejected", "route", route, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// listingSummary is the list item projection.
type listingSummary struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Price          *float64             `json:"price"`
	Contact        string               `json:"contact,omitempty"`
	FirstImagePath *string              `json:"firstImagePath"`
	IsPublished    bool                 `json:"isPublished"`
	Status         domain.ListingStatus `json:"status"`
	IsSponsored    bool                 `json:"isSponsored"`
	CreatedAt      string               `json:"createdAt"`
}

func toSummary(l *domain.Listing) listingSummary {
	return listingSummary{
		ID:             l.ID,
		Title:          l.Title,
		Price:          l.Price,
		Contact:        l.Contact,
		FirstImagePath: l.FirstImagePath,
		IsPublished:    l.IsPublished,
		Status:         l.Status,
		IsSponsored:    l.IsSponsored,
		CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type listingPage struct {
	Items       []listingSummary `json:"items"`
	Total       int64            `json:"total"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

// publicationView answers a publish toggle.
type publicationView struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          *float64 `json:"price"`
	FirstImagePath *string  `json:"firstImagePath"`
	IsPublished    bool     `json:"isPublished"`
}

type imageView struct {
	ID        string `json:"id"`
	ImagePath string `json:"imagePath"`
}

func toImageViews(images []*domain.Image) []imageView {
	out := make([]imageView, 0, len(images))
	for _, img := range images {
		out = append(out, imageView{ID: img.ID, ImagePath: img.Path})
	}
	return out
}

type fileView struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	IsMain bool   `json:"isMain"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func toFileViews(files []usecase.FileResult) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		v := fileView{Name: f.Name, URL: f.URL, IsMain: f.IsMain, Status: string(f.Status)}
		if f.Err != nil {
			v.Error = "could not be stored"
		}
		out = append(out, v)
	}
	return out
}
