package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
)

const (
	routeListings      = "/listings"
	routeListing       = "/listings/{id}"
	routeListingStatus = "/listings/{id}/status"
	routeListingSponsr = "/listings/{id}/sponsor"
)

type createResponse struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Status         domain.ListingStatus `json:"status"`
	IsPublished    bool                 `json:"isPublished"`
	IsSponsored    bool                 `json:"isSponsored"`
	HaveImage      bool                 `json:"haveImage"`
	FirstImagePath *string              `json:"firstImagePath"`
	Images         []fileView           `json:"images"`
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.CreateListing")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.writeError(w, r, routeListings, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	fields, mainIndex, err := parseListingForm(r.MultipartForm)
	if err != nil {
		h.writeError(w, r, routeListings, err)
		return
	}
	files, err := readFiles(r.MultipartForm.File[domain.FormFiles])
	if err != nil {
		h.writeError(w, r, routeListings, err)
		return
	}

	res, err := h.listings.Create(ctx, auth.IdentityFrom(ctx), usecase.CreateInput{
		Fields:    fields,
		Files:     files,
		MainIndex: mainIndex,
	})
	if err != nil {
		span.RecordError(err)
		h.writeError(w, r, routeListings, err)
		return
	}
	span.SetAttributes(attribute.String("listing.id", res.Listing.ID))

	out := createResponse{
		ID:             res.Listing.ID,
		Title:          res.Listing.Title,
		Status:         res.Listing.Status,
		IsPublished:    res.Listing.IsPublished,
		IsSponsored:    res.Listing.IsSponsored,
		HaveImage:      res.Listing.HaveImage,
		FirstImagePath: res.Listing.FirstImagePath,
		Images:         []fileView{},
	}
	if res.Images != nil {
		out.Images = toFileViews(res.Images.Files)
	}
	writeJSON(w, http.StatusCreated, out)
}

func formValue(form map[string][]string, key string) string {
	if v := form[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func parseFormBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "false", "0", "off", "no":
		return false, nil
	case "true", "1", "on", "yes":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// parseListingForm reads the creation form. Syntax errors are reported per
// field; semantic checks belong to the usecase.
func parseListingForm(form *multipart.Form) (domain.ListingFields, int, error) {
	v := form.Value
	fe := domain.FieldErrors{}
	f := domain.ListingFields{
		TypeID:           formValue(v, domain.FormTypeID),
		CategoryID:       formValue(v, domain.FormCategoryID),
		SubCategoryID:    formValue(v, domain.FormSubCategoryID),
		Description:      formValue(v, domain.FormDescription),
		Contact:          formValue(v, domain.FormContact),
		RegionID:         formValue(v, domain.FormRegionID),
		SubRegionID:      formValue(v, domain.FormSubRegionID),
		TypeName:         formValue(v, domain.FormTypeName),
		TypeNameAr:       formValue(v, domain.FormTypeNameAr),
		CategoryName:     formValue(v, domain.FormCategoryName),
		CategoryNameAr:   formValue(v, domain.FormCategoryNameAr),
		ClassificationFr: formValue(v, domain.FormClassificationFr),
		ClassificationAr: formValue(v, domain.FormClassificationAr),
	}

	if s := formValue(v, domain.FormPrice); s != "" {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			fe.Add(domain.FormPrice, "price must be a number")
		} else {
			f.Price = &p
		}
	}
	for key, dst := range map[string]*bool{
		domain.FormIsBroker:    &f.IsBroker,
		domain.FormIsPublished: &f.IsPublished,
		domain.FormIsSponsored: &f.IsSponsored,
	} {
		b, err := parseFormBool(formValue(v, key))
		if err != nil {
			fe.Add(key, "must be true or false")
			continue
		}
		*dst = b
	}
	if s := formValue(v, domain.FormDirectNegotiation); s != "" {
		b, err := parseFormBool(s)
		if err != nil {
			fe.Add(domain.FormDirectNegotiation, "must be true or false")
		} else {
			f.DirectNegotiation = &b
		}
	}

	mainIndex := 0
	if s := formValue(v, domain.FormMainIndex); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			mainIndex = n
		}
	}
	return f, mainIndex, fe.OrNil()
}

// queryFilter reads the list filters. published and status default to
// false and active; "all" lifts either constraint.
func queryFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	var f domain.Filter

	switch p := strings.ToLower(q.Get("published")); p {
	case "all":
	case "":
		f.Published = new(bool)
	default:
		b, err := strconv.ParseBool(p)
		if err != nil {
			return f, domain.Validationf("published must be true, false or all")
		}
		f.Published = &b
	}

	switch s := domain.ListingStatus(strings.ToLower(q.Get("status"))); {
	case s == "all":
	case s == "":
		f.Status = domain.StatusActive
	case s.Valid():
		f.Status = s
	default:
		return f, domain.Validationf("status must be active, deleted or all")
	}

	f.Contact = strings.TrimSpace(q.Get("phone"))

	if s := q.Get("startDate"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return f, domain.Validationf("startDate: %v", err)
		}
		f.From = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return f, domain.Validationf("endDate: %v", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}

	f.Page = 1
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return f, domain.Validationf("page must be a positive integer")
		}
		f.Page = n
	}
	return f, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, errors.New("expected YYYY-MM-DD or RFC 3339")
	}
	return t, true, nil
}

func (h *Handler) QueryListings(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.QueryListings")
	defer span.End()

	filter, err := queryFilter(r)
	if err != nil {
		h.writeError(w, r, routeListings, err)
		return
	}
	page, err := h.listings.Query(ctx, auth.IdentityFrom(ctx), filter)
	if err != nil {
		h.writeError(w, r, routeListings, err)
		return
	}

	out := listingPage{
		Items:       make([]listingSummary, 0, len(page.Items)),
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
	}
	for _, l := range page.Items {
		out.Items = append(out.Items, toSummary(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.GetListing")
	defer span.End()

	listing, err := h.listings.Get(ctx, auth.IdentityFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, routeListing, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type updateRequest struct {
	TypeID        *string  `json:"typeId" validate:"omitempty,max=64"`
	CategoryID    *string  `json:"categoryId" validate:"omitempty,max=64"`
	SubCategoryID *string  `json:"subCategoryId" validate:"omitempty,max=64"`
	Description   *string  `json:"description" validate:"omitempty,max=10000"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
	ClearPrice    bool     `json:"clearPrice"`
	RegionID      *string  `json:"regionId" validate:"omitempty,max=64"`
	SubRegionID   *string  `json:"subRegionId" validate:"omitempty,max=64"`
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return domain.Validationf("invalid JSON body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return domain.Validationf("%v", err)
	}
	return nil
}

func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.UpdateListing")
	defer span.End()

	var req updateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, routeListing, err)
		return
	}
	patch := domain.ListingPatch{
		TypeID:        req.TypeID,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		Description:   req.Description,
		Price:         req.Price,
		ClearPrice:    req.ClearPrice,
		RegionID:      req.RegionID,
		SubRegionID:   req.SubRegionID,
	}
	if patch.IsEmpty() {
		h.writeError(w, r, routeListing, domain.Validationf("nothing to update"))
		return
	}

	listing, err := h.listings.Update(ctx, auth.IdentityFrom(ctx), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, routeListing, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type statusRequest struct {
	IsPublished *bool `json:"isPublished" validate:"required"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.SetStatus")
	defer span.End()

	var req statusRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, routeListingStatus, err)
		return
	}
	listing, err := h.listings.SetPublished(ctx, auth.IdentityFrom(ctx), chi.URLParam(r, "id"), *req.IsPublished)
	if err != nil {
		h.writeError(w, r, routeListingStatus, err)
		return
	}
	writeJSON(w, http.StatusOK, publicationView{
		ID:             listing.ID,
		Title:          listing.Title,
		Price:          listing.Price,
		FirstImagePath: listing.FirstImagePath,
		IsPublished:    listing.IsPublished,
	})
}

type sponsorRequest struct {
	IsSponsored *bool `json:"isSponsored" validate:"required"`
}

func (h *Handler) SetSponsor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.SetSponsor")
	defer span.End()

	var req sponsorRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, routeListingSponsr, err)
		return
	}
	if err := h.listings.SetSponsored(ctx, auth.IdentityFrom(ctx), chi.URLParam(r, "id"), *req.IsSponsored); err != nil {
		h.writeError(w, r, routeListingSponsr, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Handler.DeleteListing")
	defer span.End()

	id := chi.URLParam(r, "id")
	if err := h.listings.SoftDelete(ctx, auth.IdentityFrom(ctx), id); err != nil {
		h.writeError(w, r, routeListing, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "updatedId": id})
}
