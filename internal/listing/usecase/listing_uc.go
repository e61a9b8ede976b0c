package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/metrics"
)

type CreateInput struct {
	Fields    domain.ListingFields
	Files     []domain.UploadFile
	MainIndex int
}

// CreateResult reports the stored listing and, when files were sent, the
// per-file outcome of the upload. A listing with failed uploads is still
// created.
type CreateResult struct {
	Listing *domain.Listing
	Images  *BatchResult
}

type ListingUsecase struct {
	listings  domain.ListingRepository
	images    *ImageUsecase
	cache     domain.ListingCache
	publisher domain.EventPublisher
	notifier  domain.Notifier
	taxonomy  domain.Taxonomy
	metrics   *metrics.Metrics
	pageSize  int
	logger    *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewListingUsecase(listings domain.ListingRepository, images *ImageUsecase, log *logger.Logger, opts ...Option) *ListingUsecase {
	o := collectOptions(opts)
	return &ListingUsecase{
		listings:  listings,
		images:    images,
		cache:     o.cache,
		publisher: o.publisher,
		notifier:  o.notifier,
		taxonomy:  o.taxonomy,
		metrics:   o.metrics,
		pageSize:  o.pageSize,
		logger:    log.Named("ListingUsecase"),
		tracer:    otel.Tracer("annonce-service/usecase"),
		now:       time.Now,
	}
}

func validContact(s string) bool {
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (uc *ListingUsecase) validateFields(ctx context.Context, f domain.ListingFields) error {
	fe := domain.FieldErrors{}
	if strings.TrimSpace(f.TypeID) == "" {
		fe.Add(domain.FormTypeID, "type is required")
	}
	if strings.TrimSpace(f.Description) == "" {
		fe.Add(domain.FormDescription, "description is required")
	}
	if f.Price != nil && *f.Price < 0 {
		fe.Add(domain.FormPrice, "price must not be negative")
	}
	if c := strings.TrimSpace(f.Contact); c != "" && !validContact(c) {
		fe.Add(domain.FormContact, "contact must be a phone number")
	}
	if f.IsBroker && f.DirectNegotiation == nil {
		fe.Add(domain.FormDirectNegotiation, "brokers must say whether negotiation is direct")
	}
	if f.SubCategoryID != "" && f.CategoryID == "" {
		fe.Add(domain.FormCategoryID, "category is required with a sub-category")
	}
	if len(fe) == 0 {
		if err := uc.checkTaxonomy(ctx, fe, f.TypeID, f.CategoryID, f.SubCategoryID); err != nil {
			return err
		}
	}
	return fe.OrNil()
}

// checkTaxonomy requires a child selection at each level that has children.
func (uc *ListingUsecase) checkTaxonomy(ctx context.Context, fe domain.FieldErrors, typeID, categoryID, subCategoryID string) error {
	if uc.taxonomy == nil {
		return nil
	}
	categories, err := uc.taxonomy.Children(ctx, typeID, "")
	if err != nil {
		return fmt.Errorf("%w: taxonomy lookup: %v", domain.ErrStorage, err)
	}
	if len(categories) > 0 {
		if categoryID == "" {
			fe.Add(domain.FormCategoryID, "category is required for this type")
			return nil
		}
		if !containsNode(categories, categoryID) {
			fe.Add(domain.FormCategoryID, "category does not belong to this type")
			return nil
		}
	}
	if categoryID == "" {
		return nil
	}
	subs, err := uc.taxonomy.Children(ctx, categoryID, "")
	if err != nil {
		return fmt.Errorf("%w: taxonomy lookup: %v", domain.ErrStorage, err)
	}
	if len(subs) > 0 {
		if subCategoryID == "" {
			fe.Add(domain.FormSubCategoryID, "sub-category is required for this category")
		} else if !containsNode(subs, subCategoryID) {
			fe.Add(domain.FormSubCategoryID, "sub-category does not belong to this category")
		}
	}
	return nil
}

func containsNode(nodes []domain.TaxonomyNode, id string) bool {
	_, ok := findNode(nodes, id)
	return ok
}

func newListing(f domain.ListingFields) *domain.Listing {
	l := &domain.Listing{
		Title:             domain.DeriveTitle(f.Description),
		Description:       strings.TrimSpace(f.Description),
		Contact:           strings.TrimSpace(f.Contact),
		TypeID:            strings.TrimSpace(f.TypeID),
		CategoryID:        strings.TrimSpace(f.CategoryID),
		SubCategoryID:     strings.TrimSpace(f.SubCategoryID),
		RegionID:          strings.TrimSpace(f.RegionID),
		SubRegionID:       strings.TrimSpace(f.SubRegionID),
		TypeName:          f.TypeName,
		TypeNameAr:        f.TypeNameAr,
		CategoryName:      f.CategoryName,
		CategoryNameAr:    f.CategoryNameAr,
		ClassificationFr:  f.ClassificationFr,
		ClassificationAr:  f.ClassificationAr,
		IsBroker:          f.IsBroker,
		DirectNegotiation: f.DirectNegotiation,
		IsPublished:       f.IsPublished,
		IsSponsored:       f.IsSponsored,
		Status:            domain.StatusActive,
	}
	if f.Price != nil {
		p := *f.Price
		l.Price = &p
	}
	if l.ClassificationFr == "" {
		l.ClassificationFr = domain.JoinLabels(f.TypeName, f.CategoryName)
	}
	if l.ClassificationAr == "" {
		l.ClassificationAr = domain.JoinLabels(f.TypeNameAr, f.CategoryNameAr)
	}
	return l
}

// Create validates fields and files, stores the listing and then attaches the
// images. Upload failures after the listing is stored are reported in the
// result and never roll the listing back.
func (uc *ListingUsecase) Create(ctx context.Context, actor *domain.Identity, in CreateInput) (*CreateResult, error) {
	ctx, span := uc.tracer.Start(ctx, "ListingUsecase.Create")
	defer span.End()

	uc.logger.Info("ListingUsecase.Create: creating listing", "type_id", in.Fields.TypeID, "files", len(in.Files), "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		uc.logger.Warn("ListingUsecase.Create: rejected", "error", err)
		return nil, err
	}
	if err := uc.validateFields(ctx, in.Fields); err != nil {
		uc.logger.Warn("ListingUsecase.Create: invalid fields", "error", err)
		return nil, err
	}
	files, err := ValidateBatch(in.Files, true)
	if err != nil {
		uc.logger.Warn("ListingUsecase.Create: invalid files", "error", err)
		return nil, err
	}

	listing := newListing(in.Fields)
	if err := uc.listings.Create(ctx, listing); err != nil {
		uc.logger.Error("ListingUsecase.Create: failed to store listing", "error", err)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("listing.id", listing.ID))
	uc.metrics.ListingCreated()

	result := &CreateResult{Listing: listing}
	if len(files) > 0 {
		batch := uc.images.attachBatch(ctx, listing.ID, files, in.MainIndex)
		result.Images = batch
		listing.HaveImage, listing.FirstImagePath = batch.HaveImage, batch.FirstImagePath
		if failed := batch.Failed(); len(failed) > 0 {
			uc.logger.Warn("ListingUsecase.Create: listing stored with partial images", "listing_id", listing.ID,
				"uploaded", len(batch.Uploaded()), "failed", len(failed))
		}
	}

	uc.logger.Info("ListingUsecase.Create: listing created", "listing_id", listing.ID, "have_image", listing.HaveImage)
	uc.publish(ctx, domain.SubjectListingCreated, domain.ListingEvent{
		ListingID:      listing.ID,
		ActorID:        actorID(actor),
		Title:          listing.Title,
		Status:         string(listing.Status),
		FirstImagePath: listing.FirstImagePath,
	})
	if uc.notifier != nil {
		if err := uc.notifier.NotifyListingCreated(ctx, listing); err != nil {
			uc.logger.Warn("ListingUsecase.Create: notification failed", "listing_id", listing.ID, "error", err)
		}
	}
	return result, nil
}

// Get is an admin read served from the cache when possible.
func (uc *ListingUsecase) Get(ctx context.Context, actor *domain.Identity, id string) (*domain.Listing, error) {
	uc.logger.Debug("ListingUsecase.Get: fetching listing", "listing_id", id)
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		cached, err := uc.cache.GetListing(ctx, id)
		if err != nil {
			uc.logger.Warn("ListingUsecase.Get: cache read failed", "listing_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	listing, err := uc.listings.FindByID(ctx, id)
	if err != nil {
		if !isNotFound(err) {
			uc.logger.Error("ListingUsecase.Get: failed to load listing", "listing_id", id, "error", err)
		}
		return nil, err
	}
	if uc.cache != nil {
		if err := uc.cache.SetListing(ctx, listing); err != nil {
			uc.logger.Warn("ListingUsecase.Get: cache write failed", "listing_id", id, "error", err)
		}
	}
	return listing, nil
}

func (uc *ListingUsecase) loadMutable(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := uc.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.IsDeleted() {
		return nil, domain.ErrListingDeleted
	}
	return listing, nil
}

// Update applies an admin edit. Only classification, description, price and
// location may change.
func (uc *ListingUsecase) Update(ctx context.Context, actor *domain.Identity, id string, patch domain.ListingPatch) (*domain.Listing, error) {
	ctx, span := uc.tracer.Start(ctx, "ListingUsecase.Update")
	defer span.End()

	uc.logger.Info("ListingUsecase.Update: updating listing", "listing_id", id, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	listing, err := uc.loadMutable(ctx, id)
	if err != nil {
		uc.logger.Warn("ListingUsecase.Update: listing not updatable", "listing_id", id, "error", err)
		return nil, err
	}

	fe := domain.FieldErrors{}
	typeChanged, categoryChanged, subChanged := false, false, false
	if patch.TypeID != nil {
		if v := strings.TrimSpace(*patch.TypeID); v == "" {
			fe.Add(domain.FormTypeID, "type is required")
		} else {
			typeChanged = v != listing.TypeID
			listing.TypeID = v
		}
	}
	if patch.CategoryID != nil {
		v := strings.TrimSpace(*patch.CategoryID)
		categoryChanged = v != listing.CategoryID
		listing.CategoryID = v
	}
	if patch.SubCategoryID != nil {
		v := strings.TrimSpace(*patch.SubCategoryID)
		subChanged = v != listing.SubCategoryID
		listing.SubCategoryID = v
	}
	if patch.Description != nil {
		if v := strings.TrimSpace(*patch.Description); v == "" {
			fe.Add(domain.FormDescription, "description is required")
		} else {
			listing.Description = v
			listing.Title = domain.DeriveTitle(v)
		}
	}
	switch {
	case patch.ClearPrice && patch.Price != nil:
		fe.Add(domain.FormPrice, "price cannot be set and cleared at once")
	case patch.ClearPrice:
		listing.Price = nil
	case patch.Price != nil:
		if *patch.Price < 0 {
			fe.Add(domain.FormPrice, "price must not be negative")
		} else {
			p := *patch.Price
			listing.Price = &p
		}
	}
	if patch.RegionID != nil {
		listing.RegionID = strings.TrimSpace(*patch.RegionID)
	}
	if patch.SubRegionID != nil {
		listing.SubRegionID = strings.TrimSpace(*patch.SubRegionID)
	}
	if listing.SubCategoryID != "" && listing.CategoryID == "" {
		fe.Add(domain.FormCategoryID, "category is required with a sub-category")
	}
	if len(fe) == 0 && (typeChanged || categoryChanged || subChanged) {
		if err := uc.checkTaxonomy(ctx, fe, listing.TypeID, listing.CategoryID, listing.SubCategoryID); err != nil {
			return nil, err
		}
	}
	if err := fe.OrNil(); err != nil {
		uc.logger.Warn("ListingUsecase.Update: invalid patch", "listing_id", id, "error", err)
		return nil, err
	}
	if typeChanged || categoryChanged {
		if err := uc.relabel(ctx, listing, typeChanged, categoryChanged); err != nil {
			return nil, err
		}
	}

	if err := uc.listings.Update(ctx, listing); err != nil {
		uc.logger.Error("ListingUsecase.Update: failed to store listing", "listing_id", id, "error", err)
		span.RecordError(err)
		return nil, err
	}
	uc.invalidate(ctx, id)
	uc.metrics.Transition("update")
	uc.publish(ctx, domain.SubjectListingUpdated, domain.ListingEvent{ListingID: id, ActorID: actorID(actor), Title: listing.Title})
	return listing, nil
}

// relabel recomputes the stored type and category names after an edit of
// their ids. Without a taxonomy reader the labels of a changed level are
// cleared so they never describe an old id.
func (uc *ListingUsecase) relabel(ctx context.Context, l *domain.Listing, typeChanged, categoryChanged bool) error {
	typeNode, categoryNode := domain.TaxonomyNode{}, domain.TaxonomyNode{}
	if uc.taxonomy != nil {
		types, err := uc.taxonomy.Children(ctx, "", "")
		if err != nil {
			return fmt.Errorf("%w: taxonomy lookup: %v", domain.ErrStorage, err)
		}
		typeNode, _ = findNode(types, l.TypeID)
		if l.CategoryID != "" {
			categories, err := uc.taxonomy.Children(ctx, l.TypeID, "")
			if err != nil {
				return fmt.Errorf("%w: taxonomy lookup: %v", domain.ErrStorage, err)
			}
			categoryNode, _ = findNode(categories, l.CategoryID)
		}
		l.TypeName, l.TypeNameAr = typeNode.Name, typeNode.NameAr
		l.CategoryName, l.CategoryNameAr = categoryNode.Name, categoryNode.NameAr
	} else {
		if typeChanged {
			l.TypeName, l.TypeNameAr = "", ""
		}
		if categoryChanged {
			l.CategoryName, l.CategoryNameAr = "", ""
		}
	}
	l.ClassificationFr = domain.JoinLabels(l.TypeName, l.CategoryName)
	l.ClassificationAr = domain.JoinLabels(l.TypeNameAr, l.CategoryNameAr)
	return nil
}

func findNode(nodes []domain.TaxonomyNode, id string) (domain.TaxonomyNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.TaxonomyNode{}, false
}

// Query returns one page of listings matching the filter, newest first.
func (uc *ListingUsecase) Query(ctx context.Context, actor *domain.Identity, filter domain.Filter) (*domain.ListingPage, error) {
	uc.logger.Debug("ListingUsecase.Query: searching listings", "filter", fmt.Sprintf("%+v", filter))
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = uc.pageSize

	items, total, err := uc.listings.Query(ctx, filter)
	if err != nil {
		uc.logger.Error("ListingUsecase.Query: query failed", "error", err)
		return nil, err
	}
	return &domain.ListingPage{
		Items:       items,
		Total:       total,
		CurrentPage: filter.Page,
		TotalPages:  domain.TotalPages(total, filter.PageSize),
	}, nil
}

// SetPublished is idempotent and returns the stored listing.
func (uc *ListingUsecase) SetPublished(ctx context.Context, actor *domain.Identity, id string, published bool) (*domain.Listing, error) {
	uc.logger.Info("ListingUsecase.SetPublished: changing publication", "listing_id", id, "published", published, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := uc.loadMutable(ctx, id); err != nil {
		return nil, err
	}
	listing, err := uc.listings.SetPublished(ctx, id, published)
	if err != nil {
		uc.logger.Error("ListingUsecase.SetPublished: write failed", "listing_id", id, "error", err)
		return nil, err
	}
	uc.invalidate(ctx, id)
	uc.metrics.Transition("publish")
	uc.publish(ctx, domain.SubjectListingPublished, domain.ListingEvent{ListingID: id, ActorID: actorID(actor), IsPublished: &published})
	return listing, nil
}

func (uc *ListingUsecase) SetSponsored(ctx context.Context, actor *domain.Identity, id string, sponsored bool) error {
	uc.logger.Info("ListingUsecase.SetSponsored: changing sponsorship", "listing_id", id, "sponsored", sponsored, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if _, err := uc.loadMutable(ctx, id); err != nil {
		return err
	}
	if err := uc.listings.SetSponsored(ctx, id, sponsored); err != nil {
		uc.logger.Error("ListingUsecase.SetSponsored: write failed", "listing_id", id, "error", err)
		return err
	}
	uc.invalidate(ctx, id)
	uc.metrics.Transition("sponsor")
	uc.publish(ctx, domain.SubjectListingSponsored, domain.ListingEvent{ListingID: id, ActorID: actorID(actor), IsSponsored: &sponsored})
	return nil
}

// SoftDelete marks the listing deleted. Deleting twice succeeds.
func (uc *ListingUsecase) SoftDelete(ctx context.Context, actor *domain.Identity, id string) error {
	uc.logger.Info("ListingUsecase.SoftDelete: deleting listing", "listing_id", id, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	listing, err := uc.listings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if listing.IsDeleted() {
		uc.logger.Debug("ListingUsecase.SoftDelete: already deleted", "listing_id", id)
		return nil
	}
	if err := uc.listings.SetStatus(ctx, id, domain.StatusDeleted); err != nil {
		uc.logger.Error("ListingUsecase.SoftDelete: write failed", "listing_id", id, "error", err)
		return err
	}
	uc.invalidate(ctx, id)
	uc.metrics.Transition("delete")
	uc.publish(ctx, domain.SubjectListingDeleted, domain.ListingEvent{ListingID: id, ActorID: actorID(actor), Status: string(domain.StatusDeleted)})
	return nil
}

func (uc *ListingUsecase) invalidate(ctx context.Context, id string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeleteListing(ctx, id); err != nil {
		uc.logger.Warn("ListingUsecase: cache invalidation failed", "listing_id", id, "error", err)
	}
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, ev domain.ListingEvent) {
	publishEvent(ctx, uc.publisher, uc.logger, subject, ev, uc.now)
}
