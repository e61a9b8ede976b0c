package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/metrics"
)

type FileStatus string

const (
	FileUploaded      FileStatus = "uploaded"
	FileStoreFailed   FileStatus = "store_failed"
	FilePersistFailed FileStatus = "persist_failed"
)

// FileResult is the outcome of one file of an upload batch.
type FileResult struct {
	Index   int
	Name    string
	Status  FileStatus
	URL     string
	ImageID string
	IsMain  bool
	Err     error
}

type BatchResult struct {
	Files          []FileResult
	HaveImage      bool
	FirstImagePath *string
}

func (b *BatchResult) Uploaded() []FileResult {
	var out []FileResult
	for _, f := range b.Files {
		if f.Status == FileUploaded {
			out = append(out, f)
		}
	}
	return out
}

func (b *BatchResult) Failed() []FileResult {
	var out []FileResult
	for _, f := range b.Files {
		if f.Status != FileUploaded {
			out = append(out, f)
		}
	}
	return out
}

type Gallery struct {
	HaveImage      bool
	FirstImagePath *string
	Images         []*domain.Image
}

// ImageRef names an image either by id or by its stored path.
type ImageRef struct {
	ID   string
	Path string
}

type DetachResult struct {
	Removed         *domain.Image
	Remaining       []*domain.Image
	HaveImage       bool
	FirstImagePath  *string
	OrphanCollected bool
}

type ImageUsecase struct {
	listings  domain.ListingRepository
	images    domain.ImageRepository
	links     domain.LinkRepository
	store     domain.MediaStore
	cache     domain.ListingCache
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewImageUsecase(
	listings domain.ListingRepository,
	images domain.ImageRepository,
	links domain.LinkRepository,
	store domain.MediaStore,
	log *logger.Logger,
	opts ...Option,
) *ImageUsecase {
	o := collectOptions(opts)
	return &ImageUsecase{
		listings:  listings,
		images:    images,
		links:     links,
		store:     store,
		cache:     o.cache,
		publisher: o.publisher,
		metrics:   o.metrics,
		logger:    log.Named("ImageUsecase"),
		tracer:    otel.Tracer("annonce-service/usecase"),
		now:       time.Now,
	}
}

func (uc *ImageUsecase) loadMutable(ctx context.Context, listingID string) (*domain.Listing, error) {
	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.IsDeleted() {
		return nil, domain.ErrListingDeleted
	}
	return listing, nil
}

// Attach validates the whole batch, then uploads every file independently.
// It fails with ErrStorage only when no file at all could be attached.
func (uc *ImageUsecase) Attach(ctx context.Context, actor *domain.Identity, listingID string, files []domain.UploadFile, mainIndex int) (*BatchResult, error) {
	ctx, span := uc.tracer.Start(ctx, "ImageUsecase.Attach")
	defer span.End()
	span.SetAttributes(attribute.String("listing.id", listingID), attribute.Int("files", len(files)))

	uc.logger.Info("ImageUsecase.Attach: attaching images", "listing_id", listingID, "files", len(files), "main_index", mainIndex, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		uc.logger.Warn("ImageUsecase.Attach: rejected", "listing_id", listingID, "error", err)
		return nil, err
	}
	if _, err := uc.loadMutable(ctx, listingID); err != nil {
		uc.logger.Warn("ImageUsecase.Attach: listing not usable", "listing_id", listingID, "error", err)
		return nil, err
	}
	validated, err := ValidateBatch(files, false)
	if err != nil {
		uc.logger.Warn("ImageUsecase.Attach: batch rejected", "listing_id", listingID, "error", err)
		return nil, err
	}

	result := uc.attachBatch(ctx, listingID, validated, mainIndex)
	uploaded := result.Uploaded()
	if len(uploaded) == 0 {
		span.RecordError(domain.ErrStorage)
		return result, fmt.Errorf("%w: none of %d files could be stored", domain.ErrStorage, len(files))
	}

	uc.publish(ctx, domain.SubjectImagesAttached, domain.ListingEvent{
		ListingID:      listingID,
		ActorID:        actorID(actor),
		ImageIDs:       imageIDs(uploaded),
		FirstImagePath: result.FirstImagePath,
	})
	return result, nil
}

func imageIDs(files []FileResult) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ImageID)
	}
	return ids
}

// attachBatch runs the write fan-out for already validated files. A failure
// of one file never affects its siblings.
func (uc *ImageUsecase) attachBatch(ctx context.Context, listingID string, files []domain.UploadFile, mainIndex int) *BatchResult {
	result := &BatchResult{Files: make([]FileResult, len(files))}
	if len(files) == 0 {
		return result
	}
	mainIndex = ClampMainIndex(mainIndex, len(files))
	createdAt := uc.now().UTC()

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f domain.UploadFile) {
			defer wg.Done()
			result.Files[i] = uc.storeOne(ctx, listingID, i, f, createdAt)
		}(i, f)
	}
	wg.Wait()

	mainPos := -1
	if result.Files[mainIndex].Status == FileUploaded {
		mainPos = mainIndex
	} else {
		for i, f := range result.Files {
			if f.Status == FileUploaded {
				mainPos = i
				break
			}
		}
	}
	if mainPos >= 0 {
		if err := uc.links.SetMain(ctx, listingID, result.Files[mainPos].ImageID); err != nil {
			uc.logger.Error("ImageUsecase.attachBatch: failed to flag main image", "listing_id", listingID, "image_id", result.Files[mainPos].ImageID, "error", err)
		} else {
			result.Files[mainPos].IsMain = true
		}
	}

	have, first, err := uc.refreshSummary(ctx, listingID)
	if err != nil {
		uc.logger.Error("ImageUsecase.attachBatch: failed to refresh image summary", "listing_id", listingID, "error", err)
	}
	result.HaveImage, result.FirstImagePath = have, first

	uc.logger.Info("ImageUsecase.attachBatch: batch finished", "listing_id", listingID,
		"uploaded", len(result.Uploaded()), "failed", len(result.Failed()))
	return result
}

func (uc *ImageUsecase) storeOne(ctx context.Context, listingID string, index int, f domain.UploadFile, createdAt time.Time) FileResult {
	res := FileResult{Index: index, Name: f.Name}

	url, err := uc.store.Upload(ctx, listingID, f)
	if err != nil {
		uc.logger.Error("ImageUsecase.storeOne: upload failed", "listing_id", listingID, "file", f.Name, "stage", FileStoreFailed, "error", err)
		res.Status, res.Err = FileStoreFailed, err
		uc.metrics.Upload(string(res.Status))
		return res
	}
	res.URL = url

	img := &domain.Image{Path: url, CreatedAt: createdAt}
	if err := uc.images.Create(ctx, img); err != nil {
		uc.logger.Error("ImageUsecase.storeOne: image record failed", "listing_id", listingID, "file", f.Name, "stage", FilePersistFailed, "error", err)
		res.Status, res.Err = FilePersistFailed, err
		uc.metrics.Upload(string(res.Status))
		return res
	}

	link := &domain.Link{ListingID: listingID, ImageID: img.ID, CreatedAt: createdAt}
	if err := uc.links.Create(ctx, link); err != nil {
		uc.logger.Error("ImageUsecase.storeOne: link failed", "listing_id", listingID, "file", f.Name, "stage", FilePersistFailed, "error", err)
		if delErr := uc.images.Delete(ctx, img.ID); delErr != nil {
			uc.logger.Error("ImageUsecase.storeOne: could not remove unlinked image", "image_id", img.ID, "error", delErr)
		}
		res.Status, res.Err = FilePersistFailed, err
		uc.metrics.Upload(string(res.Status))
		return res
	}

	res.Status, res.ImageID = FileUploaded, img.ID
	uc.metrics.Upload(string(res.Status))
	return res
}

// linkedImages returns the listing's links and the images they point to, in
// link creation order.
func (uc *ImageUsecase) linkedImages(ctx context.Context, listingID string) ([]*domain.Link, []*domain.Image, error) {
	links, err := uc.links.ListByListing(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if len(links) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ImageID)
	}
	found, err := uc.images.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]*domain.Image, len(found))
	for _, img := range found {
		byID[img.ID] = img
	}
	ordered := make([]*domain.Image, 0, len(found))
	for _, l := range links {
		if img, ok := byID[l.ImageID]; ok {
			ordered = append(ordered, img)
		}
	}
	return links, ordered, nil
}

// refreshSummary recomputes haveImage/firstImagePath from the current link
// set and writes them back. It is the only writer of those two fields.
func (uc *ImageUsecase) refreshSummary(ctx context.Context, listingID string) (bool, *string, error) {
	links, images, err := uc.linkedImages(ctx, listingID)
	if err != nil {
		return false, nil, err
	}
	first := domain.DeriveFirstImage(links, images)
	have := first != nil
	if err := uc.listings.SetImageSummary(ctx, listingID, have, first); err != nil {
		return have, first, err
	}
	uc.invalidate(ctx, listingID)
	return have, first, nil
}

func (uc *ImageUsecase) List(ctx context.Context, listingID string) (*Gallery, error) {
	uc.logger.Debug("ImageUsecase.List: listing images", "listing_id", listingID)
	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	_, images, err := uc.linkedImages(ctx, listingID)
	if err != nil {
		uc.logger.Error("ImageUsecase.List: failed to read images", "listing_id", listingID, "error", err)
		return nil, err
	}
	return &Gallery{
		HaveImage:      listing.HaveImage,
		FirstImagePath: listing.FirstImagePath,
		Images:         images,
	}, nil
}

// Detach unlinks one image from a listing and deletes the image record when
// no other listing links it. Stored bytes are left in place.
func (uc *ImageUsecase) Detach(ctx context.Context, actor *domain.Identity, listingID string, ref ImageRef) (*DetachResult, error) {
	ctx, span := uc.tracer.Start(ctx, "ImageUsecase.Detach")
	defer span.End()

	uc.logger.Info("ImageUsecase.Detach: detaching image", "listing_id", listingID, "image_id", ref.ID, "path", ref.Path, "actor", actorID(actor))
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if ref.ID == "" && ref.Path == "" {
		return nil, domain.Validationf("imageId or url is required")
	}
	if _, err := uc.loadMutable(ctx, listingID); err != nil {
		return nil, err
	}

	var (
		img *domain.Image
		err error
	)
	if ref.ID != "" {
		img, err = uc.images.FindByID(ctx, ref.ID)
	} else {
		img, err = uc.images.FindByPath(ctx, ref.Path)
	}
	if err != nil {
		uc.logger.Warn("ImageUsecase.Detach: image not resolved", "listing_id", listingID, "error", err)
		return nil, err
	}

	removed, err := uc.links.Delete(ctx, listingID, img.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, fmt.Errorf("%w: image %s is not linked to listing %s", domain.ErrImageNotFound, img.ID, listingID)
	}

	result := &DetachResult{Removed: img}
	remainingLinks, err := uc.links.CountByImage(ctx, img.ID)
	switch {
	case err != nil:
		uc.logger.Error("ImageUsecase.Detach: orphan check failed", "image_id", img.ID, "error", err)
	case remainingLinks == 0:
		if err := uc.images.Delete(ctx, img.ID); err != nil {
			uc.logger.Error("ImageUsecase.Detach: orphan delete failed", "image_id", img.ID, "error", err)
		} else {
			result.OrphanCollected = true
			uc.metrics.OrphanCollected()
		}
	}

	have, first, err := uc.refreshSummary(ctx, listingID)
	if err != nil {
		uc.logger.Error("ImageUsecase.Detach: failed to refresh image summary", "listing_id", listingID, "error", err)
		return nil, err
	}
	_, remaining, err := uc.linkedImages(ctx, listingID)
	if err != nil {
		return nil, err
	}
	result.Remaining, result.HaveImage, result.FirstImagePath = remaining, have, first

	uc.publish(ctx, domain.SubjectImagesDetached, domain.ListingEvent{
		ListingID:      listingID,
		ActorID:        actorID(actor),
		ImageIDs:       []string{img.ID},
		FirstImagePath: first,
	})
	return result, nil
}

func (uc *ImageUsecase) invalidate(ctx context.Context, listingID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeleteListing(ctx, listingID); err != nil {
		uc.logger.Warn("ImageUsecase: cache invalidation failed", "listing_id", listingID, "error", err)
	}
}

func (uc *ImageUsecase) publish(ctx context.Context, subject string, ev domain.ListingEvent) {
	publishEvent(ctx, uc.publisher, uc.logger, subject, ev, uc.now)
}

func publishEvent(ctx context.Context, p domain.EventPublisher, log *logger.Logger, subject string, ev domain.ListingEvent, now func() time.Time) {
	if p == nil {
		return
	}
	ev.OccurredAt = now().UTC()
	if err := p.Publish(ctx, subject, ev); err != nil {
		log.Warn("event publish failed", "subject", subject, "listing_id", ev.ListingID, "error", err)
	}
}

// isNotFound reports the not-found class of errors.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrListingNotFound) || errors.Is(err, domain.ErrImageNotFound)
}
