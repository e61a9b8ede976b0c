package domain

import "context"

type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id string) (*Listing, error)
	Update(ctx context.Context, listing *Listing) error
	SetPublished(ctx context.Context, id string, published bool) (*Listing, error)
	SetSponsored(ctx context.Context, id string, sponsored bool) error
	SetStatus(ctx context.Context, id string, status ListingStatus) error
	SetImageSummary(ctx context.Context, id string, haveImage bool, firstImagePath *string) error
	Query(ctx context.Context, filter Filter) ([]*Listing, int64, error)
}

type ImageRepository interface {
	Create(ctx context.Context, image *Image) error
	FindByID(ctx context.Context, id string) (*Image, error)
	FindByPath(ctx context.Context, path string) (*Image, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Image, error)
	Delete(ctx context.Context, id string) error
}

type LinkRepository interface {
	// Create fails with ErrDuplicateLink when the pair already exists.
	Create(ctx context.Context, link *Link) error
	ListByListing(ctx context.Context, listingID string) ([]*Link, error)
	// Delete reports whether a link was removed.
	Delete(ctx context.Context, listingID, imageID string) (bool, error)
	CountByImage(ctx context.Context, imageID string) (int64, error)
	// SetMain flags one link of the listing as main and clears the others.
	SetMain(ctx context.Context, listingID, imageID string) error
}

// MediaStore persists image bytes and returns a stable URL.
type MediaStore interface {
	Upload(ctx context.Context, listingID string, file UploadFile) (string, error)
}

// Taxonomy reads the type/category and region option trees.
type Taxonomy interface {
	Children(ctx context.Context, parentID, tag string) ([]TaxonomyNode, error)
}

type ListingCache interface {
	GetListing(ctx context.Context, id string) (*Listing, error)
	SetListing(ctx context.Context, listing *Listing) error
	DeleteListing(ctx context.Context, id string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

type Notifier interface {
	NotifyListingCreated(ctx context.Context, listing *Listing) error
}
