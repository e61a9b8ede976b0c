package domain

import (
	"strings"
	"time"
)

type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusDeleted ListingStatus = "deleted"
)

func (s ListingStatus) Valid() bool {
	return s == StatusActive || s == StatusDeleted
}

const (
	MaxTitleLength = 50
	MaxFiles       = 8
	MaxFileSize    = 10 << 20
)

// AllowedImageTypes is the media allow-list for listing images.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/avif": true,
}

// Listing is a classified ad ("annonce"). Empty reference ids mean the
// reference is absent.
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Contact     string   `json:"contact,omitempty"`

	TypeID        string `json:"typeId"`
	CategoryID    string `json:"categoryId,omitempty"`
	SubCategoryID string `json:"subCategoryId,omitempty"`
	RegionID      string `json:"regionId,omitempty"`
	SubRegionID   string `json:"subRegionId,omitempty"`

	TypeName         string `json:"typeName,omitempty"`
	TypeNameAr       string `json:"typeNameAr,omitempty"`
	CategoryName     string `json:"categoryName,omitempty"`
	CategoryNameAr   string `json:"categoryNameAr,omitempty"`
	ClassificationFr string `json:"classificationFr,omitempty"`
	ClassificationAr string `json:"classificationAr,omitempty"`

	IsBroker          bool  `json:"isBroker"`
	DirectNegotiation *bool `json:"directNegotiation"`

	IsPublished    bool          `json:"isPublished"`
	IsSponsored    bool          `json:"isSponsored"`
	Status         ListingStatus `json:"status"`
	HaveImage      bool          `json:"haveImage"`
	FirstImagePath *string       `json:"firstImagePath"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l *Listing) IsDeleted() bool {
	return l.Status == StatusDeleted
}

// Image is a stored media object. Images without links are garbage.
type Image struct {
	ID        string    `json:"id"`
	Path      string    `json:"imagePath"`
	AltText   string    `json:"altText,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Link associates a listing with an image. At most one link per listing is main.
type Link struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	ImageID   string    `json:"imageId"`
	IsMain    bool      `json:"isMain"`
	CreatedAt time.Time `json:"createdAt"`
}

type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// ListingFields carries everything a new listing is created from.
type ListingFields struct {
	TypeID            string
	CategoryID        string
	SubCategoryID     string
	Description       string
	Price             *float64
	Contact           string
	RegionID          string
	SubRegionID       string
	TypeName          string
	TypeNameAr        string
	CategoryName      string
	CategoryNameAr    string
	ClassificationFr  string
	ClassificationAr  string
	IsBroker          bool
	DirectNegotiation *bool
	IsPublished       bool
	IsSponsored       bool
}

// ListingPatch holds an admin edit. Nil fields are left untouched; an empty
// string clears an optional reference. ClearPrice removes the price and
// cannot be combined with Price.
type ListingPatch struct {
	TypeID        *string
	CategoryID    *string
	SubCategoryID *string
	Description   *string
	Price         *float64
	ClearPrice    bool
	RegionID      *string
	SubRegionID   *string
}

func (p ListingPatch) IsEmpty() bool {
	return p.TypeID == nil && p.CategoryID == nil && p.SubCategoryID == nil &&
		p.Description == nil && p.Price == nil && !p.ClearPrice &&
		p.RegionID == nil && p.SubRegionID == nil
}

// Filter narrows a listing query. Nil Published and empty Status match everything.
type Filter struct {
	Published *bool
	Contact   string
	Status    ListingStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

func (f Filter) Offset() int64 {
	if f.Page < 1 {
		return 0
	}
	return int64((f.Page - 1) * f.PageSize)
}

type ListingPage struct {
	Items       []*Listing
	Total       int64
	CurrentPage int
	TotalPages  int
}

// TotalPages never reports fewer than one page.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages < 1 {
		return 1
	}
	return pages
}

// TaxonomyNode is one entry of the type/category/location option trees.
type TaxonomyNode struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name"`
	NameAr   string `json:"nameAr,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

const RoleAdmin = "admin"

// Identity is the caller resolved from a verified token.
type Identity struct {
	ID    string
	Email string
	Role  string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && strings.EqualFold(i.Role, RoleAdmin)
}
