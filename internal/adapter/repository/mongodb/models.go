package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

const (
	listingsCollection = "annonces"
	imagesCollection   = "images"
	linksCollection    = "annonce_images"
	taxonomyCollection = "taxonomy"
)

// listingDocument is the stored shape of a listing. Optional references are
// omitted rather than stored as empty strings.
type listingDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       *float64           `bson:"price"`
	Contact     string             `bson:"contact,omitempty"`

	TypeID        string `bson:"typeAnnonceId"`
	CategoryID    string `bson:"categorieId,omitempty"`
	SubCategoryID string `bson:"subcategorieId,omitempty"`
	RegionID      string `bson:"lieuId,omitempty"`
	SubRegionID   string `bson:"moughataaId,omitempty"`

	TypeName         string `bson:"typeAnnonceName,omitempty"`
	TypeNameAr       string `bson:"typeAnnonceNameAr,omitempty"`
	CategoryName     string `bson:"categorieName,omitempty"`
	CategoryNameAr   string `bson:"categorieNameAr,omitempty"`
	ClassificationFr string `bson:"classificationFr,omitempty"`
	ClassificationAr string `bson:"classificationAr,omitempty"`

	IsBroker          bool  `bson:"issmar"`
	DirectNegotiation *bool `bson:"directNegotiation"`

	IsPublished    bool    `bson:"isPublished"`
	IsSponsored    bool    `bson:"isSponsored"`
	Status         string  `bson:"status"`
	HaveImage      bool    `bson:"haveImage"`
	FirstImagePath *string `bson:"firstImagePath"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type imageDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Path      string             `bson:"imagePath"`
	AltText   string             `bson:"altText,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type linkDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ListingID primitive.ObjectID `bson:"annonceId"`
	ImageID   primitive.ObjectID `bson:"imageId"`
	IsMain    bool               `bson:"isMain"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type taxonomyDocument struct {
	ID       interface{} `bson:"_id"`
	ParentID string      `bson:"parentId,omitempty"`
	Name     string      `bson:"name"`
	NameAr   string      `bson:"nameAr,omitempty"`
	Tag      string      `bson:"tag,omitempty"`
}

// objectID parses a hex id; malformed ids resolve to notFound.
func objectID(id string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}

func toListingDocument(l *domain.Listing) (*listingDocument, error) {
	var docID primitive.ObjectID
	if l.ID != "" {
		oid, err := primitive.ObjectIDFromHex(l.ID)
		if err != nil {
			return nil, fmt.Errorf("toListingDocument: invalid id %q: %w", l.ID, err)
		}
		docID = oid
	}
	return &listingDocument{
		ID:                docID,
		Title:             l.Title,
		Description:       l.Description,
		Price:             l.Price,
		Contact:           l.Contact,
		TypeID:            l.TypeID,
		CategoryID:        l.CategoryID,
		SubCategoryID:     l.SubCategoryID,
		RegionID:          l.RegionID,
		SubRegionID:       l.SubRegionID,
		TypeName:          l.TypeName,
		TypeNameAr:        l.TypeNameAr,
		CategoryName:      l.CategoryName,
		CategoryNameAr:    l.CategoryNameAr,
		ClassificationFr:  l.ClassificationFr,
		ClassificationAr:  l.ClassificationAr,
		IsBroker:          l.IsBroker,
		DirectNegotiation: l.DirectNegotiation,
		IsPublished:       l.IsPublished,
		IsSponsored:       l.IsSponsored,
		Status:            string(l.Status),
		HaveImage:         l.HaveImage,
		FirstImagePath:    l.FirstImagePath,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}, nil
}

func toDomainListing(d *listingDocument) *domain.Listing {
	status := domain.ListingStatus(d.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return &domain.Listing{
		ID:                d.ID.Hex(),
		Title:             d.Title,
		Description:       d.Description,
		Price:             d.Price,
		Contact:           d.Contact,
		TypeID:            d.TypeID,
		CategoryID:        d.CategoryID,
		SubCategoryID:     d.SubCategoryID,
		RegionID:          d.RegionID,
		SubRegionID:       d.SubRegionID,
		TypeName:          d.TypeName,
		TypeNameAr:        d.TypeNameAr,
		CategoryName:      d.CategoryName,
		CategoryNameAr:    d.CategoryNameAr,
		ClassificationFr:  d.ClassificationFr,
		ClassificationAr:  d.ClassificationAr,
		IsBroker:          d.IsBroker,
		DirectNegotiation: d.DirectNegotiation,
		IsPublished:       d.IsPublished,
		IsSponsored:       d.IsSponsored,
		Status:            status,
		HaveImage:         d.HaveImage,
		FirstImagePath:    d.FirstImagePath,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toDomainImage(d *imageDocument) *domain.Image {
	return &domain.Image{
		ID:        d.ID.Hex(),
		Path:      d.Path,
		AltText:   d.AltText,
		CreatedAt: d.CreatedAt,
	}
}

func toDomainLink(d *linkDocument) *domain.Link {
	return &domain.Link{
		ID:        d.ID.Hex(),
		ListingID: d.ListingID.Hex(),
		ImageID:   d.ImageID.Hex(),
		IsMain:    d.IsMain,
		CreatedAt: d.CreatedAt,
	}
}

func toDomainTaxonomy(d *taxonomyDocument) domain.TaxonomyNode {
	var id string
	switch v := d.ID.(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	default:
		id = fmt.Sprint(v)
	}
	return domain.TaxonomyNode{
		ID:       id,
		ParentID: d.ParentID,
		Name:     d.Name,
		NameAr:   d.NameAr,
		Tag:      d.Tag,
	}
}
