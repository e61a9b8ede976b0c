package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

type ListingRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, timeout time.Duration, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		collection: db.Collection(listingsCollection),
		timeout:    timeout,
		logger:     log.Named("ListingRepository"),
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	if listing.Status == "" {
		listing.Status = domain.StatusActive
	}

	doc, err := toListingDocument(listing)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("ListingRepository.Create: insert failed", "error", err)
		return storageErr("insert listing", err)
	}
	listing.ID = doc.ID.Hex()
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	oid, err := objectID(id, domain.ErrListingNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc listingDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		return nil, storageErr("find listing", err)
	}
	return toDomainListing(&doc), nil
}

// updateDocument builds a $set/$unset pair so cleared optional references
// and labels disappear from the stored document.
func updateDocument(l *domain.Listing) bson.M {
	set := bson.M{
		"title":         l.Title,
		"description":   l.Description,
		"price":         l.Price,
		"typeAnnonceId": l.TypeID,
		"updatedAt":     l.UpdatedAt,
	}
	unset := bson.M{}
	optional := map[string]string{
		"categorieId":    l.CategoryID,
		"subcategorieId": l.SubCategoryID,
		"lieuId":         l.RegionID,
		"moughataaId":    l.SubRegionID,

		"typeAnnonceName":   l.TypeName,
		"typeAnnonceNameAr": l.TypeNameAr,
		"categorieName":     l.CategoryName,
		"categorieNameAr":   l.CategoryNameAr,
		"classificationFr":  l.ClassificationFr,
		"classificationAr":  l.ClassificationAr,
	}
	for field, value := range optional {
		if value == "" {
			unset[field] = ""
		} else {
			set[field] = value
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	oid, err := objectID(listing.ID, domain.ErrListingNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	listing.UpdatedAt = time.Now().UTC()
	res, err := r.collection.UpdateByID(ctx, oid, updateDocument(listing))
	if err != nil {
		return storageErr("update listing", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) setFields(ctx context.Context, id string, fields bson.M) error {
	oid, err := objectID(id, domain.ErrListingNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	fields["updatedAt"] = time.Now().UTC()
	res, err := r.collection.UpdateByID(ctx, oid, bson.M{"$set": fields})
	if err != nil {
		return storageErr("update listing", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) SetPublished(ctx context.Context, id string, published bool) (*domain.Listing, error) {
	oid, err := objectID(id, domain.ErrListingNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"isPublished": published, "updatedAt": time.Now().UTC()}}

	var doc listingDocument
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		return nil, storageErr("publish listing", err)
	}
	return toDomainListing(&doc), nil
}

func (r *ListingRepository) SetSponsored(ctx context.Context, id string, sponsored bool) error {
	return r.setFields(ctx, id, bson.M{"isSponsored": sponsored})
}

func (r *ListingRepository) SetStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	return r.setFields(ctx, id, bson.M{"status": string(status)})
}

func (r *ListingRepository) SetImageSummary(ctx context.Context, id string, haveImage bool, firstImagePath *string) error {
	return r.setFields(ctx, id, bson.M{"haveImage": haveImage, "firstImagePath": firstImagePath})
}

func buildQuery(f domain.Filter) bson.M {
	query := bson.M{}
	if f.Published != nil {
		query["isPublished"] = *f.Published
	}
	if f.Status != "" {
		query["status"] = string(f.Status)
	}
	if f.Contact != "" {
		query["contact"] = bson.M{"$regex": regexp.QuoteMeta(f.Contact), "$options": "i"}
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		query["createdAt"] = created
	}
	return query
}

func (r *ListingRepository) Query(ctx context.Context, f domain.Filter) ([]*domain.Listing, int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := buildQuery(f)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, storageErr("count listings", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(f.Offset())
	if f.PageSize > 0 {
		opts.SetLimit(int64(f.PageSize))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, storageErr("find listings", err)
	}
	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, storageErr("decode listings", err)
	}

	items := make([]*domain.Listing, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDomainListing(d))
	}
	return items, total, nil
}

// Ping checks that the database answers.
func (r *ListingRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.collection.Database().Client().Ping(ctx, nil)
}
