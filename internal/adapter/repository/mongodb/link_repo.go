package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// LinkRepository stores listing/image associations. Uniqueness of the pair is
// enforced by the index created in EnsureIndexes.
type LinkRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *logger.Logger
}

func NewLinkRepository(db *mongo.Database, timeout time.Duration, log *logger.Logger) *LinkRepository {
	return &LinkRepository{
		collection: db.Collection(linksCollection),
		timeout:    timeout,
		logger:     log.Named("LinkRepository"),
	}
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	listingID, err := objectID(link.ListingID, domain.ErrListingNotFound)
	if err != nil {
		return err
	}
	imageID, err := objectID(link.ImageID, domain.ErrImageNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	doc := linkDocument{
		ID:        primitive.NewObjectID(),
		ListingID: listingID,
		ImageID:   imageID,
		IsMain:    link.IsMain,
		CreatedAt: link.CreatedAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateLink
		}
		return storageErr("insert link", err)
	}
	link.ID = doc.ID.Hex()
	return nil
}

func (r *LinkRepository) ListByListing(ctx context.Context, listingID string) ([]*domain.Link, error) {
	oid, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "imageId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"annonceId": oid}, opts)
	if err != nil {
		return nil, storageErr("find links", err)
	}
	var docs []*linkDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr("decode links", err)
	}
	out := make([]*domain.Link, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDomainLink(d))
	}
	return out, nil
}

func (r *LinkRepository) Delete(ctx context.Context, listingID, imageID string) (bool, error) {
	lid, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return false, nil
	}
	iid, err := primitive.ObjectIDFromHex(imageID)
	if err != nil {
		return false, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"annonceId": lid, "imageId": iid})
	if err != nil {
		return false, storageErr("delete link", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *LinkRepository) CountByImage(ctx context.Context, imageID string) (int64, error) {
	iid, err := primitive.ObjectIDFromHex(imageID)
	if err != nil {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, bson.M{"imageId": iid})
	if err != nil {
		return 0, storageErr("count links", err)
	}
	return n, nil
}

func (r *LinkRepository) SetMain(ctx context.Context, listingID, imageID string) error {
	lid, err := objectID(listingID, domain.ErrListingNotFound)
	if err != nil {
		return err
	}
	iid, err := objectID(imageID, domain.ErrImageNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.UpdateMany(ctx,
		bson.M{"annonceId": lid, "imageId": bson.M{"$ne": iid}},
		bson.M{"$set": bson.M{"isMain": false}},
	); err != nil {
		return storageErr("clear main link", err)
	}
	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"annonceId": lid, "imageId": iid},
		bson.M{"$set": bson.M{"isMain": true}},
	); err != nil {
		return storageErr("set main link", err)
	}
	return nil
}
