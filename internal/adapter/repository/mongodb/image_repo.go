package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

type ImageRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *logger.Logger
}

func NewImageRepository(db *mongo.Database, timeout time.Duration, log *logger.Logger) *ImageRepository {
	return &ImageRepository{
		collection: db.Collection(imagesCollection),
		timeout:    timeout,
		logger:     log.Named("ImageRepository"),
	}
}

func (r *ImageRepository) Create(ctx context.Context, image *domain.Image) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	doc := imageDocument{
		ID:        primitive.NewObjectID(),
		Path:      image.Path,
		AltText:   image.AltText,
		CreatedAt: image.CreatedAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return storageErr("insert image", err)
	}
	image.ID = doc.ID.Hex()
	return nil
}

func (r *ImageRepository) findOne(ctx context.Context, filter bson.M) (*domain.Image, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc imageDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrImageNotFound
		}
		return nil, storageErr("find image", err)
	}
	return toDomainImage(&doc), nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id string) (*domain.Image, error) {
	oid, err := objectID(id, domain.ErrImageNotFound)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *ImageRepository) FindByPath(ctx context.Context, path string) (*domain.Image, error) {
	return r.findOne(ctx, bson.M{"imagePath": path})
}

func (r *ImageRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Image, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, storageErr("find images", err)
	}
	var docs []*imageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr("decode images", err)
	}
	out := make([]*domain.Image, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDomainImage(d))
	}
	return out, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id, domain.ErrImageNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return storageErr("delete image", err)
	}
	return nil
}
