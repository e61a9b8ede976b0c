package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. The unique
// (annonceId, imageId) index is what makes link creation idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	plan := map[string][]mongo.IndexModel{
		listingsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		imagesCollection: {
			{Keys: bson.D{{Key: "imagePath", Value: 1}}},
		},
		linksCollection: {
			{
				Keys:    bson.D{{Key: "annonceId", Value: 1}, {Key: "imageId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "imageId", Value: 1}}},
		},
		taxonomyCollection: {
			{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "tag", Value: 1}}},
		},
	}
	for coll, models := range plan {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}
