package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

// TaxonomyRepository reads the option trees maintained by the taxonomy admin.
type TaxonomyRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewTaxonomyRepository(db *mongo.Database, timeout time.Duration) *TaxonomyRepository {
	return &TaxonomyRepository{collection: db.Collection(taxonomyCollection), timeout: timeout}
}

func (r *TaxonomyRepository) Children(ctx context.Context, parentID, tag string) ([]domain.TaxonomyNode, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{}
	if parentID == "" {
		filter["$or"] = bson.A{
			bson.M{"parentId": bson.M{"$exists": false}},
			bson.M{"parentId": ""},
			bson.M{"parentId": nil},
		}
	} else {
		filter["parentId"] = parentID
	}
	if tag != "" {
		filter["tag"] = tag
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, storageErr("find taxonomy", err)
	}
	var docs []*taxonomyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr("decode taxonomy", err)
	}
	out := make([]domain.TaxonomyNode, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDomainTaxonomy(d))
	}
	return out, nil
}
