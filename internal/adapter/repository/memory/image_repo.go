package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

type ImageRepository struct {
	mu     sync.RWMutex
	images map[string]domain.Image
}

func NewImageRepository() *ImageRepository {
	return &ImageRepository{images: make(map[string]domain.Image)}
}

func (r *ImageRepository) Create(ctx context.Context, image *domain.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now()
	}
	r.images[image.ID] = *image
	return nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id string) (*domain.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return &img, nil
}

func (r *ImageRepository) FindByPath(ctx context.Context, path string) (*domain.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, img := range r.images {
		if img.Path == path {
			found := img
			return &found, nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (r *ImageRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Image, 0, len(ids))
	for _, id := range ids {
		if img, ok := r.images[id]; ok {
			found := img
			out = append(out, &found)
		}
	}
	return out, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.images, id)
	return nil
}

func (r *ImageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.images)
}
