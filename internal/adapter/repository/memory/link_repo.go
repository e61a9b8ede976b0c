package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

type linkKey struct {
	listingID string
	imageID   string
}

type LinkRepository struct {
	mu    sync.RWMutex
	links map[linkKey]domain.Link
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{links: make(map[linkKey]domain.Link)}
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := linkKey{link.ListingID, link.ImageID}
	if _, exists := r.links[key]; exists {
		return domain.ErrDuplicateLink
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	r.links[key] = *link
	return nil
}

// ListByListing returns the listing's links in creation order.
func (r *LinkRepository) ListByListing(ctx context.Context, listingID string) ([]*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Link
	for k, l := range r.links {
		if k.listingID == listingID {
			found := l
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ImageID < out[j].ImageID
	})
	return out, nil
}

func (r *LinkRepository) Delete(ctx context.Context, listingID, imageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := linkKey{listingID, imageID}
	if _, ok := r.links[key]; !ok {
		return false, nil
	}
	delete(r.links, key)
	return true, nil
}

func (r *LinkRepository) CountByImage(ctx context.Context, imageID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for k := range r.links {
		if k.imageID == imageID {
			n++
		}
	}
	return n, nil
}

func (r *LinkRepository) SetMain(ctx context.Context, listingID, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, l := range r.links {
		if k.listingID != listingID {
			continue
		}
		l.IsMain = k.imageID == imageID
		r.links[k] = l
	}
	return nil
}
