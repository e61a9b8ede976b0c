// Package memory keeps listings, images and links in process memory. It backs
// STORE_DRIVER=memory and the usecase and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

type listingRow struct {
	listing domain.Listing
	seq     int64
}

type ListingRepository struct {
	mu   sync.RWMutex
	rows map[string]*listingRow
	seq  int64
	now  func() time.Time
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{rows: make(map[string]*listingRow), now: time.Now}
}

func cloneListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.Price != nil {
		p := *l.Price
		c.Price = &p
	}
	if l.DirectNegotiation != nil {
		d := *l.DirectNegotiation
		c.DirectNegotiation = &d
	}
	if l.FirstImagePath != nil {
		f := *l.FirstImagePath
		c.FirstImagePath = &f
	}
	return &c
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := r.now()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	if listing.Status == "" {
		listing.Status = domain.StatusActive
	}
	r.seq++
	r.rows[listing.ID] = &listingRow{listing: *cloneListing(listing), seq: r.seq}
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return cloneListing(&row.listing), nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[listing.ID]
	if !ok {
		return domain.ErrListingNotFound
	}
	listing.CreatedAt = row.listing.CreatedAt
	listing.UpdatedAt = r.now()
	row.listing = *cloneListing(listing)
	return nil
}

func (r *ListingRepository) mutate(id string, fn func(l *domain.Listing)) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	fn(&row.listing)
	row.listing.UpdatedAt = r.now()
	return cloneListing(&row.listing), nil
}

func (r *ListingRepository) SetPublished(ctx context.Context, id string, published bool) (*domain.Listing, error) {
	return r.mutate(id, func(l *domain.Listing) { l.IsPublished = published })
}

func (r *ListingRepository) SetSponsored(ctx context.Context, id string, sponsored bool) error {
	_, err := r.mutate(id, func(l *domain.Listing) { l.IsSponsored = sponsored })
	return err
}

func (r *ListingRepository) SetStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	_, err := r.mutate(id, func(l *domain.Listing) { l.Status = status })
	return err
}

func (r *ListingRepository) SetImageSummary(ctx context.Context, id string, haveImage bool, firstImagePath *string) error {
	_, err := r.mutate(id, func(l *domain.Listing) {
		l.HaveImage = haveImage
		if firstImagePath == nil {
			l.FirstImagePath = nil
			return
		}
		p := *firstImagePath
		l.FirstImagePath = &p
	})
	return err
}

func matches(l *domain.Listing, f domain.Filter) bool {
	if f.Published != nil && l.IsPublished != *f.Published {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Contact != "" && !strings.Contains(strings.ToLower(l.Contact), strings.ToLower(f.Contact)) {
		return false
	}
	if f.From != nil && l.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && l.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Query returns the requested page, newest first.
func (r *ListingRepository) Query(ctx context.Context, f domain.Filter) ([]*domain.Listing, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*listingRow
	for _, row := range r.rows {
		if matches(&row.listing, f) {
			hits = append(hits, row)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.listing.CreatedAt.Equal(b.listing.CreatedAt) {
			return a.listing.CreatedAt.After(b.listing.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(hits))
	start := f.Offset()
	if start > total {
		start = total
	}
	end := total
	if f.PageSize > 0 && start+int64(f.PageSize) < total {
		end = start + int64(f.PageSize)
	}

	items := make([]*domain.Listing, 0, end-start)
	for _, row := range hits[start:end] {
		items = append(items, cloneListing(&row.listing))
	}
	return items, total, nil
}
