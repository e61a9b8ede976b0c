package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/repository/memory"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

type MockMediaStore struct{ mock.Mock }

func (m *MockMediaStore) Upload(ctx context.Context, listingID string, file domain.UploadFile) (string, error) {
	args := m.Called(ctx, listingID, file)
	return args.String(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockCache) SetListing(ctx context.Context, listing *domain.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockCache) DeleteListing(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyListingCreated(ctx context.Context, listing *domain.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

// flakyLinks fails link creation for the image ids in failFor.
type flakyLinks struct {
	*memory.LinkRepository
	mu      sync.Mutex
	failFor map[string]bool
	failAll bool
}

func (f *flakyLinks) Create(ctx context.Context, link *domain.Link) error {
	f.mu.Lock()
	fail := f.failAll || f.failFor[link.ImageID]
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: link write refused", domain.ErrStorage)
	}
	return f.LinkRepository.Create(ctx, link)
}

var (
	admin    = &domain.Identity{ID: "u-admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	operator = &domain.Identity{ID: "u-op", Email: "op@example.com", Role: "user"}
)

type fixture struct {
	listings *memory.ListingRepository
	images   *memory.ImageRepository
	links    domain.LinkRepository
	rawLinks *memory.LinkRepository
	taxonomy *memory.TaxonomyRepository
	store    *MockMediaStore
	imageUC  *ImageUsecase
	uc       *ListingUsecase
}

type fixtureOpts struct {
	links    domain.LinkRepository
	taxonomy bool
	extra    []Option
}

func newFixture(t *testing.T, fo fixtureOpts) *fixture {
	t.Helper()
	f := &fixture{
		listings: memory.NewListingRepository(),
		images:   memory.NewImageRepository(),
		rawLinks: memory.NewLinkRepository(),
		taxonomy: memory.NewTaxonomyRepository(),
		store:    &MockMediaStore{},
	}
	f.links = f.rawLinks
	if fo.links != nil {
		f.links = fo.links
	}
	log := logger.NewNop()
	opts := append([]Option{}, fo.extra...)
	if fo.taxonomy {
		opts = append(opts, WithTaxonomy(f.taxonomy))
	}
	f.imageUC = NewImageUsecase(f.listings, f.images, f.links, f.store, log, opts...)
	f.uc = NewListingUsecase(f.listings, f.imageUC, log, opts...)
	return f
}

func (f *fixture) seedListing(t *testing.T) *domain.Listing {
	t.Helper()
	l := &domain.Listing{Title: "Villa", Description: "Villa", TypeID: "T1", Status: domain.StatusActive}
	require.NoError(t, f.listings.Create(context.Background(), l))
	return l
}

func (f *fixture) reload(t *testing.T, id string) *domain.Listing {
	t.Helper()
	l, err := f.listings.FindByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

// assertImageInvariant checks haveImage == (firstImagePath != nil) == (links non-empty).
func (f *fixture) assertImageInvariant(t *testing.T, id string) {
	t.Helper()
	l := f.reload(t, id)
	links, err := f.links.ListByListing(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, l.HaveImage, l.FirstImagePath != nil, "haveImage must match firstImagePath")
	require.Equal(t, l.HaveImage, len(links) > 0, "haveImage must match link set")
}

func png(name string) domain.UploadFile {
	data := []byte("\x89PNG\r\n\x1a\nfake-image-bytes")
	return domain.UploadFile{Name: name, ContentType: "image/png", Size: int64(len(data)), Data: data}
}

func fileNamed(name string) interface{} {
	return mock.MatchedBy(func(f domain.UploadFile) bool { return f.Name == name })
}

func ptr[T any](v T) *T { return &v }
