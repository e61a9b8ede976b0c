package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/repository/memory"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

func TestRequireAdmin(t *testing.T) {
	assert.ErrorIs(t, RequireAdmin(nil), domain.ErrUnauthenticated)
	assert.ErrorIs(t, RequireAdmin(&domain.Identity{Role: "admin"}), domain.ErrUnauthenticated)
	assert.ErrorIs(t, RequireAdmin(operator), domain.ErrForbidden)
	assert.NoError(t, RequireAdmin(admin))
}

func TestValidateBatch(t *testing.T) {
	t.Run("too many files", func(t *testing.T) {
		files := make([]domain.UploadFile, domain.MaxFiles+1)
		for i := range files {
			files[i] = png("p.png")
		}
		_, err := ValidateBatch(files, false)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := ValidateBatch(nil, false)
		assert.ErrorIs(t, err, domain.ErrValidation)

		out, err := ValidateBatch(nil, true)
		assert.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("disallowed type", func(t *testing.T) {
		txt := domain.UploadFile{Name: "fileB.txt", ContentType: "text/plain", Data: []byte("hello")}
		_, err := ValidateBatch([]domain.UploadFile{png("fileA.png"), txt}, false)
		assert.ErrorIs(t, err, domain.ErrUnsupportedMediaType)
		assert.True(t, domain.IsMediaConstraint(err))
	})

	t.Run("oversized by declared size", func(t *testing.T) {
		big := png("big.png")
		big.Size = domain.MaxFileSize + 1
		_, err := ValidateBatch([]domain.UploadFile{png("a.png"), big}, false)
		assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	})

	t.Run("oversized by content", func(t *testing.T) {
		data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, domain.MaxFileSize)...)
		_, err := ValidateBatch([]domain.UploadFile{{Name: "huge.png", ContentType: "image/png", Data: data}}, false)
		assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	})

	t.Run("oversized part without bytes", func(t *testing.T) {
		big := domain.UploadFile{Name: "big.png", ContentType: "application/octet-stream", Size: domain.MaxFileSize + 1}
		_, err := ValidateBatch([]domain.UploadFile{big}, false)
		assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)

		big.ContentType = ""
		_, err = ValidateBatch([]domain.UploadFile{big}, false)
		assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	})

	t.Run("generic type is sniffed", func(t *testing.T) {
		f := png("camera")
		f.ContentType = "application/octet-stream"
		out, err := ValidateBatch([]domain.UploadFile{f}, false)
		require.NoError(t, err)
		assert.Equal(t, "image/png", out[0].ContentType)

		jpeg := domain.UploadFile{Name: "x", Data: []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF\x00")}
		out, err = ValidateBatch([]domain.UploadFile{jpeg}, false)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", out[0].ContentType)
	})

	t.Run("declared parameters are ignored", func(t *testing.T) {
		f := png("a.png")
		f.ContentType = "IMAGE/PNG; charset=binary"
		out, err := ValidateBatch([]domain.UploadFile{f}, false)
		require.NoError(t, err)
		assert.Equal(t, "image/png", out[0].ContentType)
	})
}

func TestClampMainIndex(t *testing.T) {
	assert.Equal(t, 0, ClampMainIndex(-1, 3))
	assert.Equal(t, 0, ClampMainIndex(3, 3))
	assert.Equal(t, 2, ClampMainIndex(2, 3))
}

func TestAttach_RejectedBeforeAnyUpload(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	l := f.seedListing(t)
	ctx := context.Background()

	nine := make([]domain.UploadFile, 9)
	for i := range nine {
		nine[i] = png("p.png")
	}
	_, err := f.imageUC.Attach(ctx, admin, l.ID, nine, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	big := png("big.png")
	big.Size = domain.MaxFileSize + 1
	_, err = f.imageUC.Attach(ctx, admin, l.ID, []domain.UploadFile{png("a.png"), big, png("c.png")}, 0)
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	txt := domain.UploadFile{Name: "fileB.txt", ContentType: "text/plain", Data: []byte("notes")}
	_, err = f.imageUC.Attach(ctx, admin, l.ID, []domain.UploadFile{png("fileA.png"), txt}, 0)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMediaType)

	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.images.Len())
	f.assertImageInvariant(t, l.ID)
}

func TestAttach_AuthorizationAndState(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	l := f.seedListing(t)
	ctx := context.Background()
	files := []domain.UploadFile{png("a.png")}

	_, err := f.imageUC.Attach(ctx, nil, l.ID, files, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.imageUC.Attach(ctx, operator, l.ID, files, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.imageUC.Attach(ctx, admin, "missing", files, 0)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	require.NoError(t, f.listings.SetStatus(ctx, l.ID, domain.StatusDeleted))
	_, err = f.imageUC.Attach(ctx, admin, l.ID, files, 0)
	assert.ErrorIs(t, err, domain.ErrListingDeleted)

	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttach_PartialFailureFallsBackToFirstSuccess(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, domain.SubjectImagesAttached, mock.Anything).Return(nil).Once()

	f := newFixture(t, fixtureOpts{extra: []Option{WithPublisher(pub)}})
	l := f.seedListing(t)

	f.store.On("Upload", mock.Anything, l.ID, fileNamed("a.png")).Return("http://cdn/a.png", nil)
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("b.png")).Return("", errors.New("minio down"))
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("c.png")).Return("http://cdn/c.png", nil)

	res, err := f.imageUC.Attach(context.Background(), admin, l.ID,
		[]domain.UploadFile{png("a.png"), png("b.png"), png("c.png")}, 1)
	require.NoError(t, err)

	require.Len(t, res.Files, 3)
	assert.Equal(t, FileUploaded, res.Files[0].Status)
	assert.Equal(t, FileStoreFailed, res.Files[1].Status)
	assert.Equal(t, FileUploaded, res.Files[2].Status)
	assert.True(t, res.Files[0].IsMain, "main falls back to the first successful upload")
	assert.False(t, res.Files[2].IsMain)
	assert.Len(t, res.Uploaded(), 2)
	assert.Len(t, res.Failed(), 1)

	require.NotNil(t, res.FirstImagePath)
	assert.Equal(t, "http://cdn/a.png", *res.FirstImagePath)
	assert.True(t, res.HaveImage)

	stored := f.reload(t, l.ID)
	require.NotNil(t, stored.FirstImagePath)
	assert.Equal(t, "http://cdn/a.png", *stored.FirstImagePath)
	assert.Equal(t, 2, f.images.Len())
	f.assertImageInvariant(t, l.ID)
	f.store.AssertNumberOfCalls(t, "Upload", 3)
	pub.AssertExpectations(t)
}

func TestAttach_MainIndexSelectsCover(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	l := f.seedListing(t)
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("a.png")).Return("http://cdn/a.png", nil)
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("b.png")).Return("http://cdn/b.png", nil)

	res, err := f.imageUC.Attach(context.Background(), admin, l.ID, []domain.UploadFile{png("a.png"), png("b.png")}, 1)
	require.NoError(t, err)
	require.NotNil(t, res.FirstImagePath)
	assert.Equal(t, "http://cdn/b.png", *res.FirstImagePath)

	// out of range main index means the first file
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("c.png")).Return("http://cdn/c.png", nil)
	res, err = f.imageUC.Attach(context.Background(), admin, l.ID, []domain.UploadFile{png("c.png")}, 7)
	require.NoError(t, err)
	require.NotNil(t, res.FirstImagePath)
	assert.Equal(t, "http://cdn/c.png", *res.FirstImagePath)
	assert.True(t, res.Files[0].IsMain)
	f.assertImageInvariant(t, l.ID)
}

func TestAttach_AllUploadsFail(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	l := f.seedListing(t)
	f.store.On("Upload", mock.Anything, l.ID, mock.Anything).Return("", errors.New("bucket gone"))

	res, err := f.imageUC.Attach(context.Background(), admin, l.ID, []domain.UploadFile{png("a.png"), png("b.png")}, 0)
	assert.ErrorIs(t, err, domain.ErrStorage)
	require.NotNil(t, res)
	assert.Empty(t, res.Uploaded())

	stored := f.reload(t, l.ID)
	assert.False(t, stored.HaveImage)
	assert.Nil(t, stored.FirstImagePath)
	f.assertImageInvariant(t, l.ID)
}

func TestAttach_LinkFailureRemovesImageRecord(t *testing.T) {
	links := &flakyLinks{LinkRepository: memory.NewLinkRepository(), failAll: true}
	f := newFixture(t, fixtureOpts{links: links})
	l := f.seedListing(t)
	f.store.On("Upload", mock.Anything, l.ID, mock.Anything).Return("http://cdn/a.png", nil)

	res, err := f.imageUC.Attach(context.Background(), admin, l.ID, []domain.UploadFile{png("a.png")}, 0)
	assert.ErrorIs(t, err, domain.ErrStorage)
	require.Len(t, res.Files, 1)
	assert.Equal(t, FilePersistFailed, res.Files[0].Status)
	assert.Zero(t, f.images.Len(), "unlinked image record must not survive")
	f.assertImageInvariant(t, l.ID)
}

func TestList(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	l := f.seedListing(t)
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("a.png")).Return("http://cdn/a.png", nil)
	f.store.On("Upload", mock.Anything, l.ID, fileNamed("b.png")).Return("http://cdn/b.png", nil)

	_, err := f.imageUC.Attach(context.Background(), admin, l.ID, []domain.UploadFile{png("a.png"), png("b.png")}, 0)
	require.NoError(t, err)

	g, err := f.imageUC.List(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, g.HaveImage)
	require.NotNil(t, g.FirstImagePath)
	assert.Equal(t, "http://cdn/a.png", *g.FirstImagePath)
	paths := []string{}
	for _, img := range g.Images {
		paths = append(paths, img.Path)
	}
	assert.ElementsMatch(t, []string{"http://cdn/a.png", "http://cdn/b.png"}, paths)

	_, err = f.imageUC.List(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestDetach_OrphanCollection(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	first := f.seedListing(t)
	second := f.seedListing(t)

	shared := &domain.Image{Path: "http://cdn/shared.png"}
	require.NoError(t, f.images.Create(ctx, shared))
	require.NoError(t, f.links.Create(ctx, &domain.Link{ListingID: first.ID, ImageID: shared.ID}))
	require.NoError(t, f.links.Create(ctx, &domain.Link{ListingID: second.ID, ImageID: shared.ID}))

	res, err := f.imageUC.Detach(ctx, admin, first.ID, ImageRef{ID: shared.ID})
	require.NoError(t, err)
	assert.False(t, res.OrphanCollected)
	assert.Empty(t, res.Remaining)
	assert.False(t, res.HaveImage)
	assert.Nil(t, res.FirstImagePath)
	_, err = f.images.FindByID(ctx, shared.ID)
	assert.NoError(t, err, "image still linked elsewhere must survive")
	f.assertImageInvariant(t, first.ID)

	res, err = f.imageUC.Detach(ctx, admin, second.ID, ImageRef{Path: "http://cdn/shared.png"})
	require.NoError(t, err)
	assert.True(t, res.OrphanCollected)
	_, err = f.images.FindByID(ctx, shared.ID)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
	f.assertImageInvariant(t, second.ID)
}

func TestDetach_MainImagePromotesEarliest(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	l := f.seedListing(t)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i, p := range []string{"http://cdn/1.png", "http://cdn/2.png", "http://cdn/3.png"} {
		img := &domain.Image{Path: p}
		require.NoError(t, f.images.Create(ctx, img))
		require.NoError(t, f.links.Create(ctx, &domain.Link{ListingID: l.ID, ImageID: img.ID, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}))
		ids = append(ids, img.ID)
	}
	require.NoError(t, f.links.SetMain(ctx, l.ID, ids[2]))

	res, err := f.imageUC.Detach(ctx, admin, l.ID, ImageRef{ID: ids[2]})
	require.NoError(t, err)
	require.NotNil(t, res.FirstImagePath)
	assert.Equal(t, "http://cdn/1.png", *res.FirstImagePath)
	assert.Len(t, res.Remaining, 2)
	assert.Equal(t, "http://cdn/3.png", res.Removed.Path)
	f.assertImageInvariant(t, l.ID)
}

func TestDetach_UnknownImageLeavesListingUntouched(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	l := f.seedListing(t)
	f.store.On("Upload", mock.Anything, l.ID, mock.Anything).Return("http://cdn/a.png", nil)
	_, err := f.imageUC.Attach(ctx, admin, l.ID, []domain.UploadFile{png("a.png")}, 0)
	require.NoError(t, err)
	before := f.reload(t, l.ID)

	_, err = f.imageUC.Detach(ctx, admin, l.ID, ImageRef{Path: "http://cdn/nope.png"})
	assert.ErrorIs(t, err, domain.ErrImageNotFound)

	other := &domain.Image{Path: "http://cdn/other.png"}
	require.NoError(t, f.images.Create(ctx, other))
	_, err = f.imageUC.Detach(ctx, admin, l.ID, ImageRef{ID: other.ID})
	assert.ErrorIs(t, err, domain.ErrImageNotFound, "an image not linked to this listing is not found")

	after := f.reload(t, l.ID)
	assert.Equal(t, before.HaveImage, after.HaveImage)
	assert.Equal(t, before.FirstImagePath, after.FirstImagePath)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestDetach_Rejections(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	l := f.seedListing(t)

	_, err := f.imageUC.Detach(ctx, operator, l.ID, ImageRef{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.imageUC.Detach(ctx, admin, l.ID, ImageRef{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.imageUC.Detach(ctx, admin, "missing", ImageRef{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}
