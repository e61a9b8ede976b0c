package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

func villaFields() domain.ListingFields {
	return domain.ListingFields{
		TypeID:      "T1",
		Description: "Villa",
		Price:       ptr(1000.0),
		Contact:     "+222 4412 3456",
		TypeName:    "Vente",
		TypeNameAr:  "بيع",
	}
}

func TestCreate_TitleFromDescription(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res, err := f.uc.Create(context.Background(), admin, CreateInput{Fields: villaFields()})
	require.NoError(t, err)
	require.NotNil(t, res.Listing)
	assert.Nil(t, res.Images)

	stored := f.reload(t, res.Listing.ID)
	assert.Equal(t, "Villa", stored.Title)
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.False(t, stored.HaveImage)
	assert.Nil(t, stored.FirstImagePath)
	assert.Equal(t, "Vente", stored.ClassificationFr)
	assert.Equal(t, "بيع", stored.ClassificationAr)
	require.NotNil(t, stored.Price)
	assert.Equal(t, 1000.0, *stored.Price)
	f.assertImageInvariant(t, stored.ID)
}

func TestCreate_LongDescriptionTruncatesTitle(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	in := villaFields()
	in.Description = "Appartement lumineux de trois pièces avec balcon et vue sur la mer, proche du centre"

	res, err := f.uc.Create(context.Background(), admin, CreateInput{Fields: in})
	require.NoError(t, err)
	assert.Equal(t, []rune(in.Description)[:domain.MaxTitleLength], []rune(res.Listing.Title))
}

func TestCreate_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.ListingFields)
		field  string
	}{
		{"missing type", func(f *domain.ListingFields) { f.TypeID = " " }, domain.FormTypeID},
		{"missing description", func(f *domain.ListingFields) { f.Description = "" }, domain.FormDescription},
		{"negative price", func(f *domain.ListingFields) { f.Price = ptr(-1.0) }, domain.FormPrice},
		{"bad contact", func(f *domain.ListingFields) { f.Contact = "call me" }, domain.FormContact},
		{"broker without negotiation", func(f *domain.ListingFields) { f.IsBroker = true }, domain.FormDirectNegotiation},
		{"sub-category alone", func(f *domain.ListingFields) { f.SubCategoryID = "S1" }, domain.FormCategoryID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{})
			in := villaFields()
			tc.mutate(&in)

			_, err := f.uc.Create(context.Background(), admin, CreateInput{Fields: in})
			require.ErrorIs(t, err, domain.ErrValidation)
			var fe domain.FieldErrors
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe, tc.field)

			_, total, err := f.listings.Query(context.Background(), domain.Filter{})
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestCreate_BrokerWithNegotiationFlag(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	in := villaFields()
	in.IsBroker = true
	in.DirectNegotiation = ptr(false)

	res, err := f.uc.Create(context.Background(), admin, CreateInput{Fields: in})
	require.NoError(t, err)
	assert.True(t, res.Listing.IsBroker)
	require.NotNil(t, res.Listing.DirectNegotiation)
	assert.False(t, *res.Listing.DirectNegotiation)
}

func TestCreate_TaxonomyRequiresChildren(t *testing.T) {
	f := newFixture(t, fixtureOpts{taxonomy: true})
	f.taxonomy.Add(
		domain.TaxonomyNode{ID: "T2", Name: "Location"},
		domain.TaxonomyNode{ID: "C1", ParentID: "T2", Name: "Maison"},
		domain.TaxonomyNode{ID: "S1", ParentID: "C1", Name: "Villa"},
		domain.TaxonomyNode{ID: "C9", ParentID: "T9", Name: "Autre"},
	)
	ctx := context.Background()

	in := villaFields()
	in.TypeID = "T2"
	_, err := f.uc.Create(ctx, admin, CreateInput{Fields: in})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), domain.FormCategoryID)

	in.CategoryID = "C9"
	_, err = f.uc.Create(ctx, admin, CreateInput{Fields: in})
	require.ErrorIs(t, err, domain.ErrValidation)

	in.CategoryID = "C1"
	_, err = f.uc.Create(ctx, admin, CreateInput{Fields: in})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), domain.FormSubCategoryID)

	in.SubCategoryID = "S1"
	res, err := f.uc.Create(ctx, admin, CreateInput{Fields: in})
	require.NoError(t, err)
	assert.Equal(t, "S1", res.Listing.SubCategoryID)

	// a type without categories needs none
	plain := villaFields()
	_, err = f.uc.Create(ctx, admin, CreateInput{Fields: plain})
	assert.NoError(t, err)
}

func TestCreate_Authorization(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.uc.Create(context.Background(), nil, CreateInput{Fields: villaFields()})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.uc.Create(context.Background(), operator, CreateInput{Fields: villaFields()})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreate_WithImages(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, domain.SubjectListingCreated, mock.MatchedBy(func(ev domain.ListingEvent) bool {
		return ev.FirstImagePath != nil && *ev.FirstImagePath == "http://cdn/b.png"
	})).Return(nil).Once()
	notifier := &MockNotifier{}
	notifier.On("NotifyListingCreated", mock.Anything, mock.Anything).Return(nil).Once()

	f := newFixture(t, fixtureOpts{extra: []Option{WithPublisher(pub), WithNotifier(notifier)}})
	f.store.On("Upload", mock.Anything, mock.Anything, fileNamed("a.png")).Return("", errors.New("timeout"))
	f.store.On("Upload", mock.Anything, mock.Anything, fileNamed("b.png")).Return("http://cdn/b.png", nil)

	res, err := f.uc.Create(context.Background(), admin, CreateInput{
		Fields:    villaFields(),
		Files:     []domain.UploadFile{png("a.png"), png("b.png")},
		MainIndex: 0,
	})
	require.NoError(t, err, "a failed upload never rolls the listing back")
	require.NotNil(t, res.Images)
	assert.Len(t, res.Images.Uploaded(), 1)
	assert.Len(t, res.Images.Failed(), 1)
	assert.True(t, res.Listing.HaveImage)

	stored := f.reload(t, res.Listing.ID)
	require.NotNil(t, stored.FirstImagePath)
	assert.Equal(t, "http://cdn/b.png", *stored.FirstImagePath)
	f.assertImageInvariant(t, stored.ID)
	pub.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestCreate_BadFilesStoreNothing(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	big := png("big.png")
	big.Size = domain.MaxFileSize + 1

	_, err := f.uc.Create(context.Background(), admin, CreateInput{
		Fields: villaFields(),
		Files:  []domain.UploadFile{png("a.png"), big},
	})
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	items, total, err := f.listings.Query(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_NotifierFailureIsIgnored(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("NotifyListingCreated", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f := newFixture(t, fixtureOpts{extra: []Option{WithNotifier(notifier)}})

	_, err := f.uc.Create(context.Background(), admin, CreateInput{Fields: villaFields()})
	assert.NoError(t, err)
}

func TestSetPublished(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	l := f.seedListing(t)

	got, err := f.uc.SetPublished(ctx, admin, l.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)

	got, err = f.uc.SetPublished(ctx, admin, l.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	assert.True(t, f.reload(t, l.ID).IsPublished)

	got, err = f.uc.SetPublished(ctx, admin, l.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsPublished)

	_, err = f.uc.SetPublished(ctx, admin, "missing", true)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	_, err = f.uc.SetPublished(ctx, operator, l.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetSponsored(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	l := f.seedListing(t)

	require.NoError(t, f.uc.SetSponsored(ctx, admin, l.ID, true))
	assert.True(t, f.reload(t, l.ID).IsSponsored)
	require.NoError(t, f.uc.SetSponsored(ctx, admin, l.ID, false))
	assert.False(t, f.reload(t, l.ID).IsSponsored)

	assert.ErrorIs(t, f.uc.SetSponsored(ctx, nil, l.ID, true), domain.ErrUnauthenticated)
	assert.ErrorIs(t, f.uc.SetSponsored(ctx, admin, "missing", true), domain.ErrListingNotFound)
}

func TestSoftDelete(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, domain.SubjectListingDeleted, mock.Anything).Return(nil).Once()
	f := newFixture(t, fixtureOpts{extra: []Option{WithPublisher(pub)}})
	ctx := context.Background()
	l := f.seedListing(t)

	require.NoError(t, f.uc.SoftDelete(ctx, admin, l.ID))
	assert.Equal(t, domain.StatusDeleted, f.reload(t, l.ID).Status)
	require.NoError(t, f.uc.SoftDelete(ctx, admin, l.ID), "deleting twice succeeds")
	pub.AssertExpectations(t)

	_, err := f.uc.SetPublished(ctx, admin, l.ID, true)
	assert.ErrorIs(t, err, domain.ErrListingDeleted)
	assert.ErrorIs(t, f.uc.SetSponsored(ctx, admin, l.ID, true), domain.ErrListingDeleted)
	_, err = f.uc.Update(ctx, admin, l.ID, domain.ListingPatch{Description: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrListingDeleted)

	assert.ErrorIs(t, f.uc.SoftDelete(ctx, admin, "missing"), domain.ErrListingNotFound)
	assert.ErrorIs(t, f.uc.SoftDelete(ctx, operator, l.ID), domain.ErrForbidden)
}

func TestQuery(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	var published []string
	for i := 0; i < 5; i++ {
		res, err := f.uc.Create(ctx, admin, CreateInput{Fields: villaFields()})
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = f.uc.SetPublished(ctx, admin, res.Listing.ID, true)
			require.NoError(t, err)
			published = append(published, res.Listing.ID)
		}
	}

	page, err := f.uc.Query(ctx, admin, domain.Filter{Published: ptr(true), Status: domain.StatusActive})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 3)
	assert.Equal(t, published[2], page.Items[0].ID, "newest first")
	assert.Equal(t, published[0], page.Items[2].ID)
	for _, it := range page.Items {
		assert.True(t, it.IsPublished)
	}

	page, err = f.uc.Query(ctx, admin, domain.Filter{Published: ptr(false), Status: domain.StatusActive})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	_, err = f.uc.Query(ctx, operator, domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestQuery_PaginationUsesConfiguredPageSize(t *testing.T) {
	f := newFixture(t, fixtureOpts{extra: []Option{WithPageSize(2)}})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.uc.Create(ctx, admin, CreateInput{Fields: villaFields()})
		require.NoError(t, err)
	}

	page, err := f.uc.Query(ctx, admin, domain.Filter{Page: 3, PageSize: 100})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.CurrentPage)

	page, err = f.uc.Query(ctx, admin, domain.Filter{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Items, 2)

	page, err = f.uc.Query(ctx, admin, domain.Filter{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestGet_CacheAside(t *testing.T) {
	cache := &MockCache{}
	f := newFixture(t, fixtureOpts{extra: []Option{WithCache(cache)}})
	ctx := context.Background()
	l := f.seedListing(t)

	cache.On("GetListing", mock.Anything, l.ID).Return(nil, nil).Once()
	cache.On("SetListing", mock.Anything, mock.MatchedBy(func(got *domain.Listing) bool { return got.ID == l.ID })).Return(nil).Once()

	got, err := f.uc.Get(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Villa", got.Title)

	cached := &domain.Listing{ID: l.ID, Title: "from cache"}
	cache.On("GetListing", mock.Anything, l.ID).Return(cached, nil).Once()
	got, err = f.uc.Get(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "from cache", got.Title)

	cache.On("GetListing", mock.Anything, "missing").Return(nil, errors.New("redis down")).Once()
	_, err = f.uc.Get(ctx, admin, "missing")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	cache.On("DeleteListing", mock.Anything, l.ID).Return(nil).Once()
	require.NoError(t, f.uc.SetSponsored(ctx, admin, l.ID, true))

	cache.AssertExpectations(t)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	res, err := f.uc.Create(ctx, admin, CreateInput{Fields: domain.ListingFields{
		TypeID: "T1", Description: "Villa", RegionID: "R1", SubRegionID: "M1",
	}})
	require.NoError(t, err)
	id := res.Listing.ID

	got, err := f.uc.Update(ctx, admin, id, domain.ListingPatch{
		Description: ptr("Maison avec jardin"),
		Price:       ptr(250.0),
		SubRegionID: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Maison avec jardin", got.Title)
	assert.Equal(t, "R1", got.RegionID)
	assert.Empty(t, got.SubRegionID)
	require.NotNil(t, got.Price)
	assert.Equal(t, 250.0, *got.Price)

	stored := f.reload(t, id)
	assert.Equal(t, "Maison avec jardin", stored.Description)
	assert.Empty(t, stored.SubRegionID)

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{Description: ptr("  ")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{Price: ptr(-5.0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{SubCategoryID: ptr("S1")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Maison avec jardin", f.reload(t, id).Description, "rejected patches leave the listing as is")

	_, err = f.uc.Update(ctx, admin, "missing", domain.ListingPatch{Price: ptr(1.0)})
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestUpdate_ClearPrice(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	res, err := f.uc.Create(ctx, admin, CreateInput{Fields: domain.ListingFields{
		TypeID: "T1", Description: "Villa", Price: ptr(900.0),
	}})
	require.NoError(t, err)
	id := res.Listing.ID

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{Price: ptr(1.0), ClearPrice: true})
	assert.ErrorIs(t, err, domain.ErrValidation)
	require.NotNil(t, f.reload(t, id).Price)

	got, err := f.uc.Update(ctx, admin, id, domain.ListingPatch{ClearPrice: true})
	require.NoError(t, err)
	assert.Nil(t, got.Price)
	assert.Nil(t, f.reload(t, id).Price)
}

func TestUpdate_RelabelsClassification(t *testing.T) {
	f := newFixture(t, fixtureOpts{taxonomy: true})
	f.taxonomy.Add(
		domain.TaxonomyNode{ID: "T1", Name: "Vente", NameAr: "بيع"},
		domain.TaxonomyNode{ID: "C1", ParentID: "T1", Name: "Maison", NameAr: "منزل"},
		domain.TaxonomyNode{ID: "T2", Name: "Location", NameAr: "إيجار"},
		domain.TaxonomyNode{ID: "C2", ParentID: "T2", Name: "Terrain", NameAr: "أرض"},
		domain.TaxonomyNode{ID: "T3", Name: "Services"},
	)
	ctx := context.Background()
	res, err := f.uc.Create(ctx, admin, CreateInput{Fields: domain.ListingFields{
		TypeID: "T1", CategoryID: "C1", Description: "Villa",
		TypeName: "Vente", TypeNameAr: "بيع", CategoryName: "Maison", CategoryNameAr: "منزل",
	}})
	require.NoError(t, err)
	id := res.Listing.ID
	assert.Equal(t, "Vente/Maison", res.Listing.ClassificationFr)

	got, err := f.uc.Update(ctx, admin, id, domain.ListingPatch{TypeID: ptr("T2"), CategoryID: ptr("C2")})
	require.NoError(t, err)
	assert.Equal(t, "Location", got.TypeName)
	assert.Equal(t, "Terrain", got.CategoryName)
	assert.Equal(t, "Location/Terrain", got.ClassificationFr)
	assert.Equal(t, "إيجار/أرض", got.ClassificationAr)

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{TypeID: ptr("T3"), CategoryID: ptr("")})
	require.NoError(t, err)
	stored := f.reload(t, id)
	assert.Equal(t, "T3", stored.TypeID)
	assert.Empty(t, stored.CategoryID)
	assert.Equal(t, "Services", stored.TypeName)
	assert.Empty(t, stored.TypeNameAr)
	assert.Empty(t, stored.CategoryName)
	assert.Empty(t, stored.CategoryNameAr)
	assert.Equal(t, "Services", stored.ClassificationFr)
	assert.Empty(t, stored.ClassificationAr)
}

func TestUpdate_ClearsLabelsWithoutTaxonomy(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	res, err := f.uc.Create(ctx, admin, CreateInput{Fields: domain.ListingFields{
		TypeID: "T1", CategoryID: "C1", Description: "Villa",
		TypeName: "Vente", CategoryName: "Maison",
	}})
	require.NoError(t, err)
	id := res.Listing.ID

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{Description: ptr("Villa neuve")})
	require.NoError(t, err)
	assert.Equal(t, "Vente/Maison", f.reload(t, id).ClassificationFr, "labels survive edits that keep the ids")

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{CategoryID: ptr("")})
	require.NoError(t, err)
	stored := f.reload(t, id)
	assert.Equal(t, "Vente", stored.TypeName)
	assert.Empty(t, stored.CategoryName)
	assert.Equal(t, "Vente", stored.ClassificationFr)

	_, err = f.uc.Update(ctx, admin, id, domain.ListingPatch{TypeID: ptr("T2")})
	require.NoError(t, err)
	stored = f.reload(t, id)
	assert.Empty(t, stored.TypeName)
	assert.Empty(t, stored.ClassificationFr)
}
