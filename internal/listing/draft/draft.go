// Package draft assembles a listing across the three steps of the creation
// form. A Draft is an immutable value: every step transition returns a new
// Draft and leaves the receiver untouched, so the form can go back and retry
// without losing anything that was entered.
package draft

import (
	"strings"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

type Step int

const (
	StepDetails Step = iota + 1
	StepImages
	StepLocation
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepImages:
		return "images"
	case StepLocation:
		return "location"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Details is what the operator types in step 1.
type Details struct {
	TypeID            string
	CategoryID        string
	SubCategoryID     string
	Description       string
	Price             *float64
	Contact           string
	IsBroker          bool
	DirectNegotiation *bool
	IsPublished       bool
	IsSponsored       bool
}

// Classification is the slice of the taxonomy step 1 is validated against:
// the chosen type, its categories and the chosen category's sub-categories.
type Classification struct {
	Type          domain.TaxonomyNode
	Categories    []domain.TaxonomyNode
	SubCategories []domain.TaxonomyNode
}

func findNode(nodes []domain.TaxonomyNode, id string) (domain.TaxonomyNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.TaxonomyNode{}, false
}

type labels struct {
	typeName, typeNameAr         string
	categoryName, categoryNameAr string
}

type Draft struct {
	step      Step
	details   Details
	labels    labels
	files     []domain.UploadFile
	mainIndex int

	regionID    string
	subRegionID string
}

func New() Draft {
	return Draft{step: StepDetails}
}

func (d Draft) Step() Step       { return d.step }
func (d Draft) Details() Details { return d.details }
func (d Draft) MainIndex() int   { return d.mainIndex }
func (d Draft) RegionID() string { return d.regionID }

func (d Draft) SubRegionID() string { return d.subRegionID }

// Files returns a copy of the selected files.
func (d Draft) Files() []domain.UploadFile {
	return append([]domain.UploadFile(nil), d.files...)
}

func copyDetails(in Details) Details {
	out := in
	if in.Price != nil {
		p := *in.Price
		out.Price = &p
	}
	if in.DirectNegotiation != nil {
		v := *in.DirectNegotiation
		out.DirectNegotiation = &v
	}
	return out
}

// ValidateDetails checks step 1 against the classification options and
// returns every offending field at once.
func ValidateDetails(det Details, c Classification) domain.FieldErrors {
	fe := domain.FieldErrors{}
	if strings.TrimSpace(det.TypeID) == "" {
		fe.Add(domain.FormTypeID, "type is required")
	}
	if len(c.Categories) > 0 {
		if det.CategoryID == "" {
			fe.Add(domain.FormCategoryID, "category is required")
		} else if _, ok := findNode(c.Categories, det.CategoryID); !ok {
			fe.Add(domain.FormCategoryID, "unknown category")
		}
	}
	if len(c.SubCategories) > 0 {
		if det.SubCategoryID == "" {
			fe.Add(domain.FormSubCategoryID, "sub-category is required")
		} else if _, ok := findNode(c.SubCategories, det.SubCategoryID); !ok {
			fe.Add(domain.FormSubCategoryID, "unknown sub-category")
		}
	}
	if strings.TrimSpace(det.Description) == "" {
		fe.Add(domain.FormDescription, "description is required")
	}
	if det.Price != nil && *det.Price < 0 {
		fe.Add(domain.FormPrice, "price must not be negative")
	}
	if det.IsBroker && det.DirectNegotiation == nil {
		fe.Add(domain.FormDirectNegotiation, "choose whether negotiation is direct")
	}
	return fe
}

// errSubmitted rejects every transition of a draft that was already sent.
func (d Draft) errSubmitted() error {
	if d.step == StepSubmitted {
		return domain.Validationf("draft was already submitted")
	}
	return nil
}

// WithDetails records step 1. On validation failure the returned Draft is the
// receiver with the entered details kept, still on step 1.
func (d Draft) WithDetails(det Details, c Classification) (Draft, error) {
	if err := d.errSubmitted(); err != nil {
		return d, err
	}
	next := d
	next.details = copyDetails(det)
	if fe := ValidateDetails(det, c); len(fe) > 0 {
		next.step = StepDetails
		return next, fe
	}

	next.labels = labels{typeName: c.Type.Name, typeNameAr: c.Type.NameAr}
	if cat, ok := findNode(c.Categories, det.CategoryID); ok {
		next.labels.categoryName, next.labels.categoryNameAr = cat.Name, cat.NameAr
	}
	next.step = StepImages
	return next, nil
}

// WithImages records step 2. An out of range main index points at the first
// file.
func (d Draft) WithImages(files []domain.UploadFile, mainIndex int) (Draft, error) {
	if err := d.errSubmitted(); err != nil {
		return d, err
	}
	if d.step < StepImages {
		return d, domain.Validationf("details must be completed first")
	}
	if len(files) > domain.MaxFiles {
		return d, domain.Validationf("at most %d images, got %d", domain.MaxFiles, len(files))
	}
	next := d
	next.files = append([]domain.UploadFile(nil), files...)
	next.mainIndex = 0
	if mainIndex >= 0 && mainIndex < len(files) {
		next.mainIndex = mainIndex
	}
	next.step = StepLocation
	return next, nil
}

// SelectRegion picks the region. Choosing a different region drops the
// sub-region, whose options have to be fetched again. A submitted draft is
// returned unchanged.
func (d Draft) SelectRegion(regionID string) Draft {
	if d.step == StepSubmitted {
		return d
	}
	next := d
	if regionID != d.regionID {
		next.subRegionID = ""
	}
	next.regionID = regionID
	return next
}

func (d Draft) SelectSubRegion(subRegionID string) Draft {
	if d.step == StepSubmitted {
		return d
	}
	next := d
	next.subRegionID = subRegionID
	return next
}

// ReadyToSubmit reports whether the draft can be sent.
func (d Draft) ReadyToSubmit() error {
	if d.step < StepLocation {
		return domain.Validationf("draft is on step %s", d.step)
	}
	if err := d.errSubmitted(); err != nil {
		return err
	}
	fe := domain.FieldErrors{}
	if d.regionID == "" {
		fe.Add(domain.FormRegionID, "region is required")
	}
	if d.subRegionID == "" {
		fe.Add(domain.FormSubRegionID, "sub-region is required")
	}
	return fe.OrNil()
}

// Back returns to the previous step keeping every value.
func (d Draft) Back() Draft {
	next := d
	if next.step > StepDetails && next.step != StepSubmitted {
		next.step--
	}
	return next
}

func (d Draft) submitted() Draft {
	next := d
	next.step = StepSubmitted
	return next
}

// Fields is the listing payload the draft submits.
func (d Draft) Fields() domain.ListingFields {
	det := copyDetails(d.details)
	return domain.ListingFields{
		TypeID:            det.TypeID,
		CategoryID:        det.CategoryID,
		SubCategoryID:     det.SubCategoryID,
		Description:       det.Description,
		Price:             det.Price,
		Contact:           det.Contact,
		RegionID:          d.regionID,
		SubRegionID:       d.subRegionID,
		TypeName:          d.labels.typeName,
		TypeNameAr:        d.labels.typeNameAr,
		CategoryName:      d.labels.categoryName,
		CategoryNameAr:    d.labels.categoryNameAr,
		ClassificationFr:  domain.JoinLabels(d.labels.typeName, d.labels.categoryName),
		ClassificationAr:  domain.JoinLabels(d.labels.typeNameAr, d.labels.categoryNameAr),
		IsBroker:          det.IsBroker,
		DirectNegotiation: det.DirectNegotiation,
		IsPublished:       det.IsPublished,
		IsSponsored:       det.IsSponsored,
	}
}
