package domain

// Multipart field names of the listing submission form.
const (
	FormTypeID            = "typeId"
	FormCategoryID        = "categoryId"
	FormSubCategoryID     = "subCategoryId"
	FormDescription       = "description"
	FormPrice             = "price"
	FormContact           = "contact"
	FormRegionID          = "regionId"
	FormSubRegionID       = "subRegionId"
	FormTypeName          = "typeName"
	FormTypeNameAr        = "typeNameAr"
	FormCategoryName      = "categoryName"
	FormCategoryNameAr    = "categoryNameAr"
	FormClassificationFr  = "classificationFr"
	FormClassificationAr  = "classificationAr"
	FormIsBroker          = "isBroker"
	FormDirectNegotiation = "directNegotiation"
	FormIsPublished       = "isPublished"
	FormIsSponsored       = "isSponsored"
	FormFiles             = "files"
	FormMainIndex         = "mainIndex"
)

// Taxonomy tags for the location trees.
const (
	TagRegion    = "wilaya"
	TagSubRegion = "moughataa"
)
