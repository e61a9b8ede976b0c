package domain

import "time"

const (
	SubjectListingCreated   = "listing.created"
	SubjectListingUpdated   = "listing.updated"
	SubjectListingPublished = "listing.published"
	SubjectListingSponsored = "listing.sponsored"
	SubjectListingDeleted   = "listing.deleted"
	SubjectImagesAttached   = "listing.images.attached"
	SubjectImagesDetached   = "listing.images.detached"
)

type ListingEvent struct {
	ListingID      string    `json:"listingId"`
	ActorID        string    `json:"actorId,omitempty"`
	Title          string    `json:"title,omitempty"`
	IsPublished    *bool     `json:"isPublished,omitempty"`
	IsSponsored    *bool     `json:"isSponsored,omitempty"`
	Status         string    `json:"status,omitempty"`
	ImageIDs       []string  `json:"imageIds,omitempty"`
	FirstImagePath *string   `json:"firstImagePath,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
