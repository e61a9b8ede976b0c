package domain

import (
	"sort"
	"strings"
)

// DeriveTitle returns the first MaxTitleLength characters of the description.
func DeriveTitle(description string) string {
	d := strings.TrimSpace(description)
	runes := []rune(d)
	if len(runes) <= MaxTitleLength {
		return d
	}
	return string(runes[:MaxTitleLength])
}

// DeriveFirstImage picks the listing's cover image from its links: the link
// flagged main, otherwise the earliest link (ties broken by image id). Links
// whose image record is missing are ignored. Returns nil when nothing is left.
func DeriveFirstImage(links []*Link, images []*Image) *string {
	byID := make(map[string]*Image, len(images))
	for _, img := range images {
		if img != nil {
			byID[img.ID] = img
		}
	}

	ordered := make([]*Link, 0, len(links))
	for _, l := range links {
		if l != nil {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsMain != b.IsMain {
			return a.IsMain
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ImageID < b.ImageID
	})

	for _, l := range ordered {
		if img, ok := byID[l.ImageID]; ok {
			path := img.Path
			return &path
		}
	}
	return nil
}

// JoinLabels joins the non-empty classification labels with "/".
func JoinLabels(labels ...string) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if s := strings.TrimSpace(l); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
