package usecase

import "github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"

// RequireAdmin is the single capability check in front of every mutating
// operation and every admin read.
func RequireAdmin(actor *domain.Identity) error {
	if actor == nil || actor.ID == "" {
		return domain.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func actorID(actor *domain.Identity) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
