package services

import "github.com/kendall-kelly/triloka-construction-api/models"

// Actor is the authenticated caller of one request
type Actor struct {
	User      *models.User
	IPAddress string
	UserAgent string
}

// IsAdmin reports whether the caller is an admin
func (a Actor) IsAdmin() bool {
	return a.User.IsAdmin()
}

// UserID returns the caller's id, or 0 when anonymous
func (a Actor) UserID() uint {
	if a.User == nil {
		return 0
	}
	return a.User.ID
}

// Owns reports whether the caller is the given client
func (a Actor) Owns(clientID uint) bool {
	return a.User != nil && a.User.ID == clientID
}

// CanView reports whether the caller may read a record owned by clientID
func (a Actor) CanView(clientID uint) bool {
	return a.IsAdmin() || a.Owns(clientID)
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return Forbidden("Only admins can perform this action")
	}
	return nil
}
