// Package directory exposes the read-only user/listing lookups the
// messaging core needs. Both entities are owned elsewhere; a lookup miss is
// an expected condition (deleted user or listing), not an error the views
// surface.
package directory

import (
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
)

// ErrNotFound marks a dangling reference; views render a fallback label.
var ErrNotFound = store.ErrNotFound

// Lookup is the narrow contract the view-models depend on.
type Lookup interface {
	User(id string) (models.User, error)
	Listing(id string) (models.Listing, error)
}

// StoreLookup reads mirrored user/listing documents from the pebble store.
type StoreLookup struct{}

func (StoreLookup) User(id string) (models.User, error) {
	return store.GetUser(id)
}

func (StoreLookup) Listing(id string) (models.Listing, error) {
	return store.GetListing(id)
}

// Static is a fixed in-memory lookup for tests.
type Static struct {
	Users    map[string]models.User
	Listings map[string]models.Listing
}

func (s Static) User(id string) (models.User, error) {
	if u, ok := s.Users[id]; ok {
		return u, nil
	}
	return models.User{}, ErrNotFound
}

func (s Static) Listing(id string) (models.Listing, error) {
	if l, ok := s.Listings[id]; ok {
		return l, nil
	}
	return models.Listing{}, ErrNotFound
}

var _ Lookup = StoreLookup{}
var _ Lookup = Static{}
