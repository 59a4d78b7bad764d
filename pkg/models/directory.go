package models

// User is the slice of the auth/profile subsystem's user record this core
// reads. Read-only here.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Listing is the slice of a classifieds post this core reads. Listings may
// be deleted independently of conversations that reference them.
type Listing struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Price int64  `json:"price,omitempty"`
	Image string `json:"image,omitempty"`
}
