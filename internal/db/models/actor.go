package models

// Actor identifies who changed a setting. The zero value stands for the system.
type Actor struct {
	// ID is the external user id.
	ID string `gorm:"size:64"   json:"id,omitempty"`
	// Name is the display name.
	Name string `gorm:"size:100"  json:"name,omitempty"`
	// Email is the user's email address.
	Email string `gorm:"size:255" json:"email,omitempty"`
}

// IsZero reports whether no actor is set.
func (a Actor) IsZero() bool {
	return a.ID == "" && a.Name == "" && a.Email == ""
}

// Ptr returns nil for the system actor and a pointer to a otherwise.
func (a Actor) Ptr() *Actor {
	if a.IsZero() {
		return nil
	}

	return &a
}
