// Package model provides data models for the user administration backend.
package model

import (
	"encoding/json"
	"fmt"
)

// User represents a user profile as stored in the USERS collection.
// ID is assigned by the identity provider and never changes.
type User struct {
	ID                        string  `json:"id"`
	Name                      string  `json:"name"`
	Email                     string  `json:"email"`
	TotalAverageWeightRatings float64 `json:"totalAverageWeightRatings"`
	NumberOfRents             int64   `json:"numberOfRents"`
	RecentlyActive            int64   `json:"recentlyActive"` // epoch milliseconds
}

// NewUser is the create payload. Numeric fields are pointers so that an absent
// field can be told apart from an explicit zero.
type NewUser struct {
	Name                      string   `json:"name" validate:"required"`
	Email                     string   `json:"email" validate:"required,email"`
	Password                  string   `json:"password,omitempty" validate:"omitempty,min=6"`
	TotalAverageWeightRatings *float64 `json:"totalAverageWeightRatings" validate:"required"`
	NumberOfRents             *int64   `json:"numberOfRents" validate:"required"`
	RecentlyActive            *int64   `json:"recentlyActive" validate:"required"`
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Name                      *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Email                     *string  `json:"email,omitempty" validate:"omitempty,email"`
	TotalAverageWeightRatings *float64 `json:"totalAverageWeightRatings,omitempty"`
	NumberOfRents             *int64   `json:"numberOfRents,omitempty"`
	RecentlyActive            *int64   `json:"recentlyActive,omitempty"`
}

// ProfileFor builds the stored profile for a freshly created account.
func (n NewUser) ProfileFor(id string) User {
	u := User{ID: id, Name: n.Name, Email: n.Email}
	if n.TotalAverageWeightRatings != nil {
		u.TotalAverageWeightRatings = *n.TotalAverageWeightRatings
	}
	if n.NumberOfRents != nil {
		u.NumberOfRents = *n.NumberOfRents
	}
	if n.RecentlyActive != nil {
		u.RecentlyActive = *n.RecentlyActive
	}
	return u
}

// Fields returns the user as a flat field map suitable for a document store.
func (u User) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":                        u.ID,
		"name":                      u.Name,
		"email":                     u.Email,
		"totalAverageWeightRatings": u.TotalAverageWeightRatings,
		"numberOfRents":             u.NumberOfRents,
		"recentlyActive":            u.RecentlyActive,
	}
}

// IsEmpty reports whether the patch carries no field at all.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.TotalAverageWeightRatings == nil &&
		p.NumberOfRents == nil && p.RecentlyActive == nil
}

// Fields returns only the fields present in the patch.
func (p UserPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.TotalAverageWeightRatings != nil {
		fields["totalAverageWeightRatings"] = *p.TotalAverageWeightRatings
	}
	if p.NumberOfRents != nil {
		fields["numberOfRents"] = *p.NumberOfRents
	}
	if p.RecentlyActive != nil {
		fields["recentlyActive"] = *p.RecentlyActive
	}
	return fields
}

// UserFromFields decodes a stored document. The key is used as the id when the
// document does not carry one.
func UserFromFields(key string, fields map[string]interface{}) (User, error) {
	var u User
	raw, err := json.Marshal(fields)
	if err != nil {
		return u, fmt.Errorf("encode user document %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, fmt.Errorf("decode user document %s: %w", key, err)
	}
	if u.ID == "" {
		u.ID = key
	}
	return u, nil
}
