package models

import "time"

// SocialLink is one entry of a profile's social media list, stored as JSONB.
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Profile is a business card. PhotoKey is the blob storage key of the
// normalized photo, or empty when the profile has none.
type Profile struct {
	ID             string
	UserID         string
	Email          string
	Slug           string
	FirstName      string
	LastName       string
	PhoneNumber    string
	Position       string
	Company        string
	CompanyAddress string
	About          string
	SocialMedia    []SocialLink
	PrimaryColour  string
	CardColour     string
	PhotoKey       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
