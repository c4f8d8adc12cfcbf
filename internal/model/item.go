package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Field length limits.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxClaimantLength    = 100
)

// ClaimState is the position of an item in its lifecycle.
type ClaimState string

const (
	StateUnclaimed ClaimState = "unclaimed"
	StateClaimed   ClaimState = "claimed"
)

// Item is a reported found object awaiting claim or expiry.
type Item struct {
	ID          string     `json:"id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	Location    string     `json:"location" bson:"location"`
	Department  string     `json:"department" bson:"department"`
	FounderName string     `json:"founderName" bson:"founderName"`
	ContactInfo string     `json:"contactInfo,omitempty" bson:"contactInfo,omitempty"`
	ImageRef    string     `json:"imageRef" bson:"imageRef"`
	Category    Category   `json:"category" bson:"category"`
	Claimed     bool       `json:"claimed" bson:"claimed"`
	ClaimedBy   string     `json:"claimedBy,omitempty" bson:"claimedBy,omitempty"`
	ClaimedAt   *time.Time `json:"claimedAt,omitempty" bson:"claimedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// State reports whether the item has been claimed.
func (i *Item) State() ClaimState {
	if i.Claimed {
		return StateClaimed
	}
	return StateUnclaimed
}

// ExpiresAt returns when an unclaimed item becomes eligible for automatic removal.
// Claimed items never expire and report false.
func (i *Item) ExpiresAt(retention time.Duration) (time.Time, bool) {
	if i.Claimed || retention <= 0 {
		return time.Time{}, false
	}
	return i.CreatedAt.Add(retention), true
}

// Expired reports whether the item is eligible for removal at now.
func (i *Item) Expired(now time.Time, retention time.Duration) bool {
	at, ok := i.ExpiresAt(retention)
	return ok && !now.Before(at)
}

// Policy holds deployment-dependent validation rules.
type Policy struct {
	RequireContactInfo bool
}

// NewItemInput carries the metadata submitted with a new item.
type NewItemInput struct {
	Name        string
	Description string
	Location    string
	Department  string
	FounderName string
	ContactInfo string
	Category    string
}

// Normalize trims every field in place.
func (in *NewItemInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Department = strings.TrimSpace(in.Department)
	in.FounderName = strings.TrimSpace(in.FounderName)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	in.Category = strings.TrimSpace(in.Category)
}

// Validate checks a normalized input and returns the parsed category.
// Every problem is reported, not just the first.
func (in *NewItemInput) Validate(policy Policy) (Category, error) {
	v := &ValidationError{}

	checkName(v, in.Name)
	checkDescription(v, in.Description)
	if in.Location == "" {
		v.Add("location", "location is required")
	}
	if in.Department == "" {
		v.Add("department", "department is required")
	}
	if in.FounderName == "" {
		v.Add("founderName", "founderName is required")
	}
	if policy.RequireContactInfo && in.ContactInfo == "" {
		v.Add("contactInfo", "contactInfo is required")
	}

	category, err := ParseCategory(in.Category)
	if err != nil {
		v.Add("category", err.Error())
	}

	if v.HasErrors() {
		return "", v
	}
	return category, nil
}

// ItemPatch is a partial update of an unclaimed item. Nil fields are left unchanged.
// Claim fields, the image and timestamps are not patchable.
type ItemPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Department  *string   `json:"department,omitempty"`
	FounderName *string   `json:"founderName,omitempty"`
	ContactInfo *string   `json:"contactInfo,omitempty"`
	Category    *Category `json:"category,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *ItemPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil &&
		p.Department == nil && p.FounderName == nil && p.ContactInfo == nil && p.Category == nil
}

// Normalize trims every provided string field in place.
func (p *ItemPatch) Normalize() {
	for _, f := range []*string{p.Name, p.Description, p.Location, p.Department, p.FounderName, p.ContactInfo} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if p.Category != nil {
		if c, err := ParseCategory(string(*p.Category)); err == nil {
			*p.Category = c
		}
	}
}

// Validate checks a normalized patch.
func (p *ItemPatch) Validate(policy Policy) error {
	v := &ValidationError{}
	if p.Empty() {
		v.Add("body", "no updatable fields provided")
		return v
	}

	if p.Name != nil {
		checkName(v, *p.Name)
	}
	if p.Description != nil {
		checkDescription(v, *p.Description)
	}
	if p.Location != nil && *p.Location == "" {
		v.Add("location", "location cannot be empty")
	}
	if p.Department != nil && *p.Department == "" {
		v.Add("department", "department cannot be empty")
	}
	if p.FounderName != nil && *p.FounderName == "" {
		v.Add("founderName", "founderName cannot be empty")
	}
	if p.ContactInfo != nil && policy.RequireContactInfo && *p.ContactInfo == "" {
		v.Add("contactInfo", "contactInfo cannot be empty")
	}
	if p.Category != nil && !p.Category.Valid() {
		v.Add("category", "unknown category "+string(*p.Category))
	}

	if v.HasErrors() {
		return v
	}
	return nil
}

// ValidateClaimant trims and checks the name of the person claiming an item.
func ValidateClaimant(name string) (string, error) {
	name = strings.TrimSpace(name)
	v := &ValidationError{}
	switch {
	case name == "":
		v.Add("claimantName", "claimantName is required")
	case utf8.RuneCountInString(name) > MaxClaimantLength:
		v.Add("claimantName", "claimantName must be at most 100 characters")
	}
	if v.HasErrors() {
		return "", v
	}
	return name, nil
}

func checkName(v *ValidationError, name string) {
	switch {
	case name == "":
		v.Add("name", "name is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		v.Add("name", "name must be at most 100 characters")
	}
}

func checkDescription(v *ValidationError, description string) {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		v.Add("description", "description must be at most 500 characters")
	}
}
