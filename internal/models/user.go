package models

import (
	"strings"
	"time"
)

// UserID is the opaque identifier of a user. Authorization checks compare
// UserIDs for equality only.
type UserID string

func (id UserID) String() string { return string(id) }

// Availability is when a user is free for a swap.
type Availability string

const (
	AvailabilityWeekends Availability = "Weekends"
	AvailabilityEvenings Availability = "Evenings"
	AvailabilityWeekdays Availability = "Weekdays"
	AvailabilityFlexible Availability = "Flexible"
)

// Valid reports whether a is one of the known availability values.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityWeekends, AvailabilityEvenings, AvailabilityWeekdays, AvailabilityFlexible:
		return true
	}
	return false
}

// User represents a row in the PostgreSQL users table.
type User struct {
	ID            UserID
	Name          string
	Email         string
	Password      string // bcrypt hash, never serialized
	Location      string
	SkillsOffered []string
	SkillsWanted  []string
	Availability  Availability
	IsPublic      bool
	ProfilePhoto  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail trims and lowercases an address so that uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile is the owner's own view of their account.
type Profile struct {
	ID            UserID       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Location      string       `json:"location"`
	SkillsOffered []string     `json:"skillsOffered"`
	SkillsWanted  []string     `json:"skillsWanted"`
	Availability  Availability `json:"availability"`
	IsPublic      bool         `json:"isPublic"`
	ProfilePhoto  string       `json:"profilePhoto"`
}

// PublicUser is how other users see a profile: no email, no credential.
type PublicUser struct {
	ID            UserID       `json:"_id"`
	Name          string       `json:"name"`
	Location      string       `json:"location"`
	SkillsOffered []string     `json:"skillsOffered"`
	SkillsWanted  []string     `json:"skillsWanted"`
	Availability  Availability `json:"availability"`
	IsPublic      bool         `json:"isPublic"`
	ProfilePhoto  string       `json:"profilePhoto"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// UserRef is the display-safe reference embedded in resolved requests.
type UserRef struct {
	ID           UserID `json:"_id"`
	Name         string `json:"name"`
	ProfilePhoto string `json:"profilePhoto"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Location:      u.Location,
		SkillsOffered: nonNil(u.SkillsOffered),
		SkillsWanted:  nonNil(u.SkillsWanted),
		Availability:  u.Availability,
		IsPublic:      u.IsPublic,
		ProfilePhoto:  u.ProfilePhoto,
	}
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Name:          u.Name,
		Location:      u.Location,
		SkillsOffered: nonNil(u.SkillsOffered),
		SkillsWanted:  nonNil(u.SkillsWanted),
		Availability:  u.Availability,
		IsPublic:      u.IsPublic,
		ProfilePhoto:  u.ProfilePhoto,
		CreatedAt:     u.CreatedAt,
	}
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, ProfilePhoto: u.ProfilePhoto}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name          *string       `json:"name"          validate:"omitempty,min=1,max=100"`
	Location      *string       `json:"location"      validate:"omitempty,max=200"`
	SkillsOffered []string      `json:"skillsOffered" validate:"omitempty,max=50,dive,min=1,max=100"`
	SkillsWanted  []string      `json:"skillsWanted"  validate:"omitempty,max=50,dive,min=1,max=100"`
	Availability  *Availability `json:"availability"`
	IsPublic      *bool         `json:"isPublic"`
	ProfilePhoto  *string       `json:"profilePhoto"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// UserPage is one page of the public directory.
type UserPage struct {
	Users       []PublicUser `json:"users"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
	TotalUsers  int          `json:"totalUsers"`
}
