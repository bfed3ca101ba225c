package model

import "time"

type Detailer struct {
	ID              string   `json:"id"`
	FullName        string   `json:"full_name"`
	AvatarURL       string   `json:"avatar_url,omitempty"`
	Rating          float64  `json:"rating"`
	ReviewCount     int      `json:"review_count"`
	YearsExperience int      `json:"years_experience"`
	IsActive        bool     `json:"is_active"`
	Bio             string   `json:"bio,omitempty"`
	Specialties     []string `json:"specialties,omitempty"`
	OrganizationID  string   `json:"organization_id,omitempty"`
	ProfileID       string   `json:"profile_id,omitempty"`
}

// AvailabilityWindow is one weekly recurring slot. DayOfWeek is 0=Sunday..6=Saturday.
type AvailabilityWindow struct {
	ID         string    `json:"id,omitempty"`
	DetailerID string    `json:"detailer_id,omitempty"`
	DayOfWeek  int       `json:"day_of_week"`
	Start      TimeOfDay `json:"start_time"`
	End        TimeOfDay `json:"end_time"`
	IsActive   bool      `json:"is_active"`
}

type FavoriteDetailer struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DetailerID string    `json:"detailer_id"`
	Detailer   *Detailer `json:"detailer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrganizationRole string

const (
	RoleOwner      OrganizationRole = "owner"
	RoleManager    OrganizationRole = "manager"
	RoleDispatcher OrganizationRole = "dispatcher"
	RoleDetailer   OrganizationRole = "detailer"
)

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
