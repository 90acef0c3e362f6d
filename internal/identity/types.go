package identity

import "time"

// Document is the server-issued bundle returned by login and session restore.
// It always carries exactly one user; the company is absent for users that
// have not been associated with one yet.
type Document struct {
	Token   string   `json:"token"`
	User    User     `json:"user"`
	Company *Company `json:"company,omitempty"`
}

// HasCompany reports whether the document carries a company record.
func (d Document) HasCompany() bool { return d.Company != nil }

// User is an account operating the dashboard on behalf of a company.
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Admin     bool      `json:"is_admin"`
	Google    bool      `json:"is_google_user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPatch is a partial user update. Nil fields are left untouched.
// The upstream update endpoint accepts this shape and may echo back an
// equally partial record.
type UserPatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Username  *string `json:"username,omitempty"`
	Admin     *bool   `json:"is_admin,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p UserPatch) IsZero() bool {
	return p.FirstName == nil && p.LastName == nil && p.Username == nil && p.Admin == nil
}

// Merge applies the patch on top of u. Present fields win, everything else
// is preserved. Applying the same patch twice yields the same user.
func (u User) Merge(p UserPatch) User {
	out := u
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		out.LastName = *p.LastName
	}
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.Admin != nil {
		out.Admin = *p.Admin
	}
	return out
}

// Company is the tenant record embedded in the identity document and cached
// independently by the snapshot layer.
type Company struct {
	ID           int64        `json:"id"`
	InviteCode   string       `json:"code"`
	Name         string       `json:"name"`
	PlanID       int64        `json:"plan_id"`
	Status       string       `json:"status"`
	BusinessType string       `json:"business_type"`
	Description  string       `json:"description"`
	Phone        string       `json:"phone"`
	Email        string       `json:"email"`
	LogoURL      string       `json:"logo_url,omitempty"`
	WorkingHours WorkingHours `json:"working_hours"`
	WorkingDays  []string     `json:"working_days"`
	Addresses    []Address    `json:"addresses"`
	Social       SocialLinks  `json:"social_links"`
	Onboarded    bool         `json:"is_onboarded"`
	TourSeen     bool         `json:"tour_seen"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// WorkingHours is the daily service window, local time, "HH:MM".
type WorkingHours struct {
	Opens  string `json:"opens"`
	Closes string `json:"closes"`
}

// Address is one of the company's physical locations.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// SocialLinks groups the company's public profiles.
type SocialLinks struct {
	Website   string `json:"website,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
}

// CompanyPatch is a partial company update. The upstream always answers a
// company mutation with the full record, so there is no merge on this side.
type CompanyPatch struct {
	Name         *string       `json:"name,omitempty"`
	Description  *string       `json:"description,omitempty"`
	BusinessType *string       `json:"business_type,omitempty"`
	Phone        *string       `json:"phone,omitempty"`
	Email        *string       `json:"email,omitempty"`
	WorkingHours *WorkingHours `json:"working_hours,omitempty"`
	WorkingDays  *[]string     `json:"working_days,omitempty"`
	Addresses    *[]Address    `json:"addresses,omitempty"`
	Social       *SocialLinks  `json:"social_links,omitempty"`
	Onboarded    *bool         `json:"is_onboarded,omitempty"`
	TourSeen     *bool         `json:"tour_seen,omitempty"`
}
