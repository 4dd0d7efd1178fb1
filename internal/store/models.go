package store

import "time"

// User is the account record, trimmed to the fields the companion app
// actually reads and writes.
type User struct {
	ID              string     `bson:"_id" json:"id"`
	OrgID           string     `bson:"org_id,omitempty" json:"org_id,omitempty"`
	RoleKey         string     `bson:"role_key,omitempty" json:"role_key,omitempty"`
	DiscordID       string     `bson:"discord_id" json:"discord_id"`
	DiscordUsername string     `bson:"discord_username,omitempty" json:"discord_username,omitempty"`
	DisplayName     string     `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Bio             string     `bson:"bio,omitempty" json:"bio,omitempty"`
	Locale          string     `bson:"locale,omitempty" json:"locale,omitempty"`
	PrimaryGameplay string     `bson:"primary_gameplay,omitempty" json:"primary_gameplay,omitempty"`
	SCHandle        string     `bson:"sc_handle,omitempty" json:"sc_handle,omitempty"`
	IsOrgAdmin      bool       `bson:"is_org_admin" json:"is_org_admin"`
	Active          bool       `bson:"active" json:"active"`
	LoggedIn        bool       `bson:"logged_in" json:"logged_in"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	LastLoginAt     *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// Organization holds org profile data.
type Organization struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	Name        string    `bson:"name" json:"name"`
	Slug        string    `bson:"slug" json:"slug"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Tagline     string    `bson:"tagline,omitempty" json:"tagline,omitempty"`
	Website     string    `bson:"website,omitempty" json:"website,omitempty"`
	MemberCount int       `bson:"member_count" json:"member_count"`
	IsPublic    bool      `bson:"is_public" json:"is_public"`
	IsVerified  bool      `bson:"is_verified" json:"is_verified"`
	LogoURL     string    `bson:"logo_url,omitempty" json:"logo_url,omitempty"`
	BannerURL   string    `bson:"banner_url,omitempty" json:"banner_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
