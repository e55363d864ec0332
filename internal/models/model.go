package models

import (
	"time"
)

// Post / catalog action types.
const (
	ActionChallenge  = "challenge"
	ActionCheckpoint = "checkpoint"
	ActionStory      = "story"
)

// Event lifecycle statuses.
const (
	EventDraft   = "draft"
	EventOngoing = "ongoing"
	EventPast    = "past"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Participant is one registered person of a competition year. The id is the
// external customer id when imported, or a short uuid for manual entries.
type Participant struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	NameWeb          string    `gorm:"not null" json:"name_web"`
	Bio              string    `gorm:"type:text" json:"bio"`
	EmergencyContact string    `json:"emergency_contact"`
	Photo            string    `json:"photo"`
	CreatedAt        time.Time `json:"created_at"`
}

// Team is a named group of 1-3 participants. Points are derived from posts
// at read time and never stored here.
type Team struct {
	TeamID      string `gorm:"primaryKey" json:"team_id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Motto       string `json:"motto"`
	Web         string `json:"web"`
	Description string `gorm:"type:text" json:"description"`
	Photo       string `json:"photo"`
	Member1     string `gorm:"not null;index" json:"member1"`
	Member2     string `gorm:"index" json:"member2"`
	Member3     string `gorm:"index" json:"member3"`
	Visible     bool   `gorm:"default:true" json:"visible"`
	Color       string `json:"color"`
	IconColor   string `json:"icon_color"`
	Icon        string `json:"icon"`
	Award       string `json:"award"`
	IsTopX      bool   `gorm:"default:false" json:"is_top_x"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Members returns the non-empty member ids in slot order.
func (t *Team) Members() []string {
	members := make([]string, 0, 3)
	for _, m := range []string{t.Member1, t.Member2, t.Member3} {
		if m != "" {
			members = append(members, m)
		}
	}
	return members
}

// HasMember reports whether the participant belongs to the team.
func (t *Team) HasMember(paxID string) bool {
	return paxID != "" && (t.Member1 == paxID || t.Member2 == paxID || t.Member3 == paxID)
}

// Post is a team's proof of completion for a challenge or checkpoint, or a
// free-form story. Only the comment is mutable after creation.
type Post struct {
	PostID     string     `gorm:"primaryKey" json:"post_id"`
	PaxID      string     `gorm:"not null;index" json:"pax_id"`
	// The partial unique index backs the one-post-per-action rule at the
	// database level; stories stay repeatable.
	TeamID     string     `gorm:"not null;index:idx_posts_team_action,unique,where:action_type <> 'story'" json:"team_id"`
	ActionType string     `gorm:"not null;index:idx_posts_team_action,unique,where:action_type <> 'story'" json:"action_type"`
	ActionName string     `gorm:"not null;index:idx_posts_team_action,unique,where:action_type <> 'story'" json:"action_name"`
	Comment    string     `gorm:"type:text" json:"comment"`
	Created    time.Time  `gorm:"not null" json:"created"`
	Files      []PostFile `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"files"`
}

// PostFile is one attached media file, ordered by position.
type PostFile struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PostID   string `gorm:"index;not null" json:"-"`
	Path     string `gorm:"not null" json:"path"`
	MIME     string `gorm:"column:mime;not null" json:"type"`
	Position int    `json:"-"`
}

// Location is one GPS fix of a team. The log is append-only; the current
// position of a team is its newest row with date at or before a query time.
type Location struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"not null" json:"username"`
	TeamID           string    `gorm:"not null;index" json:"team_id"`
	Comment          string    `json:"comment"`
	Latitude         float64   `gorm:"not null" json:"latitude"`
	Longitude        float64   `gorm:"not null" json:"longitude"`
	Accuracy         string    `json:"accuracy"`
	Altitude         string    `json:"altitude"`
	AltitudeAccuracy string    `json:"altitude_accuracy"`
	Heading          string    `json:"heading"`
	Speed            string    `json:"speed"`
	Address          string    `json:"address"`
	Date             time.Time `gorm:"not null;index" json:"date"`
}

// Challenge is a catalog entry teams earn points for.
type Challenge struct {
	Name        string `gorm:"primaryKey" json:"name"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"not null" json:"category"`
	Points      int    `gorm:"not null" json:"points"`
}

// Checkpoint is a catalog entry with coordinates, optionally carrying a bonus
// challenge solvable at the spot.
type Checkpoint struct {
	Name            string  `gorm:"primaryKey" json:"name"`
	Description     string  `gorm:"type:text;not null" json:"description"`
	Points          int     `gorm:"not null" json:"points"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Challenge       string  `json:"challenge"`
	ChallengePoints int     `json:"challenge_points"`
}

// Notification is a short admin-managed message shown on the dashboard.
type Notification struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Text string `gorm:"type:text;not null" json:"text"`
	Type string `json:"type"` // info|warning|important|hidden
}
