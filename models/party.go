package models

import (
	"time"
)

// Party lifecycle
const (
	PartyStatusDraft     = "draft"
	PartyStatusScheduled = "scheduled"
	PartyStatusPublished = "published"
	PartyStatusCancelled = "cancelled"
	PartyStatusFinished  = "finished"
)

// Party is one organized badminton session: a venue, a time window,
// a roster of members, and the rooms/pairings generated for it.
type Party struct {
	ID          string `json:"id" gorm:"primaryKey"`
	OrganizerID string `json:"organizer_id" gorm:"not null;index"` // external user id
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	CourtCount  int    `json:"court_count" gorm:"default:1"`
	MaxMembers  int    `json:"max_members" gorm:"default:0"` // 0 = unlimited
	Fee         float64 `json:"fee" gorm:"default:0"`

	// Skill range shown to joiners; not enforced by pairing.
	MinTier string `json:"min_tier" gorm:"type:varchar(16);default:'beginner'"`
	MaxTier string `json:"max_tier" gorm:"type:varchar(16);default:'elite'"`

	CoverPhotoURL   string     `json:"cover_photo_url"`
	Status          string     `json:"status" gorm:"default:'draft'"`
	StartTime       time.Time  `json:"start_time" gorm:"not null"`
	EndTime         time.Time  `json:"end_time"`
	PublishedAt     *time.Time `json:"published_at,omitempty" gorm:"index"`
	PublishSchedule *time.Time `json:"publish_schedule,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Photos  []PartyPhoto  `json:"photos,omitempty" gorm:"foreignKey:PartyID"`
	Members []PartyMember `json:"members,omitempty" gorm:"foreignKey:PartyID"`
	Rooms   []Room        `json:"rooms,omitempty" gorm:"foreignKey:PartyID"`

	// Calculated fields (not stored in DB)
	MemberCount    int64 `json:"member_count,omitempty" gorm:"-"`
	AvailableSlots int64 `json:"available_slots,omitempty" gorm:"-"`
}

type PartyPhoto struct {
	ID        string `json:"id" gorm:"primaryKey"`
	PartyID   string `json:"party_id" gorm:"not null;index"`
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order" gorm:"column:sort_order;default:0"`
}

// PartyMember membership status
const (
	MemberStatusActive  = "active"
	MemberStatusLeft    = "left"
	MemberStatusRemoved = "removed"
)

// PartyMember is one person on a party roster — the Participant record
// the pairing engine shuffles. Display fields are denormalized from
// PlayerProfile at join time.
type PartyMember struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	PartyID        string    `json:"party_id" gorm:"not null;index"`
	ExternalUserID string    `json:"external_user_id" gorm:"not null;index"`
	DisplayName    string    `json:"display_name"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	SkillTier      string    `json:"skill_tier" gorm:"type:varchar(16);default:'beginner'"`
	Status         string    `json:"status" gorm:"type:varchar(16);default:'active';index"`
	JoinedAt       time.Time `json:"joined_at" gorm:"autoCreateTime"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}
