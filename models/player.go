package models

import (
	"time"

	"gorm.io/gorm"
)

// Skill tiers, ordered from beginner to elite. Assigned by the
// assessment module or self-declared; display-only for pairing.
const (
	TierBeginner     = "beginner"
	TierNovice       = "novice"
	TierIntermediate = "intermediate"
	TierAdvanced     = "advanced"
	TierElite        = "elite"
)

// TierRank returns the ordinal position of a tier (beginner = 0).
// Unknown tiers rank below beginner so bad data sorts last, not first.
func TierRank(tier string) int {
	switch tier {
	case TierBeginner:
		return 0
	case TierNovice:
		return 1
	case TierIntermediate:
		return 2
	case TierAdvanced:
		return 3
	case TierElite:
		return 4
	}
	return -1
}

// PlayerProfile is a local snapshot of user data needed by Topminton.
// Owned solely by this service; populated via the profile sync worker
// from the Profile Service.
type PlayerProfile struct {
	ID                string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // Profile Service UUID
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	FirstName         *string    `json:"first_name,omitempty"`
	LastName          *string    `json:"last_name,omitempty"`
	Bio               *string    `json:"bio,omitempty"`
	SkillTier         string     `gorm:"type:varchar(16);default:'beginner'" json:"skill_tier"`
	TBPointsCached    int64      `json:"tb_points_cached" gorm:"default:0"` // display cache; ledger is authoritative
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	IsBanned          bool       `json:"is_banned" gorm:"default:false"` // local ban from parties

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RemoteProfile matches the JSON the Profile Service sync endpoint returns.
type RemoteProfile struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
