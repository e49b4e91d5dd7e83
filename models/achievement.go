package models

import (
	"time"
)

// PlayerProgress tracks gamified progression per user (denormalized for
// performance; win/loss standings per party stay derived, see engine).
type PlayerProgress struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	// Core progression
	TotalTB int64 `json:"total_tb" gorm:"default:0"` // lifetime earned, drives level
	Level   int   `json:"level" gorm:"default:1"`

	// Activity counters (achievement + quest triggers)
	TotalMatches     int64 `json:"total_matches" gorm:"default:0"`
	TotalWins        int64 `json:"total_wins" gorm:"default:0"`
	TotalParties     int64 `json:"total_parties" gorm:"default:0"`
	TotalAssessments int64 `json:"total_assessments" gorm:"default:0"`
	TotalCheckIns    int64 `json:"total_check_ins" gorm:"default:0"`

	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// AchievementType: static config (seeded into DB at startup)
type AchievementType struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code        string `gorm:"uniqueIndex;not null"` // e.g. "FIRST_SMASH"
	Name        string `gorm:"not null"`
	Description string
	IconURL     string           `gorm:"type:text"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"type:jsonb;serializer:json"`        // e.g. {"total_wins": 10}
	RewardTB    int64            `gorm:"default:0"`
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
}

// PlayerAchievement: awarded instance
type PlayerAchievement struct {
	ID                string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ExternalUserID    string    `gorm:"index;not null"`
	AchievementTypeID string    `gorm:"index;not null"`
	AwardedAt         time.Time `gorm:"autoCreateTime"`
	Metadata          string    `gorm:"type:jsonb"` // e.g. {"party_id": "...", "pairing_id": "..."}
}

// Predefined achievement triggers
var AchievementTriggers = []AchievementType{
	{
		Code:        "WELCOME",
		Name:        "Welcome to the Court",
		Description: "Joined your first party",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_parties": 1},
		RewardTB:    50,
	},
	{
		Code:        "FIRST_MATCH",
		Name:        "First Rally",
		Description: "Played your first match",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_matches": 1},
		RewardTB:    50,
	},
	{
		Code:        "FIRST_WIN",
		Name:        "First Smash",
		Description: "Won your first match",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_wins": 1},
		RewardTB:    100,
	},
	{
		Code:        "WIN_10",
		Name:        "Net Dominator",
		Description: "Won 10 matches",
		Rarity:      "rare",
		Threshold:   map[string]int64{"total_wins": 10},
		RewardTB:    500,
	},
	{
		Code:        "PARTY_REGULAR",
		Name:        "Court Regular",
		Description: "Joined 10 parties",
		Rarity:      "rare",
		Threshold:   map[string]int64{"total_parties": 10},
		RewardTB:    300,
	},
	{
		Code:        "ASSESSED",
		Name:        "Know Thyself",
		Description: "Completed a skill assessment",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_assessments": 1},
		RewardTB:    100,
	},
	{
		Code:        "LEVEL_25",
		Name:        "Rising Shuttler",
		Description: "Reached level 25",
		Rarity:      "epic",
		Threshold:   map[string]int64{"level": 25},
		RewardTB:    1000,
	},
}
