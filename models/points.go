package models

import (
	"time"
)

// PointsEntry kinds
const (
	PointsKindEarn  = "earn"
	PointsKindSpend = "spend"
)

// Earn reasons used by the award hooks
const (
	PointsReasonMatchPlayed     = "match_played"
	PointsReasonMatchWon        = "match_won"
	PointsReasonPartyJoined     = "party_joined"
	PointsReasonAssessmentDone  = "assessment_completed"
	PointsReasonDailyCheckIn    = "daily_check_in"
	PointsReasonQuestReward     = "quest_reward"
	PointsReasonAchievement     = "achievement"
	PointsReasonMarketplaceSale = "marketplace_sale"
)

// PointsEntry is one append-only row in the TB Points ledger. Balance is
// always the sum over a user's entries — never a mutable counter.
type PointsEntry struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ExternalUserID string    `json:"external_user_id" gorm:"index;not null"`
	Kind           string    `json:"kind" gorm:"type:varchar(8);not null"`
	Amount         int64     `json:"amount" gorm:"not null"` // positive for earn, negative for spend
	Reason         string    `json:"reason" gorm:"type:varchar(32);index"`
	ReferenceID    string    `json:"reference_id,omitempty"` // pairing/party/quest id backing the entry
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Quest periods
const (
	QuestPeriodDaily  = "daily"
	QuestPeriodWeekly = "weekly"
)

// Quest is a repeatable TB Points objective, e.g. "play 3 matches today".
type Quest struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Code        string `json:"code" gorm:"uniqueIndex;not null"` // e.g. "DAILY_PLAY_3"
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description"`
	Period      string `json:"period" gorm:"type:varchar(8);default:'daily'"`
	Counter     string `json:"counter" gorm:"type:varchar(32)"` // which progress counter it watches
	Target      int64  `json:"target" gorm:"default:1"`
	RewardTB    int64  `json:"reward_tb" gorm:"default:0"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`

	Timestamps
}

// QuestProgress tracks one user's progress on one quest within the
// current period. Reset by the scheduler at period rollover.
type QuestProgress struct {
	ID             string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ExternalUserID string     `json:"external_user_id" gorm:"index;not null;uniqueIndex:idx_quest_user"`
	QuestID        string     `json:"quest_id" gorm:"index;not null;uniqueIndex:idx_quest_user"`
	Progress       int64      `json:"progress" gorm:"default:0"`
	Claimed        bool       `json:"claimed" gorm:"default:false"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	PeriodStart    time.Time  `json:"period_start"`

	Timestamps
}
