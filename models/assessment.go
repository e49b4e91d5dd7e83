package models

import (
	"time"
)

// AssessmentAttempt lifecycle
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
)

// AssessmentQuestion is one quiz question used for skill-tier
// assessment. Trick questions carry a penalty when answered wrong.
type AssessmentQuestion struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Prompt        string `json:"prompt" gorm:"type:text;not null"`
	OptionsJSON   string `json:"options_json" gorm:"type:jsonb"` // ["option a", "option b", ...]
	CorrectIndex  int    `json:"-" gorm:"not null"`              // never exposed to clients
	Weight        int    `json:"weight" gorm:"default:1"`
	IsTrick       bool   `json:"is_trick" gorm:"default:false"`
	SortOrder     int    `json:"sort_order" gorm:"column:sort_order;default:0"`
	IsActive      bool   `json:"is_active" gorm:"default:true"`

	Timestamps
}

// AssessmentAttempt is one quiz run by a user. The computed score and
// resulting tier are frozen when the attempt completes.
type AssessmentAttempt struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	ExternalUserID string     `json:"external_user_id" gorm:"not null;index"`
	Status         string     `json:"status" gorm:"type:varchar(16);default:'in_progress'"`
	Score          int        `json:"score" gorm:"default:0"` // 0–100
	ResultTier     string     `json:"result_tier" gorm:"type:varchar(16)"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	Answers []AssessmentAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`

	Timestamps
}

// AssessmentAnswer records one submitted answer within an attempt.
type AssessmentAnswer struct {
	ID            string `json:"id" gorm:"primaryKey"`
	AttemptID     string `json:"attempt_id" gorm:"not null;index"`
	QuestionID    string `json:"question_id" gorm:"not null"`
	SelectedIndex int    `json:"selected_index"`
	Correct       bool   `json:"correct"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
