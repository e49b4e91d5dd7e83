package models

import (
	"time"
)

// Room lifecycle. Status beyond waiting is derived from pairing state
// by the engine, never set directly by callers.
const (
	RoomStatusWaiting    = "waiting"
	RoomStatusInProgress = "in_progress"
	RoomStatusCompleted  = "completed"
)

// Pairing lifecycle
const (
	PairingStatusPending   = "pending"
	PairingStatusCompleted = "completed"
)

// Winner designations
const (
	TeamA = "A"
	TeamB = "B"
)

// Room is one pairing-generation event within a party: a numbered round
// holding a batch of doubles matches. Immutable after creation except
// for its derived status.
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	PartyID   string    `json:"party_id" gorm:"not null;index"`
	Label     string    `json:"label"` // e.g. "Round 3"
	Status    string    `json:"status" gorm:"type:varchar(16);default:'waiting'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Pairings []Pairing `json:"pairings,omitempty" gorm:"foreignKey:RoomID"`
}

// Pairing is one doubles match (2 v 2) inside a Room. Team rosters are
// fixed at creation; scores move until FinishMatch freezes the record.
type Pairing struct {
	ID             string `json:"id" gorm:"primaryKey"`
	RoomID         string `json:"room_id" gorm:"not null;index"`
	PartyID        string `json:"party_id" gorm:"not null;index"` // denormalized for standings queries
	SequenceNumber int    `json:"sequence_number" gorm:"not null"`

	TeamA1ID   string  `json:"team_a1_id" gorm:"not null"`
	TeamA1Name string  `json:"team_a1_name"`
	TeamA2ID   *string `json:"team_a2_id,omitempty"`
	TeamA2Name string  `json:"team_a2_name,omitempty"`
	TeamB1ID   string  `json:"team_b1_id" gorm:"not null"`
	TeamB1Name string  `json:"team_b1_name"`
	TeamB2ID   *string `json:"team_b2_id,omitempty"`
	TeamB2Name string  `json:"team_b2_name,omitempty"`

	ScoreA int `json:"score_a" gorm:"default:0;check:score_a >= 0"`
	ScoreB int `json:"score_b" gorm:"default:0;check:score_b >= 0"`

	Status      string     `json:"status" gorm:"type:varchar(16);default:'pending'"`
	Winner      *string    `json:"winner,omitempty" gorm:"type:varchar(1)"` // "A" | "B", nil on tie or while pending
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ParticipantIDs returns the external user ids on this pairing,
// skipping empty slots.
func (p *Pairing) ParticipantIDs() []string {
	ids := make([]string, 0, 4)
	ids = append(ids, p.TeamA1ID)
	if p.TeamA2ID != nil {
		ids = append(ids, *p.TeamA2ID)
	}
	ids = append(ids, p.TeamB1ID)
	if p.TeamB2ID != nil {
		ids = append(ids, *p.TeamB2ID)
	}
	return ids
}

// TeamIDs returns the external user ids on one side of the pairing.
func (p *Pairing) TeamIDs(team string) []string {
	var ids []string
	switch team {
	case TeamA:
		ids = append(ids, p.TeamA1ID)
		if p.TeamA2ID != nil {
			ids = append(ids, *p.TeamA2ID)
		}
	case TeamB:
		ids = append(ids, p.TeamB1ID)
		if p.TeamB2ID != nil {
			ids = append(ids, *p.TeamB2ID)
		}
	}
	return ids
}
