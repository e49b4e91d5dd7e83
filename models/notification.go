package models

import (
	"time"
)

// Notification kinds
const (
	NotifKindPartyInvite   = "party_invite"
	NotifKindPairingReady  = "pairing_ready"
	NotifKindMatchFinished = "match_finished"
	NotifKindQuestComplete = "quest_complete"
	NotifKindAchievement   = "achievement"
	NotifKindChatMessage   = "chat_message"
	NotifKindSystem        = "system"
)

// Notification is one persisted in-app notification. The notification
// worker publishes undelivered rows to Redis for connected clients;
// clients that missed the push read them from the list endpoint.
type Notification struct {
	ID             string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ExternalUserID string     `json:"external_user_id" gorm:"not null;index"`
	Kind           string     `json:"kind" gorm:"type:varchar(32);index"`
	Title          string     `json:"title" gorm:"not null"`
	Body           string     `json:"body" gorm:"type:text"`
	ReferenceID    string     `json:"reference_id,omitempty"` // party/pairing/quest id
	Read           bool       `json:"read" gorm:"default:false;index"`
	Delivered      bool       `json:"delivered" gorm:"default:false;index"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
}
