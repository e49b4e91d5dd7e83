package models

import (
	"time"
)

// Conversation kinds
const (
	ConversationKindParty  = "party"
	ConversationKindDirect = "direct"
)

// Conversation groups messages: either the shared chat of a party or a
// direct thread between two users.
type Conversation struct {
	ID      string  `json:"id" gorm:"primaryKey"`
	Kind    string  `json:"kind" gorm:"type:varchar(8);not null"`
	PartyID *string `json:"party_id,omitempty" gorm:"index"` // set for party conversations

	Members  []ConversationMember `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
	Timestamps
}

type ConversationMember struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	ConversationID string     `json:"conversation_id" gorm:"not null;index;uniqueIndex:idx_conv_member"`
	ExternalUserID string     `json:"external_user_id" gorm:"not null;index;uniqueIndex:idx_conv_member"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at" gorm:"autoCreateTime"`
}

// Message is one chat message. Delivery is Redis pub/sub with the
// poll endpoint as fallback; the row here is the source of truth.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"not null;index"`
	SenderID       string    `json:"sender_id" gorm:"not null;index"`
	SenderName     string    `json:"sender_name"`
	Body           string    `json:"body" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
