package models

import (
	"time"
)

// CourtBooking lifecycle
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusExpired   = "expired"
)

// Court is one bookable physical court at a venue.
type Court struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	Venue       string  `json:"venue" gorm:"not null;index"`
	CourtNumber int     `json:"court_number" gorm:"not null"`
	Surface     string  `json:"surface"` // e.g. "wood", "synthetic"
	HourlyRate  float64 `json:"hourly_rate" gorm:"default:0"`
	IsActive    bool    `json:"is_active" gorm:"default:true"`

	Timestamps
}

// CourtBooking reserves one court for a time window, optionally tied to
// a party. Pending bookings expire if not confirmed in time.
type CourtBooking struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	CourtID        string    `json:"court_id" gorm:"not null;index"`
	ExternalUserID string    `json:"external_user_id" gorm:"not null;index"`
	PartyID        *string   `json:"party_id,omitempty" gorm:"index"`
	StartTime      time.Time `json:"start_time" gorm:"not null;index"`
	EndTime        time.Time `json:"end_time" gorm:"not null"`
	Status         string    `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"index"` // pending-hold deadline
	TotalPrice     float64   `json:"total_price" gorm:"default:0"`

	Timestamps
}
