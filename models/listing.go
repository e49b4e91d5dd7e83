package models

import (
	"time"

	"gorm.io/gorm"
)

// Listing lifecycle
const (
	ListingStatusDraft     = "draft"
	ListingStatusPublished = "published"
	ListingStatusSold      = "sold"
	ListingStatusArchived  = "archived"
)

// Marketplace categories accepted on create/update
var ListingCategories = []string{
	"rackets", "shuttlecocks", "shoes", "apparel", "bags", "accessories", "other",
}

// Listing is one marketplace item offered by a user. Payment happens
// off-platform; the service only tracks the sold transition.
type Listing struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	SellerID       string  `json:"seller_id" gorm:"not null;index"`
	Title          string  `json:"title" gorm:"not null"`
	Slug           string  `json:"slug" gorm:"uniqueIndex"`
	Description    string  `json:"description" gorm:"type:text"`
	Category       string  `json:"category" gorm:"type:varchar(32);index"`
	CategoryLabel  string  `json:"category_label" gorm:"-"` // display-cased, not stored
	Price          float64 `json:"price" gorm:"default:0"`
	Condition      string  `json:"condition" gorm:"type:varchar(16)"` // new | like_new | used | worn
	Status         string  `json:"status" gorm:"type:varchar(16);default:'draft';index"`
	SoldToUserID   *string `json:"sold_to_user_id,omitempty"`
	SoldAt         *time.Time `json:"sold_at,omitempty"`

	Photos []ListingPhoto `json:"photos,omitempty" gorm:"foreignKey:ListingID"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

type ListingPhoto struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ListingID string `json:"listing_id" gorm:"not null;index"`
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order" gorm:"column:sort_order;default:0"`
}
