package models

import "time"

// Poster is a catalog entry for a requestable movie poster. IDs are opaque
// UUIDs and are never reused after deletion.
type Poster struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"size:160;not null" json:"title"`
	ReleaseDate    time.Time `gorm:"not null" json:"release_date"`
	Active         bool      `gorm:"not null;default:true;index" json:"active"`
	InventoryCount int       `gorm:"not null;default:0" json:"inventory_count"`
	Received       bool      `gorm:"not null;default:false" json:"received"`
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
