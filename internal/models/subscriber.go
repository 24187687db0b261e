package models

import "time"

// Subscriber is an opt-in entry for poster availability notifications.
// Delivery itself is handled outside this service.
type Subscriber struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	Email     string    `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"size:80;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
