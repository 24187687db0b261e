package models

import "time"

// IntegrityLog is one structured result row from a consistency check run.
// The trail lives outside the ledger itself so repairs and findings survive
// even if the ledger is later mutated.
type IntegrityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CheckTime   time.Time `gorm:"not null;index" json:"check_time"`
	CheckType   string    `gorm:"size:60;not null;index" json:"check_type"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	IssuesFound int       `gorm:"not null" json:"issues_found"`
	AutoFixed   int       `gorm:"not null" json:"auto_fixed"`
	Details     string    `gorm:"type:text" json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}
