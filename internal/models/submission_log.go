package models

import "time"

// SubmissionLog is the per-submission audit row: what was asked for, what the
// engine did with it, and the slot counts before and after.
type SubmissionLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubmittedAt    time.Time `gorm:"not null;index" json:"submitted_at"`
	RequesterID    string    `gorm:"size:254;not null;index" json:"requester_id"`
	RequesterName  string    `gorm:"size:80;not null" json:"requester_name"`
	AddRaw         string    `gorm:"type:text" json:"add_raw"`
	RemoveRaw      string    `gorm:"type:text" json:"remove_raw"`
	SlotsBefore    int       `gorm:"not null" json:"slots_before"`
	SlotsAfter     int       `gorm:"not null" json:"slots_after"`
	AddedAccepted  string    `gorm:"type:text" json:"added_accepted"`
	RemovedApplied string    `gorm:"type:text" json:"removed_applied"`
	DeniedAdds     string    `gorm:"type:text" json:"denied_adds"`
	Notes          string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}
