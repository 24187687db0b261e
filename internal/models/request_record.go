package models

import "time"

// RequestStatus defines lifecycle states for a poster request record.
type RequestStatus string

const (
	// RequestStatusActive indicates the request currently occupies a slot.
	RequestStatusActive RequestStatus = "ACTIVE"
	// RequestStatusRemoved indicates the requester voluntarily withdrew the request.
	RequestStatusRemoved RequestStatus = "REMOVED"
	// RequestStatusArchived indicates the system withdrew the request (poster
	// deleted, integrity repair). Distinct from a voluntary removal.
	RequestStatusArchived RequestStatus = "ARCHIVED"
)

// ArchiveReason records why a request was archived by the system.
type ArchiveReason string

const (
	// ArchiveReasonItemDeleted marks records archived because the poster no
	// longer exists in the catalog.
	ArchiveReasonItemDeleted ArchiveReason = "ITEM_DELETED"
	// ArchiveReasonDuplicate marks losers of a duplicate-active repair.
	ArchiveReasonDuplicate ArchiveReason = "DUPLICATE"
	// ArchiveReasonOverCapacity marks records shed by an over-capacity repair.
	ArchiveReasonOverCapacity ArchiveReason = "OVER_CAPACITY"
	// ArchiveReasonIdentity marks records deactivated for malformed identity fields.
	ArchiveReasonIdentity ArchiveReason = "IDENTITY"
)

// RequestRecord is one row of the request ledger: a single (requester, poster,
// attempt). Records transition ACTIVE -> REMOVED or ACTIVE -> ARCHIVED at most
// once and never back; a re-request creates a brand-new record.
//
// The autoincrement ID doubles as a stable secondary ordering key so repairs
// that keep "the earliest" record are deterministic even when RequestedAt
// timestamps collide.
type RequestRecord struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	RequestedAt     time.Time     `gorm:"not null;index" json:"requested_at"`
	RequesterID     string        `gorm:"size:254;not null;index:idx_requester_poster" json:"requester_id"`
	RequesterName   string        `gorm:"size:80;not null" json:"requester_name"`
	PosterID        string        `gorm:"size:36;not null;index:idx_requester_poster" json:"poster_id"`
	LabelAtRequest  string        `gorm:"size:200;not null" json:"label_at_request"`
	TitleSnapshot   string        `gorm:"size:160;not null" json:"title_snapshot"`
	ReleaseSnapshot time.Time     `json:"release_snapshot"`
	Status          RequestStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	ArchiveReason   ArchiveReason `gorm:"type:varchar(20)" json:"archive_reason,omitempty"`
	StatusChangedAt time.Time     `gorm:"not null" json:"status_changed_at"`
}

// IsActive reports whether the record currently occupies a slot.
func (r *RequestRecord) IsActive() bool {
	return r.Status == RequestStatusActive
}
