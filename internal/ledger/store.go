// Package ledger implements the request ledger and allocation engine: the
// policy deciding whether a (requester, poster) pair may be requested, the
// transaction processor applying a submission's removals and additions in
// order, and the consistency auditor that detects and repairs invariant
// violations. The backing store offers no cross-row transactions, so every
// mutating entry point runs under a single coordinator lock.
package ledger

import (
	"context"
	"time"

	"marquee/internal/models"
)

// UpdateOutcome reports what a status update did. NotFound is a normal
// idempotent outcome (no matching ACTIVE record), not an error.
type UpdateOutcome int

const (
	// UpdateNotFound means no ACTIVE record matched; nothing was written.
	UpdateNotFound UpdateOutcome = iota
	// UpdateApplied means exactly one record transitioned.
	UpdateApplied
)

// RecordStore is the durable collection of request records. Implementations
// do not sort results unless a method says so; callers order where it matters.
type RecordStore interface {
	// Append inserts a new record. The store assigns the record ID.
	Append(ctx context.Context, rec *models.RequestRecord) error

	// Scan returns every record in the ledger, in no particular order.
	Scan(ctx context.Context) ([]models.RequestRecord, error)

	// FindActive returns the ACTIVE record for the pair, or nil when none exists.
	FindActive(ctx context.Context, requesterID, posterID string) (*models.RequestRecord, error)

	// History returns every record for the pair regardless of status.
	History(ctx context.Context, requesterID, posterID string) ([]models.RequestRecord, error)

	// CountActive returns the number of ACTIVE records held by the requester.
	CountActive(ctx context.Context, requesterID string) (int, error)

	// UpdateStatus transitions the pair's ACTIVE record to the given status.
	UpdateStatus(ctx context.Context, requesterID, posterID string, status models.RequestStatus, reason models.ArchiveReason, at time.Time) (UpdateOutcome, error)

	// SetStatusByRecordID transitions one record by primary key. Used by
	// auditor repairs, which target specific rows.
	SetStatusByRecordID(ctx context.Context, id uint, status models.RequestStatus, reason models.ArchiveReason, at time.Time) error

	// DeleteByRecordID hard-deletes one record. Only the policy-gated orphan
	// purge uses this; history is otherwise retained indefinitely.
	DeleteByRecordID(ctx context.Context, id uint) error

	// ActivePosterIDs returns the set of poster IDs with at least one ACTIVE
	// record from any requester.
	ActivePosterIDs(ctx context.Context) (map[string]struct{}, error)
}

// PosterSnapshot captures a poster's catalog state at request time.
type PosterSnapshot struct {
	Title        string
	ReleaseDate  time.Time
	CurrentLabel string
}

// Catalog is the external authority for poster identity, labels, and
// requestability.
type Catalog interface {
	// ResolveLabel maps a display label to a poster ID. The second return is
	// false when the label is unknown.
	ResolveLabel(ctx context.Context, label string) (string, bool, error)

	// IsActive reports whether the poster is currently requestable.
	IsActive(ctx context.Context, posterID string) (bool, error)

	// Snapshot returns the poster's current title, release date, and display
	// label, or nil when the poster does not exist.
	Snapshot(ctx context.Context, posterID string) (*PosterSnapshot, error)

	// ActiveIDSet returns the IDs of all currently requestable posters.
	ActiveIDSet(ctx context.Context) (map[string]struct{}, error)

	// AllIDSet returns the IDs of every poster that exists, requestable or
	// not. Records referencing IDs outside this set are orphans.
	AllIDSet(ctx context.Context) (map[string]struct{}, error)
}

// Clock abstracts time so cooldown arithmetic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock used outside tests.
var SystemClock Clock = systemClock{}
