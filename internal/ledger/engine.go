package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/models"
	"marquee/internal/validation"
)

// Engine orchestrates submissions, manual entries, and audits against the
// record store under the coordinator lock.
type Engine struct {
	store   RecordStore
	catalog Catalog
	clock   Clock
	cfg     PolicyConfig
	coord   *Coordinator
	trail   AuditTrail
	logger  *slog.Logger
}

// AuditTrail persists consistency check results outside the ledger itself.
type AuditTrail interface {
	Record(ctx context.Context, at time.Time, checks []CheckResult) error
}

// NewEngine wires an allocation engine. trail may be nil when no audit trail
// is configured (tests, dry CLI runs).
func NewEngine(store RecordStore, catalog Catalog, clock Clock, cfg PolicyConfig, coord *Coordinator, trail AuditTrail, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		catalog: catalog,
		clock:   clock,
		cfg:     cfg,
		coord:   coord,
		trail:   trail,
		logger:  logger,
	}
}

// Config returns the engine's immutable policy configuration.
func (e *Engine) Config() PolicyConfig { return e.cfg }

// SubmissionInput is one external submission: ordered removals, then ordered
// additions, both as display labels.
type SubmissionInput struct {
	RequesterID   string
	RequesterName string
	RemoveLabels  []string
	AddLabels     []string
	SubmittedAt   time.Time
}

// DeniedAdd reports one refused addition.
type DeniedAdd struct {
	Label            string     `json:"label"`
	Reason           DenyReason `json:"reason"`
	CooldownDaysLeft int        `json:"cooldown_days_left,omitempty"`
}

// SubmissionResult aggregates what one submission did to the ledger.
type SubmissionResult struct {
	RequesterID    string      `json:"requester_id"`
	RequesterName  string      `json:"requester_name"`
	AddedAccepted  []string    `json:"added_accepted"`
	RemovedApplied []string    `json:"removed_applied"`
	DeniedAdds     []DeniedAdd `json:"denied_adds"`
	SlotsBefore    int         `json:"slots_before"`
	SlotsAfter     int         `json:"slots_after"`
}

// Submit processes one submission: removals first in submission order, then a
// capacity recount, then additions in submission order. The whole sequence
// runs under the coordinator lock. A malformed requester name or id rejects
// the entire submission before any write; per-item denials do not.
//
// There is no rollback: if an addition fails mid-pass, earlier removals and
// additions stay applied. The ledger accepts that partial state and leans on
// the auditor rather than on multi-row transactions the store cannot provide.
func (e *Engine) Submit(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	requesterID, err := validation.NormalizeRequesterID(in.RequesterID)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	requesterName, err := validation.NormalizeRequesterName(in.RequesterName)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := e.coord.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.coord.Release()

	submittedAt := in.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = e.clock.Now()
	}

	slotsBefore, err := e.store.CountActive(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("counting active slots: %w", err)
	}

	result := &SubmissionResult{
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		AddedAccepted:  []string{},
		RemovedApplied: []string{},
		DeniedAdds:     []DeniedAdd{},
		SlotsBefore:    slotsBefore,
	}

	// Removals first, in submission order. Labels that do not resolve are
	// silently skipped; a NotFound outcome is idempotent, not an error.
	for _, raw := range in.RemoveLabels {
		label := strings.TrimSpace(raw)
		posterID, ok, err := e.catalog.ResolveLabel(ctx, label)
		if err != nil {
			return result, fmt.Errorf("resolving removal label %q: %w", label, err)
		}
		if !ok {
			continue
		}
		outcome, err := e.store.UpdateStatus(ctx, requesterID, posterID, models.RequestStatusRemoved, "", submittedAt)
		if err != nil {
			return result, fmt.Errorf("removing poster %s: %w", posterID, err)
		}
		if outcome == UpdateApplied {
			result.RemovedApplied = append(result.RemovedApplied, label)
		}
	}

	// Recount after removals so freed slots are visible to additions.
	activeNow, err := e.store.CountActive(ctx, requesterID)
	if err != nil {
		return result, fmt.Errorf("recounting active slots: %w", err)
	}
	available := e.cfg.MaxActive - activeNow
	if available < 0 {
		available = 0
	}

	// Additions in submission order; first-submitted wins when slots are scarce.
	for _, raw := range in.AddLabels {
		label := strings.TrimSpace(raw)
		posterID, ok, err := e.catalog.ResolveLabel(ctx, label)
		if err != nil {
			return result, fmt.Errorf("resolving addition label %q: %w", label, err)
		}
		if !ok {
			result.DeniedAdds = append(result.DeniedAdds, DeniedAdd{Label: label, Reason: DenyUnknown})
			continue
		}

		active, err := e.catalog.IsActive(ctx, posterID)
		if err != nil {
			return result, fmt.Errorf("checking poster %s activity: %w", posterID, err)
		}
		if !active {
			result.DeniedAdds = append(result.DeniedAdds, DeniedAdd{Label: label, Reason: DenyInactive})
			continue
		}

		decision, err := CanRequest(ctx, e.store, e.clock, e.cfg, requesterID, posterID)
		if err != nil {
			return result, err
		}
		if !decision.Allowed {
			result.DeniedAdds = append(result.DeniedAdds, DeniedAdd{
				Label:            label,
				Reason:           decision.Reason,
				CooldownDaysLeft: decision.CooldownDaysLeft,
			})
			continue
		}

		if available <= 0 {
			result.DeniedAdds = append(result.DeniedAdds, DeniedAdd{Label: label, Reason: DenyLimit})
			continue
		}

		if err := e.appendRecord(ctx, requesterID, requesterName, posterID, label, submittedAt); err != nil {
			return result, err
		}
		result.AddedAccepted = append(result.AddedAccepted, label)
		available--
	}

	result.SlotsAfter, err = e.store.CountActive(ctx, requesterID)
	if err != nil {
		return result, fmt.Errorf("counting final slots: %w", err)
	}

	e.logger.InfoContext(ctx, "submission processed",
		slog.String("requester_id", requesterID),
		slog.Int("added", len(result.AddedAccepted)),
		slog.Int("removed", len(result.RemovedApplied)),
		slog.Int("denied", len(result.DeniedAdds)),
	)
	return result, nil
}

// ManualAddInput is an administrative direct insertion, typically used for
// migrating records from legacy systems. It bypasses label resolution but not
// policy or capacity.
type ManualAddInput struct {
	RequesterID   string
	RequesterName string
	PosterID      string
	At            time.Time
}

// ManualAdd inserts one ACTIVE record under the same policy and capacity
// checks an ordinary addition gets. Denials come back as *DenialError.
func (e *Engine) ManualAdd(ctx context.Context, in ManualAddInput) (*models.RequestRecord, error) {
	requesterID, err := validation.NormalizeRequesterID(in.RequesterID)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	requesterName, err := validation.NormalizeRequesterName(in.RequesterName)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := e.coord.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.coord.Release()

	at := in.At
	if at.IsZero() {
		at = e.clock.Now()
	}

	snap, err := e.catalog.Snapshot(ctx, in.PosterID)
	if err != nil {
		return nil, fmt.Errorf("loading poster %s: %w", in.PosterID, err)
	}
	if snap == nil {
		return nil, &DenialError{Reason: DenyUnknown}
	}

	active, err := e.catalog.IsActive(ctx, in.PosterID)
	if err != nil {
		return nil, fmt.Errorf("checking poster %s activity: %w", in.PosterID, err)
	}
	if !active {
		return nil, &DenialError{Reason: DenyInactive}
	}

	decision, err := CanRequest(ctx, e.store, e.clock, e.cfg, requesterID, in.PosterID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &DenialError{Reason: decision.Reason, CooldownDaysLeft: decision.CooldownDaysLeft}
	}

	activeNow, err := e.store.CountActive(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("counting active slots: %w", err)
	}
	if activeNow >= e.cfg.MaxActive {
		return nil, &DenialError{Reason: DenyLimit}
	}

	rec := &models.RequestRecord{
		RequestedAt:     at,
		RequesterID:     requesterID,
		RequesterName:   requesterName,
		PosterID:        in.PosterID,
		LabelAtRequest:  snap.CurrentLabel,
		TitleSnapshot:   snap.Title,
		ReleaseSnapshot: snap.ReleaseDate,
		Status:          models.RequestStatusActive,
		StatusChangedAt: at,
	}
	if err := e.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("appending record: %w", err)
	}

	e.logger.InfoContext(ctx, "manual request added",
		slog.String("requester_id", requesterID),
		slog.String("poster_id", in.PosterID),
	)
	return rec, nil
}

func (e *Engine) appendRecord(ctx context.Context, requesterID, requesterName, posterID, label string, at time.Time) error {
	snap, err := e.catalog.Snapshot(ctx, posterID)
	if err != nil {
		return fmt.Errorf("snapshotting poster %s: %w", posterID, err)
	}

	rec := &models.RequestRecord{
		RequestedAt:     at,
		RequesterID:     requesterID,
		RequesterName:   requesterName,
		PosterID:        posterID,
		LabelAtRequest:  label,
		Status:          models.RequestStatusActive,
		StatusChangedAt: at,
	}
	if snap != nil {
		rec.TitleSnapshot = snap.Title
		rec.ReleaseSnapshot = snap.ReleaseDate
		if snap.CurrentLabel != "" {
			rec.LabelAtRequest = snap.CurrentLabel
		}
	}
	if err := e.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	return nil
}
