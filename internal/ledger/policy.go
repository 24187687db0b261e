package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"marquee/internal/models"
)

// DedupMode selects how a previously requested, no-longer-active pair is
// treated on re-request. The set is closed; the mode is fixed at construction.
type DedupMode int

const (
	// DedupPermanentBlock denies any pair that has ever been requested.
	DedupPermanentBlock DedupMode = iota
	// DedupAllowImmediate allows re-requesting as soon as the pair has no
	// ACTIVE record.
	DedupAllowImmediate
	// DedupCooldown allows re-requesting once CooldownDays have elapsed since
	// the pair's most recent status change.
	DedupCooldown
)

// PolicyConfig is the immutable configuration the engine operates under. It is
// passed in explicitly; nothing in this package reads ambient state.
type PolicyConfig struct {
	MaxActive          int
	Mode               DedupMode
	CooldownDays       int
	OrphanPurge        bool
	IdentityAutoRepair bool
}

// DenyReason enumerates why an addition was refused.
type DenyReason string

const (
	DenyDuplicateActive     DenyReason = "DUPLICATE_ACTIVE"
	DenyDuplicateHistorical DenyReason = "DUPLICATE_HISTORICAL"
	DenyCooldown            DenyReason = "COOLDOWN"
	DenyUnknown             DenyReason = "UNKNOWN"
	DenyInactive            DenyReason = "INACTIVE"
	DenyLimit               DenyReason = "LIMIT"
)

// Decision is the outcome of a policy evaluation. CooldownDaysLeft is only
// set with DenyCooldown, for display.
type Decision struct {
	Allowed          bool
	Reason           DenyReason
	CooldownDaysLeft int
}

// DenialError carries a policy denial across call sites that report a single
// addition (manual entry), where there is no per-item result list.
type DenialError struct {
	Reason           DenyReason
	CooldownDaysLeft int
}

func (e *DenialError) Error() string {
	if e.Reason == DenyCooldown {
		return fmt.Sprintf("request denied: %s (%d days remaining)", e.Reason, e.CooldownDaysLeft)
	}
	return fmt.Sprintf("request denied: %s", e.Reason)
}

// CanRequest decides whether the pair may be requested, evaluated against the
// pair's full history, not just its ACTIVE state. Capacity is not checked
// here: a single submission can free and consume slots in the same pass, so
// the processor accounts for it transaction-wide.
func CanRequest(ctx context.Context, store RecordStore, clock Clock, cfg PolicyConfig, requesterID, posterID string) (Decision, error) {
	history, err := store.History(ctx, requesterID, posterID)
	if err != nil {
		return Decision{}, fmt.Errorf("loading pair history: %w", err)
	}

	if len(history) == 0 {
		return Decision{Allowed: true}, nil
	}

	for i := range history {
		if history[i].IsActive() {
			return Decision{Reason: DenyDuplicateActive}, nil
		}
	}

	switch cfg.Mode {
	case DedupPermanentBlock:
		return Decision{Reason: DenyDuplicateHistorical}, nil
	case DedupAllowImmediate:
		return Decision{Allowed: true}, nil
	case DedupCooldown:
		return cooldownDecision(history, clock, cfg.CooldownDays), nil
	default:
		return Decision{}, fmt.Errorf("unknown dedup mode %d", cfg.Mode)
	}
}

func cooldownDecision(history []models.RequestRecord, clock Clock, days int) Decision {
	// Most recent status change among the pair's non-active records.
	sort.Slice(history, func(i, j int) bool {
		return history[i].StatusChangedAt.After(history[j].StatusChangedAt)
	})
	mostRecent := history[0].StatusChangedAt

	elapsedDays := clock.Now().Sub(mostRecent).Hours() / 24
	if elapsedDays < float64(days) {
		remaining := int(math.Ceil(float64(days) - elapsedDays))
		return Decision{Reason: DenyCooldown, CooldownDaysLeft: remaining}
	}
	return Decision{Allowed: true}
}
