package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"marquee/internal/models"
	"marquee/internal/validation"
)

// Check type names, as they appear in the audit trail.
const (
	CheckOrphanedRequests = "orphaned_requests"
	CheckDuplicateActives = "duplicate_active_requests"
	CheckOverCapacity     = "over_capacity"
	CheckIdentityFormats  = "identity_formats"
)

// Check statuses.
const (
	CheckStatusPass    = "PASS"
	CheckStatusFail    = "FAIL"
	CheckStatusWarning = "WARNING"
	CheckStatusError   = "ERROR"
)

// CheckResult is the outcome of one consistency check.
type CheckResult struct {
	CheckType   string   `json:"check_type"`
	Status      string   `json:"status"`
	IssuesFound int      `json:"issues_found"`
	IssuesFixed int      `json:"issues_fixed"`
	Details     []string `json:"details"`
}

// AuditReport aggregates one full audit run.
type AuditReport struct {
	Timestamp   time.Time     `json:"timestamp"`
	ChecksRun   int           `json:"checks_run"`
	IssuesFound int           `json:"issues_found"`
	IssuesFixed int           `json:"issues_fixed"`
	Checks      []CheckResult `json:"checks"`
}

// RunAudit executes the fixed battery of consistency checks under the
// coordinator lock. With autoFix, repairable issues are corrected in place;
// a clean ledger reports zero issues on every run, so back-to-back audits
// converge after one repair pass. Results are appended to the audit trail.
func (e *Engine) RunAudit(ctx context.Context, autoFix bool) (*AuditReport, error) {
	if err := e.coord.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.coord.Release()

	report := &AuditReport{Timestamp: e.clock.Now()}

	checks := []func(context.Context, bool) CheckResult{
		e.checkOrphanedRequests,
		e.checkDuplicateActives,
		e.checkOverCapacity,
		e.checkIdentityFormats,
	}
	for _, check := range checks {
		res := check(ctx, autoFix)
		report.Checks = append(report.Checks, res)
		report.ChecksRun++
		report.IssuesFound += res.IssuesFound
		report.IssuesFixed += res.IssuesFixed
	}

	if e.trail != nil {
		if err := e.trail.Record(ctx, report.Timestamp, report.Checks); err != nil {
			e.logger.ErrorContext(ctx, "failed to persist audit trail", slog.String("error", err.Error()))
		}
	}

	e.logger.InfoContext(ctx, "audit completed",
		slog.Int("checks_run", report.ChecksRun),
		slog.Int("issues_found", report.IssuesFound),
		slog.Int("issues_fixed", report.IssuesFixed),
		slog.Bool("auto_fix", autoFix),
	)
	return report, nil
}

// checkOrphanedRequests finds ACTIVE records referencing posters that no
// longer exist in the catalog. Repair archives them as ITEM_DELETED, or
// hard-deletes them when the orphan purge policy is configured.
func (e *Engine) checkOrphanedRequests(ctx context.Context, autoFix bool) CheckResult {
	result := CheckResult{CheckType: CheckOrphanedRequests, Status: CheckStatusPass}

	records, err := e.store.Scan(ctx)
	if err != nil {
		return checkErrored(result, err)
	}
	known, err := e.catalog.AllIDSet(ctx)
	if err != nil {
		return checkErrored(result, err)
	}

	now := e.clock.Now()
	for i := range records {
		rec := &records[i]
		if !rec.IsActive() {
			continue
		}
		if _, ok := known[rec.PosterID]; ok {
			continue
		}

		result.IssuesFound++
		result.Status = CheckStatusFail
		result.Details = append(result.Details,
			fmt.Sprintf("record %d: active request for deleted poster %s", rec.ID, rec.PosterID))

		if !autoFix {
			continue
		}
		if e.cfg.OrphanPurge {
			err = e.store.DeleteByRecordID(ctx, rec.ID)
		} else {
			err = e.store.SetStatusByRecordID(ctx, rec.ID, models.RequestStatusArchived, models.ArchiveReasonItemDeleted, now)
		}
		if err != nil {
			result.Details = append(result.Details, fmt.Sprintf("record %d: repair failed: %v", rec.ID, err))
			continue
		}
		result.IssuesFixed++
	}

	return result
}

// checkDuplicateActives finds pairs with more than one ACTIVE record. Repair
// keeps the earliest by (RequestedAt, ID) and archives the rest, tagged
// distinctly from voluntary removals.
func (e *Engine) checkDuplicateActives(ctx context.Context, autoFix bool) CheckResult {
	result := CheckResult{CheckType: CheckDuplicateActives, Status: CheckStatusPass}

	records, err := e.store.Scan(ctx)
	if err != nil {
		return checkErrored(result, err)
	}

	groups := make(map[string][]models.RequestRecord)
	for i := range records {
		if !records[i].IsActive() {
			continue
		}
		key := records[i].RequesterID + "|" + records[i].PosterID
		groups[key] = append(groups[key], records[i])
	}

	now := e.clock.Now()
	for _, group := range groups {
		if len(group) <= 1 {
			continue
		}
		sortByAge(group)
		for _, dup := range group[1:] {
			result.IssuesFound++
			result.Status = CheckStatusFail
			result.Details = append(result.Details,
				fmt.Sprintf("record %d: duplicate active request for %s / %s", dup.ID, dup.RequesterID, dup.PosterID))

			if !autoFix {
				continue
			}
			if err := e.store.SetStatusByRecordID(ctx, dup.ID, models.RequestStatusArchived, models.ArchiveReasonDuplicate, now); err != nil {
				result.Details = append(result.Details, fmt.Sprintf("record %d: repair failed: %v", dup.ID, err))
				continue
			}
			result.IssuesFixed++
		}
	}

	return result
}

// checkOverCapacity finds requesters holding more ACTIVE records than the
// capacity limit. Repair keeps the oldest MaxActive by (RequestedAt, ID) and
// archives the remainder.
func (e *Engine) checkOverCapacity(ctx context.Context, autoFix bool) CheckResult {
	result := CheckResult{CheckType: CheckOverCapacity, Status: CheckStatusPass}

	records, err := e.store.Scan(ctx)
	if err != nil {
		return checkErrored(result, err)
	}

	byRequester := make(map[string][]models.RequestRecord)
	for i := range records {
		if records[i].IsActive() {
			byRequester[records[i].RequesterID] = append(byRequester[records[i].RequesterID], records[i])
		}
	}

	now := e.clock.Now()
	for requesterID, group := range byRequester {
		if len(group) <= e.cfg.MaxActive {
			continue
		}

		result.IssuesFound++
		result.Status = CheckStatusFail
		result.Details = append(result.Details,
			fmt.Sprintf("requester %s has %d active requests (max %d)", requesterID, len(group), e.cfg.MaxActive))

		if !autoFix {
			continue
		}
		sortByAge(group)
		repaired := true
		for _, excess := range group[e.cfg.MaxActive:] {
			if err := e.store.SetStatusByRecordID(ctx, excess.ID, models.RequestStatusArchived, models.ArchiveReasonOverCapacity, now); err != nil {
				result.Details = append(result.Details, fmt.Sprintf("record %d: repair failed: %v", excess.ID, err))
				repaired = false
				continue
			}
			result.Details = append(result.Details,
				fmt.Sprintf("record %d: archived over-capacity request for %s", excess.ID, requesterID))
		}
		if repaired {
			result.IssuesFixed++
		}
	}

	return result
}

// checkIdentityFormats flags records with malformed requester ids or display
// names. These are flagged for manual review; repair, when the policy allows
// it, deactivates the record rather than guessing a corrected identity.
func (e *Engine) checkIdentityFormats(ctx context.Context, autoFix bool) CheckResult {
	result := CheckResult{CheckType: CheckIdentityFormats, Status: CheckStatusPass}

	records, err := e.store.Scan(ctx)
	if err != nil {
		return checkErrored(result, err)
	}

	now := e.clock.Now()
	for i := range records {
		rec := &records[i]
		if !rec.IsActive() {
			continue
		}

		badID := !validation.IsValidEmail(rec.RequesterID)
		_, nameErr := validation.NormalizeRequesterName(rec.RequesterName)
		if !badID && nameErr == nil {
			continue
		}

		result.IssuesFound++
		result.Status = CheckStatusWarning
		result.Details = append(result.Details,
			fmt.Sprintf("record %d: malformed identity (%q / %q)", rec.ID, rec.RequesterID, rec.RequesterName))

		if !autoFix || !e.cfg.IdentityAutoRepair {
			result.Details = append(result.Details, fmt.Sprintf("record %d: REQUIRES_ACTION", rec.ID))
			continue
		}
		if err := e.store.SetStatusByRecordID(ctx, rec.ID, models.RequestStatusArchived, models.ArchiveReasonIdentity, now); err != nil {
			result.Details = append(result.Details, fmt.Sprintf("record %d: repair failed: %v", rec.ID, err))
			continue
		}
		result.IssuesFixed++
	}

	return result
}

func checkErrored(result CheckResult, err error) CheckResult {
	result.Status = CheckStatusError
	result.Details = append(result.Details, fmt.Sprintf("error: %v", err))
	return result
}

// sortByAge orders records oldest first, breaking RequestedAt ties by record
// ID so repairs are deterministic under timestamp collisions.
func sortByAge(records []models.RequestRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].RequestedAt.Equal(records[j].RequestedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].RequestedAt.Before(records[j].RequestedAt)
	})
}
