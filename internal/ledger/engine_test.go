package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"marquee/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(cfg PolicyConfig) (*Engine, *memStore, *memCatalog, *fakeClock) {
	store := newMemStore()
	catalog := newMemCatalog()
	clock := newFakeClock(testEpoch)
	coord := NewCoordinator(time.Second)
	eng := NewEngine(store, catalog, clock, cfg, coord, nil, nil)
	return eng, store, catalog, clock
}

func submit(t *testing.T, eng *Engine, remove, add []string) *SubmissionResult {
	t.Helper()
	res, err := eng.Submit(context.Background(), SubmissionInput{
		RequesterID:   "avery@example.com",
		RequesterName: "Avery Q",
		RemoveLabels:  remove,
		AddLabels:     add,
	})
	require.NoError(t, err)
	return res
}

func TestSubmit_AcceptsUpToCapacityInOrder(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 2, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)
	catalog.add("p2", "Beta", true)
	catalog.add("p3", "Gamma", true)

	res := submit(t, eng, nil, []string{"Alpha", "Beta", "Gamma"})

	assert.Equal(t, []string{"Alpha", "Beta"}, res.AddedAccepted)
	require.Len(t, res.DeniedAdds, 1)
	assert.Equal(t, "Gamma", res.DeniedAdds[0].Label)
	assert.Equal(t, DenyLimit, res.DeniedAdds[0].Reason)

	count, err := store.CountActive(context.Background(), "avery@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "capacity invariant holds after the submission")
}

func TestSubmit_RemovalsFreeCapacityForAdditions(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 1, Mode: DedupAllowImmediate})
	catalog.add("px", "Old One", true)
	catalog.add("py", "New One", true)

	submit(t, eng, nil, []string{"Old One"})

	res := submit(t, eng, []string{"Old One"}, []string{"New One"})
	assert.Equal(t, []string{"Old One"}, res.RemovedApplied)
	assert.Equal(t, []string{"New One"}, res.AddedAccepted)
	assert.Empty(t, res.DeniedAdds)

	count, err := store.CountActive(context.Background(), "avery@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmit_NameGateRejectsWholeSubmission(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)

	_, err := eng.Submit(context.Background(), SubmissionInput{
		RequesterID:   "avery@example.com",
		RequesterName: "Avery Quintero", // full last name, not an initial
		AddLabels:     []string{"Alpha"},
	})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	records, scanErr := store.Scan(context.Background())
	require.NoError(t, scanErr)
	assert.Empty(t, records, "a validation failure must write nothing")
}

func TestSubmit_RequesterIDNormalized(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)

	res, err := eng.Submit(context.Background(), SubmissionInput{
		RequesterID:   " Avery@Example.COM ",
		RequesterName: "avery q",
		AddLabels:     []string{"Alpha"},
	})
	require.NoError(t, err)
	assert.Equal(t, "avery@example.com", res.RequesterID)
	assert.Equal(t, "Avery Q", res.RequesterName)

	records, err := store.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "avery@example.com", records[0].RequesterID)
	assert.Equal(t, "Avery Q", records[0].RequesterName)
}

func TestSubmit_UnknownAndInactiveDenials(t *testing.T) {
	t.Parallel()
	eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Shelved", false)

	res := submit(t, eng, nil, []string{"Nonexistent", "Shelved"})

	require.Len(t, res.DeniedAdds, 2)
	assert.Equal(t, DenyUnknown, res.DeniedAdds[0].Reason)
	assert.Equal(t, DenyInactive, res.DeniedAdds[1].Reason)
	assert.Empty(t, res.AddedAccepted)
}

func TestSubmit_RemovalEdgeCases(t *testing.T) {
	t.Parallel()
	eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupAllowImmediate})
	catalog.add("p1", "Alpha", true)

	// Unknown removal labels are silently skipped; removing a poster the
	// requester never held is a no-op, not an applied removal.
	res := submit(t, eng, []string{"Nonexistent", "Alpha"}, nil)
	assert.Empty(t, res.RemovedApplied)

	// Removing twice only applies once.
	submit(t, eng, nil, []string{"Alpha"})
	res = submit(t, eng, []string{"Alpha"}, nil)
	assert.Equal(t, []string{"Alpha"}, res.RemovedApplied)
	res = submit(t, eng, []string{"Alpha"}, nil)
	assert.Empty(t, res.RemovedApplied)
}

func TestSubmit_PermanentBlockDeniesRerequest(t *testing.T) {
	t.Parallel()
	eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)

	submit(t, eng, nil, []string{"Alpha"})
	submit(t, eng, []string{"Alpha"}, nil)

	res := submit(t, eng, nil, []string{"Alpha"})
	require.Len(t, res.DeniedAdds, 1)
	assert.Equal(t, DenyDuplicateHistorical, res.DeniedAdds[0].Reason)
}

func TestSubmit_CooldownLifecycle(t *testing.T) {
	t.Parallel()
	eng, _, catalog, clock := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupCooldown, CooldownDays: 7})
	catalog.add("p1", "Alpha", true)

	submit(t, eng, nil, []string{"Alpha"})
	submit(t, eng, []string{"Alpha"}, nil)

	clock.advance(3 * 24 * time.Hour)
	res := submit(t, eng, nil, []string{"Alpha"})
	require.Len(t, res.DeniedAdds, 1)
	assert.Equal(t, DenyCooldown, res.DeniedAdds[0].Reason)
	assert.Equal(t, 4, res.DeniedAdds[0].CooldownDaysLeft)

	// Past the window the identical submission is accepted, as a new record.
	clock.advance(5 * 24 * time.Hour)
	res = submit(t, eng, nil, []string{"Alpha"})
	assert.Equal(t, []string{"Alpha"}, res.AddedAccepted)
}

func TestSubmit_RerequestCreatesNewRecord(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupAllowImmediate})
	catalog.add("p1", "Alpha", true)

	submit(t, eng, nil, []string{"Alpha"})
	submit(t, eng, []string{"Alpha"}, nil)
	submit(t, eng, nil, []string{"Alpha"})

	records, err := store.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "re-request appends a new record, never resurrects")
	assert.Equal(t, models.RequestStatusRemoved, records[0].Status)
	assert.Equal(t, models.RequestStatusActive, records[1].Status)
}

func TestSubmit_SnapshotsCatalogStateAtRequestTime(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)

	submit(t, eng, nil, []string{"Alpha"})

	records, err := store.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alpha", records[0].LabelAtRequest)
	assert.Equal(t, "Alpha", records[0].TitleSnapshot)
	assert.False(t, records[0].ReleaseSnapshot.IsZero())
}

func TestSubmit_SlotCounts(t *testing.T) {
	t.Parallel()
	eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 3, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)
	catalog.add("p2", "Beta", true)

	res := submit(t, eng, nil, []string{"Alpha", "Beta"})
	assert.Equal(t, 0, res.SlotsBefore)
	assert.Equal(t, 2, res.SlotsAfter)
}

func TestSubmit_PartialFailureKeepsRemovals(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupAllowImmediate})
	catalog.add("p1", "Alpha", true)
	catalog.add("p2", "Beta", true)

	submit(t, eng, nil, []string{"Alpha"})

	// An append failure between removals and additions is not rolled back:
	// the ledger keeps the removal and the addition never lands.
	store.appendErr = errors.New("store unavailable")
	_, err := eng.Submit(context.Background(), SubmissionInput{
		RequesterID:   "avery@example.com",
		RequesterName: "Avery Q",
		RemoveLabels:  []string{"Alpha"},
		AddLabels:     []string{"Beta"},
	})
	require.Error(t, err)

	count, cErr := store.CountActive(context.Background(), "avery@example.com")
	require.NoError(t, cErr)
	assert.Equal(t, 0, count, "removal stays applied, addition never lands")
}

func TestSubmit_LockTimeout(t *testing.T) {
	t.Parallel()
	eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
	catalog.add("p1", "Alpha", true)

	// Hold the lock so the submission cannot acquire it.
	require.NoError(t, eng.coord.Acquire(context.Background()))
	defer eng.coord.Release()

	_, err := eng.Submit(context.Background(), SubmissionInput{
		RequesterID:   "avery@example.com",
		RequesterName: "Avery Q",
		AddLabels:     []string{"Alpha"},
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestManualAdd(t *testing.T) {
	t.Parallel()
	cfg := PolicyConfig{MaxActive: 1, Mode: DedupPermanentBlock}

	t.Run("accepts and snapshots", func(t *testing.T) {
		t.Parallel()
		eng, store, catalog, _ := newTestEngine(cfg)
		catalog.add("p1", "Alpha", true)

		rec, err := eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Alpha", rec.LabelAtRequest)
		assert.NotZero(t, rec.ID)

		count, err := store.CountActive(context.Background(), "avery@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown poster", func(t *testing.T) {
		t.Parallel()
		eng, _, _, _ := newTestEngine(cfg)
		_, err := eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "ghost",
		})
		var denial *DenialError
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, DenyUnknown, denial.Reason)
	})

	t.Run("inactive poster", func(t *testing.T) {
		t.Parallel()
		eng, _, catalog, _ := newTestEngine(cfg)
		catalog.add("p1", "Alpha", false)
		_, err := eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p1",
		})
		var denial *DenialError
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, DenyInactive, denial.Reason)
	})

	t.Run("capacity enforced", func(t *testing.T) {
		t.Parallel()
		eng, _, catalog, _ := newTestEngine(cfg)
		catalog.add("p1", "Alpha", true)
		catalog.add("p2", "Beta", true)

		_, err := eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p1",
		})
		require.NoError(t, err)

		_, err = eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p2",
		})
		var denial *DenialError
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, DenyLimit, denial.Reason)
	})

	t.Run("dedup enforced", func(t *testing.T) {
		t.Parallel()
		eng, _, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupPermanentBlock})
		catalog.add("p1", "Alpha", true)

		_, err := eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p1",
		})
		require.NoError(t, err)

		_, err = eng.ManualAdd(context.Background(), ManualAddInput{
			RequesterID:   "avery@example.com",
			RequesterName: "Avery Q",
			PosterID:      "p1",
		})
		var denial *DenialError
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, DenyDuplicateActive, denial.Reason)
	})
}

func TestSubmit_UniquenessInvariantAcrossSubmissions(t *testing.T) {
	t.Parallel()
	eng, store, catalog, _ := newTestEngine(PolicyConfig{MaxActive: 5, Mode: DedupAllowImmediate})
	catalog.add("p1", "Alpha", true)

	submit(t, eng, nil, []string{"Alpha", "Alpha"})

	records, err := store.Scan(context.Background())
	require.NoError(t, err)
	activeCount := 0
	for _, r := range records {
		if r.IsActive() {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount, "the same submission cannot create a duplicate active pair")
}
