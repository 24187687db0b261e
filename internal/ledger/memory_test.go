package ledger

import (
	"context"
	"sync"
	"time"

	"marquee/internal/models"
)

// memStore is an in-memory RecordStore for engine tests. It mirrors the
// contract of the gorm implementation, including ID assignment.
type memStore struct {
	mu      sync.RWMutex
	records []models.RequestRecord
	nextID  uint

	appendErr error // injected failure for partial-transaction tests
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (s *memStore) Append(_ context.Context, rec *models.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, *rec)
	return nil
}

func (s *memStore) Scan(_ context.Context) ([]models.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RequestRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) FindActive(_ context.Context, requesterID, posterID string) (*models.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.records {
		r := s.records[i]
		if r.RequesterID == requesterID && r.PosterID == posterID && r.IsActive() {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) History(_ context.Context, requesterID, posterID string) ([]models.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RequestRecord
	for _, r := range s.records {
		if r.RequesterID == requesterID && r.PosterID == posterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CountActive(_ context.Context, requesterID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.RequesterID == requesterID && r.IsActive() {
			count++
		}
	}
	return count, nil
}

func (s *memStore) UpdateStatus(_ context.Context, requesterID, posterID string, status models.RequestStatus, reason models.ArchiveReason, at time.Time) (UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		r := &s.records[i]
		if r.RequesterID == requesterID && r.PosterID == posterID && r.IsActive() {
			r.Status = status
			r.ArchiveReason = reason
			r.StatusChangedAt = at
			return UpdateApplied, nil
		}
	}
	return UpdateNotFound, nil
}

func (s *memStore) SetStatusByRecordID(_ context.Context, id uint, status models.RequestStatus, reason models.ArchiveReason, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			s.records[i].ArchiveReason = reason
			s.records[i].StatusChangedAt = at
			return nil
		}
	}
	return nil
}

func (s *memStore) DeleteByRecordID(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) ActivePosterIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for _, r := range s.records {
		if r.IsActive() {
			out[r.PosterID] = struct{}{}
		}
	}
	return out, nil
}

// seed inserts a record directly, bypassing engine checks, for building
// broken ledgers in auditor tests.
func (s *memStore) seed(rec models.RequestRecord) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = s.nextID
	}
	if rec.ID >= s.nextID {
		s.nextID = rec.ID + 1
	}
	s.records = append(s.records, rec)
	return rec.ID
}

func (s *memStore) byID(id uint) *models.RequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.records {
		if s.records[i].ID == id {
			r := s.records[i]
			return &r
		}
	}
	return nil
}

type memPoster struct {
	title   string
	release time.Time
	label   string
	active  bool
}

// memCatalog is an in-memory Catalog for engine tests.
type memCatalog struct {
	mu      sync.RWMutex
	posters map[string]memPoster
}

func newMemCatalog() *memCatalog {
	return &memCatalog{posters: make(map[string]memPoster)}
}

func (c *memCatalog) add(id, label string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posters[id] = memPoster{
		title:   label,
		release: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		label:   label,
		active:  active,
	}
}

func (c *memCatalog) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.posters, id)
}

func (c *memCatalog) ResolveLabel(_ context.Context, label string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, p := range c.posters {
		if p.label == label {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (c *memCatalog) IsActive(_ context.Context, posterID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posters[posterID]
	return ok && p.active, nil
}

func (c *memCatalog) Snapshot(_ context.Context, posterID string) (*PosterSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posters[posterID]
	if !ok {
		return nil, nil
	}
	return &PosterSnapshot{Title: p.title, ReleaseDate: p.release, CurrentLabel: p.label}, nil
}

func (c *memCatalog) ActiveIDSet(_ context.Context) (map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{})
	for id, p := range c.posters {
		if p.active {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (c *memCatalog) AllIDSet(_ context.Context) (map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{})
	for id := range c.posters {
		out[id] = struct{}{}
	}
	return out, nil
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
