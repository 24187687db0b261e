package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"marquee/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	r    *rand.Rand
}

// Requester is a generated (email, display name) identity pair in the same
// formats the submission form enforces.
type Requester struct {
	Email string
	Name  string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// BuildPoster constructs a poster without persisting it. Titles come from the
// curated catalog list; once that is exhausted, gofakeit fills in the rest.
func (f *Factory) BuildPoster(index int, overrides ...func(*models.Poster)) *models.Poster {
	poster := &models.Poster{
		ID:             uuid.NewString(),
		Active:         true,
		InventoryCount: gofakeit.Number(1, 5),
	}

	if index < len(catalogTitles) {
		entry := catalogTitles[index]
		poster.Title = entry.Title
		released, err := time.Parse("2006-01-02", entry.ReleaseDate)
		if err == nil {
			poster.ReleaseDate = released
		}
	} else {
		poster.Title = gofakeit.HipsterSentence(3)
		poster.Title = strings.TrimSuffix(poster.Title, ".")
		poster.ReleaseDate = gofakeit.DateRange(
			time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	}

	if f.r.Float32() < 0.2 {
		poster.Received = true
		poster.Notes = gofakeit.Sentence(6)
	}

	for _, override := range overrides {
		override(poster)
	}
	return poster
}

// CreateCatalog persists count posters and returns them.
func (f *Factory) CreateCatalog(count int) ([]models.Poster, error) {
	posters := make([]models.Poster, 0, count)
	for i := 0; i < count; i++ {
		poster := f.BuildPoster(i)
		if err := f.db.Create(poster).Error; err != nil {
			return nil, err
		}
		posters = append(posters, *poster)
	}
	return posters, nil
}

// BuildRequesters generates count distinct requester identities.
func (f *Factory) BuildRequesters(count int) []Requester {
	requesters := make([]Requester, 0, count)
	seen := map[string]bool{}
	for len(requesters) < count {
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		email := strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, last, gofakeit.Number(1, 999)))
		if seen[email] {
			continue
		}
		seen[email] = true
		requesters = append(requesters, Requester{
			Email: email,
			Name:  fmt.Sprintf("%s %s", first, strings.ToUpper(last[:1])),
		})
	}
	return requesters
}

// CreateLedger builds a plausible request history: each requester holds a
// random number of ACTIVE requests within the capacity limit, plus the
// occasional REMOVED record so dedup policies have history to chew on.
func (f *Factory) CreateLedger(requesters []Requester, posters []models.Poster) ([]models.RequestRecord, error) {
	titleCounts := map[string]int{}
	for _, p := range posters {
		titleCounts[strings.ToLower(strings.TrimSpace(p.Title))]++
	}

	records := make([]models.RequestRecord, 0, len(requesters)*2)
	for _, requester := range requesters {
		picks := f.r.Perm(len(posters))
		active := f.r.Intn(f.opts.MaxActive + 1)
		removed := f.r.Intn(2)

		for i := 0; i < active+removed && i < len(picks); i++ {
			poster := posters[picks[i]]
			requestedAt := spreadTimestamp(f.r, 90)

			rec := models.RequestRecord{
				RequestedAt:     requestedAt,
				RequesterID:     requester.Email,
				RequesterName:   requester.Name,
				PosterID:        poster.ID,
				LabelAtRequest:  labelFor(poster, titleCounts),
				TitleSnapshot:   poster.Title,
				ReleaseSnapshot: poster.ReleaseDate,
				Status:          models.RequestStatusActive,
				StatusChangedAt: requestedAt,
			}
			if i >= active {
				rec.Status = models.RequestStatusRemoved
				rec.StatusChangedAt = requestedAt.Add(time.Duration(f.r.Intn(72)+1) * time.Hour)
			}

			if err := f.db.Create(&rec).Error; err != nil {
				log.Printf("Failed to create record for %s: %v", requester.Email, err)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// CreateSubscribers enrolls roughly half the requesters on the notification
// roster, the way real submissions opt people in.
func (f *Factory) CreateSubscribers(requesters []Requester) error {
	for _, requester := range requesters {
		if f.r.Float32() < 0.5 {
			continue
		}
		sub := models.Subscriber{
			Email:  requester.Email,
			Name:   requester.Name,
			Active: true,
		}
		if err := f.db.Create(&sub).Error; err != nil {
			return err
		}
	}
	return nil
}
