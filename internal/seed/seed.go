// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"marquee/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumPosters    int
	NumRequesters int
	MaxActive     int
	ShouldClean   bool
}

// catalogTitles is a curated set of poster titles. It deliberately repeats a
// few titles (remakes) so seeded catalogs exercise date-disambiguated labels.
var catalogTitles = []seedTitle{
	{"Dune", "1984-12-14"},
	{"Dune", "2021-10-22"},
	{"King Kong", "1933-03-02"},
	{"King Kong", "1976-12-17"},
	{"King Kong", "2005-12-14"},
	{"Alien", "1979-05-25"},
	{"Aliens", "1986-07-18"},
	{"Blade Runner", "1982-06-25"},
	{"Blade Runner 2049", "2017-10-06"},
	{"Heat", "1995-12-15"},
	{"Arrival", "2016-11-11"},
	{"The Thing", "1982-06-25"},
	{"The Thing", "2011-10-14"},
	{"Metropolis", "1927-01-10"},
	{"Vertigo", "1958-05-09"},
	{"Jaws", "1975-06-20"},
	{"Akira", "1988-07-16"},
	{"Seven Samurai", "1954-04-26"},
	{"Stalker", "1979-05-25"},
	{"Brazil", "1985-02-20"},
	{"The Third Man", "1949-08-31"},
	{"Solaris", "1972-03-20"},
	{"Solaris", "2002-11-27"},
	{"Suspiria", "1977-02-01"},
	{"Suspiria", "2018-10-26"},
}

type seedTitle struct {
	Title       string
	ReleaseDate string
}

// Seed populates the database with demo catalog and ledger data.
func Seed(db *gorm.DB, opts Options) error {
	if opts.NumPosters <= 0 {
		opts.NumPosters = len(catalogTitles)
	}
	if opts.NumRequesters <= 0 {
		opts.NumRequesters = 25
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = 5
	}

	log.Printf("🌱 Seeding %d posters and %d requesters...", opts.NumPosters, opts.NumRequesters)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	posters, err := factory.CreateCatalog(opts.NumPosters)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	log.Printf("✓ %d posters created", len(posters))

	requesters := factory.BuildRequesters(opts.NumRequesters)
	log.Printf("✓ %d requesters generated", len(requesters))

	records, err := factory.CreateLedger(requesters, posters)
	if err != nil {
		return fmt.Errorf("failed to create ledger records: %w", err)
	}
	log.Printf("✓ %d request records created", len(records))

	if err := factory.CreateSubscribers(requesters); err != nil {
		return fmt.Errorf("failed to create subscribers: %w", err)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// EnsureCatalog idempotently creates the curated catalog entries. Safe to run
// on every boot; existing (title, release date) pairs are left alone.
func EnsureCatalog(db *gorm.DB) error {
	for _, entry := range catalogTitles {
		released, err := time.Parse("2006-01-02", entry.ReleaseDate)
		if err != nil {
			return fmt.Errorf("bad curated release date %q: %w", entry.ReleaseDate, err)
		}

		var existing models.Poster
		err = db.Where("title = ? AND release_date = ?", entry.Title, released).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		poster := models.Poster{
			ID:          uuid.NewString(),
			Title:       entry.Title,
			ReleaseDate: released,
			Active:      true,
		}
		if err := db.Create(&poster).Error; err != nil {
			return err
		}
	}
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "sqlite" {
		for _, table := range []string{"request_records", "submission_logs", "integrity_logs", "subscribers", "posters"} {
			if err := db.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	}
	sql := `TRUNCATE TABLE request_records, submission_logs, integrity_logs, subscribers, posters RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

// labelFor derives the display label the same way the catalog does: the bare
// title unless the seeded set repeats it, then the title plus release date.
func labelFor(p models.Poster, titleCounts map[string]int) string {
	if titleCounts[strings.ToLower(strings.TrimSpace(p.Title))] > 1 {
		return fmt.Sprintf("%s (%s)", p.Title, p.ReleaseDate.Format("2006-01-02"))
	}
	return p.Title
}

func spreadTimestamp(r *rand.Rand, maxDays int) time.Time {
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	return time.Now().UTC().
		Add(-time.Duration(daysBack)*24*time.Hour -
			time.Duration(hoursBack)*time.Hour -
			time.Duration(minsBack)*time.Minute)
}
