// Command main runs the database seeder for Marquee.
package main

import (
	"flag"
	"log"

	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/seed"
)

func main() {
	// Parse command line flags
	numPosters := flag.Int("posters", 0, "Number of posters to create (0 uses the curated catalog)")
	numRequesters := flag.Int("requesters", 25, "Number of requesters to generate")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d posters, %d requesters, clean=%v\n", *numPosters, *numRequesters, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumPosters:    *numPosters,
		NumRequesters: *numRequesters,
		MaxActive:     cfg.MaxActive,
		ShouldClean:   *shouldClean,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your ledger is now populated with demo data.")
}
