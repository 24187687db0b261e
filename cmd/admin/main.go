// Package main provides admin management utilities for Marquee.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/ledger"
	"marquee/internal/middleware"
	"marquee/internal/repository"
	"marquee/internal/server"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go audit [-fix]                          - Run the consistency audit")
	fmt.Println("  go run ./cmd/admin/main.go manual-add <email> <name> <posterID>  - Insert one request directly")
	fmt.Println("  go run ./cmd/admin/main.go mint-token <subject>                  - Issue an admin API token")
	fmt.Println("  go run ./cmd/admin/main.go poster-active <posterID> <on|off>     - Toggle a poster's requestable state")
	fmt.Println("  go run ./cmd/admin/main.go audit-history                         - Show recent audit results")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]

	// Token minting needs no database.
	if command == "mint-token" {
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin/main.go mint-token <subject>")
			os.Exit(1)
		}
		mintToken(cfg, os.Args[2])
		return
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command {
	case "audit":
		fixFlags := flag.NewFlagSet("audit", flag.ExitOnError)
		fix := fixFlags.Bool("fix", false, "Apply repairs")
		_ = fixFlags.Parse(os.Args[2:])
		runAudit(cfg, db, *fix)

	case "manual-add":
		if len(os.Args) < 5 {
			fmt.Println("Usage: go run ./cmd/admin/main.go manual-add <email> <name> <posterID>")
			os.Exit(1)
		}
		manualAdd(cfg, db, os.Args[2], os.Args[3], os.Args[4])

	case "poster-active":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin/main.go poster-active <posterID> <on|off>")
			os.Exit(1)
		}
		setPosterActive(db, os.Args[2], os.Args[3])

	case "audit-history":
		auditHistory(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func buildEngine(cfg *config.Config, db *gorm.DB) *ledger.Engine {
	return ledger.NewEngine(
		repository.NewLedgerRepository(db),
		repository.NewCatalogRepository(db),
		nil,
		server.PolicyFromConfig(cfg),
		ledger.NewCoordinator(time.Duration(cfg.LockTimeoutSeconds)*time.Second),
		repository.NewIntegrityLogRepository(db),
		middleware.Logger,
	)
}

func runAudit(cfg *config.Config, db *gorm.DB, fix bool) {
	engine := buildEngine(cfg, db)

	report, err := engine.RunAudit(context.Background(), fix)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	fmt.Printf("\n🔍 Audit completed at %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Println("─────────────────────────────────────")
	for _, check := range report.Checks {
		fmt.Printf("%-28s %-8s found=%d fixed=%d\n", check.CheckType, check.Status, check.IssuesFound, check.IssuesFixed)
		for _, detail := range check.Details {
			fmt.Printf("    %s\n", detail)
		}
	}
	fmt.Println("─────────────────────────────────────")
	fmt.Printf("Checks: %d | Issues: %d | Fixed: %d\n", report.ChecksRun, report.IssuesFound, report.IssuesFixed)
	if report.IssuesFound > report.IssuesFixed && !fix {
		fmt.Println("Re-run with -fix to apply repairs.")
	}
}

func manualAdd(cfg *config.Config, db *gorm.DB, email, name, posterID string) {
	engine := buildEngine(cfg, db)

	record, err := engine.ManualAdd(context.Background(), ledger.ManualAddInput{
		RequesterID:   email,
		RequesterName: name,
		PosterID:      posterID,
	})
	if err != nil {
		log.Fatalf("Manual add failed: %v", err)
	}

	fmt.Printf("✅ Created record %d: %s -> %s (%s)\n",
		record.ID, record.RequesterID, record.LabelAtRequest, record.Status)
}

func setPosterActive(db *gorm.DB, posterID, state string) {
	var active bool
	switch state {
	case "on", "true":
		active = true
	case "off", "false":
		active = false
	default:
		fmt.Printf("Invalid state %q, want on or off\n", state)
		os.Exit(1)
	}

	repo := repository.NewCatalogRepository(db)
	if err := repo.SetActive(context.Background(), posterID, active); err != nil {
		log.Fatalf("Failed to update poster: %v", err)
	}

	fmt.Printf("✅ Poster %s active=%t\n", posterID, active)
}

func mintToken(cfg *config.Config, subject string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.AdminJWTSecret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(signed)
}

func auditHistory(db *gorm.DB) {
	repo := repository.NewIntegrityLogRepository(db)
	rows, err := repo.Recent(context.Background(), 50)
	if err != nil {
		log.Fatalf("Failed to fetch audit history: %v", err)
	}

	if len(rows) == 0 {
		fmt.Println("No audit runs recorded")
		return
	}

	fmt.Println("\n📋 Recent Audit Results:")
	fmt.Println("─────────────────────────────────────")
	for _, row := range rows {
		fmt.Printf("%s | %-28s %-8s found=%d fixed=%d\n",
			row.CheckTime.Format(time.RFC3339), row.CheckType, row.Status, row.IssuesFound, row.AutoFixed)
	}
	fmt.Println("─────────────────────────────────────")
}
