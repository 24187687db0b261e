package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marquee/internal/ledger"
	"marquee/internal/middleware"
	"marquee/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return bytes.NewReader(body)
}

func adminToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops@example.com",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	s, db := newLedgerTestServer(t)
	middleware.InitMiddleware(s.config)
	seedPoster(t, db, "Alien", time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC))

	app := fiber.New()
	admin := app.Group("/api/admin", middleware.AdminRequired)
	admin.Get("/audit/history", s.GetAuditHistory)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit/history", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit/history", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, s.config.AdminJWTSecret, "viewer"))
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin role, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit/history", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, s.config.AdminJWTSecret, "admin"))
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with admin token, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestCreatePoster(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)

	app := fiber.New()
	app.Post("/api/admin/posters", s.CreatePoster)

	resp := postJSON(t, app, "/api/admin/posters", CreatePosterRequest{
		Title:          "Blade Runner",
		ReleaseDate:    "1982-06-25",
		InventoryCount: 3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created models.Poster
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode poster: %v", err)
	}
	_ = resp.Body.Close()
	if created.ID == "" {
		t.Fatal("expected generated poster ID")
	}
	if !created.Active {
		t.Fatal("expected new poster active")
	}

	var stored models.Poster
	if err := db.First(&stored, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("reload poster: %v", err)
	}
	if stored.Title != "Blade Runner" || stored.InventoryCount != 3 {
		t.Fatalf("unexpected stored poster: %+v", stored)
	}

	resp = postJSON(t, app, "/api/admin/posters", CreatePosterRequest{Title: "  "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank title, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = postJSON(t, app, "/api/admin/posters", CreatePosterRequest{
		Title:       "Bad Date",
		ReleaseDate: "06/25/1982",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad date, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSetPosterActive(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	poster := seedPoster(t, db, "Alien", time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC))

	app := fiber.New()
	app.Patch("/api/admin/posters/:id/active", s.SetPosterActive)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/posters/"+poster.ID+"/active",
		jsonBody(t, SetPosterActiveRequest{Active: false}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var stored models.Poster
	if err := db.First(&stored, "id = ?", poster.ID).Error; err != nil {
		t.Fatalf("reload poster: %v", err)
	}
	if stored.Active {
		t.Fatal("expected poster deactivated")
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/admin/posters/nope/active",
		jsonBody(t, SetPosterActiveRequest{Active: true}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestDeletePoster_LeavesLedgerForAudit(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	poster := seedPoster(t, db, "Alien", time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC))
	rec := seedActiveRecord(t, db, "ada@example.com", poster.ID, "Alien")

	app := fiber.New()
	app.Delete("/api/admin/posters/:id", s.DeletePoster)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/posters/"+poster.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var posterCount int64
	if err := db.Model(&models.Poster{}).Where("id = ?", poster.ID).Count(&posterCount).Error; err != nil {
		t.Fatalf("count posters: %v", err)
	}
	if posterCount != 0 {
		t.Fatal("expected poster deleted")
	}

	// The ledger row stays ACTIVE until the auditor archives it.
	var stillThere models.RequestRecord
	if err := db.First(&stillThere, rec.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if stillThere.Status != models.RequestStatusActive {
		t.Fatalf("expected record untouched, got %s", stillThere.Status)
	}
}

func TestCreateManualRequest(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	poster := seedPoster(t, db, "Alien", time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC))

	app := fiber.New()
	app.Post("/api/admin/requests", s.CreateManualRequest)

	resp := postJSON(t, app, "/api/admin/requests", CreateManualRequestRequest{
		RequesterID:   "ada@example.com",
		RequesterName: "Ada L",
		PosterID:      poster.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created models.RequestRecord
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	_ = resp.Body.Close()
	if created.Status != models.RequestStatusActive {
		t.Fatalf("expected ACTIVE, got %s", created.Status)
	}

	// Same pair again trips the dedup policy.
	resp = postJSON(t, app, "/api/admin/requests", CreateManualRequestRequest{
		RequesterID:   "ada@example.com",
		RequesterName: "Ada L",
		PosterID:      poster.ID,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var errResp models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	_ = resp.Body.Close()
	if errResp.Code != string(ledger.DenyDuplicateActive) {
		t.Fatalf("expected DUPLICATE_ACTIVE code, got %q", errResp.Code)
	}

	resp = postJSON(t, app, "/api/admin/requests", CreateManualRequestRequest{
		RequesterID:   "not-an-email",
		RequesterName: "Ada L",
		PosterID:      poster.ID,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var count int64
	if err := db.Model(&models.RequestRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one record, got %d", count)
	}
}

func TestRunAudit_ArchivesOrphans(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	poster := seedPoster(t, db, "Alien", time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC))
	rec := seedActiveRecord(t, db, "ada@example.com", poster.ID, "Alien")
	if err := db.Delete(&models.Poster{}, "id = ?", poster.ID).Error; err != nil {
		t.Fatalf("delete poster: %v", err)
	}

	app := fiber.New()
	app.Post("/api/admin/audit", s.RunAudit)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/audit?fix=true", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report ledger.AuditReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	_ = resp.Body.Close()
	if report.ChecksRun != 4 {
		t.Fatalf("expected 4 checks, got %d", report.ChecksRun)
	}
	if report.IssuesFound != 1 || report.IssuesFixed != 1 {
		t.Fatalf("expected one issue found and fixed, got %d/%d", report.IssuesFound, report.IssuesFixed)
	}

	var repaired models.RequestRecord
	if err := db.First(&repaired, rec.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if repaired.Status != models.RequestStatusArchived {
		t.Fatalf("expected ARCHIVED, got %s", repaired.Status)
	}
	if repaired.ArchiveReason != models.ArchiveReasonItemDeleted {
		t.Fatalf("expected ITEM_DELETED, got %s", repaired.ArchiveReason)
	}

	// The run is persisted to the trail.
	var trail []models.IntegrityLog
	if err := db.Find(&trail).Error; err != nil {
		t.Fatalf("load trail: %v", err)
	}
	if len(trail) != 4 {
		t.Fatalf("expected 4 trail rows, got %d", len(trail))
	}
}

func TestGetAuditHistory(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	for i := 0; i < 3; i++ {
		row := models.IntegrityLog{
			CheckTime: time.Now().UTC().Add(time.Duration(-i) * time.Hour),
			CheckType: ledger.CheckOrphanedRequests,
			Status:    ledger.CheckStatusPass,
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed trail row: %v", err)
		}
	}

	app := fiber.New()
	app.Get("/api/admin/audit/history", s.GetAuditHistory)

	var rows []models.IntegrityLog
	resp := getJSON(t, app, "/api/admin/audit/history?limit=2", &rows)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestGetSubmissionLog(t *testing.T) {
	t.Parallel()

	s, db := newLedgerTestServer(t)
	for _, requester := range []string{"ada@example.com", "kay@example.com", "ada@example.com"} {
		row := models.SubmissionLog{
			SubmittedAt:   time.Now().UTC(),
			RequesterID:   requester,
			RequesterName: "Ada L",
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed log row: %v", err)
		}
	}

	app := fiber.New()
	app.Get("/api/admin/submissions", s.GetSubmissionLog)

	var rows []models.SubmissionLog
	resp := getJSON(t, app, "/api/admin/submissions", &rows)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	resp = getJSON(t, app, "/api/admin/submissions?requester=Ada@Example.com", &rows)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for ada, got %d", len(rows))
	}

	app.Delete("/api/admin/subscribers/:email", s.DeactivateSubscriber)
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/subscribers/ghost@example.com", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subscriber, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
