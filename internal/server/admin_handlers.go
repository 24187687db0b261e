package server

import (
	"errors"
	"strings"
	"time"

	"marquee/internal/cache"
	"marquee/internal/ledger"
	"marquee/internal/models"
	"marquee/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// CreatePosterRequest is the admin payload for adding a catalog entry.
type CreatePosterRequest struct {
	Title          string `json:"title"`
	ReleaseDate    string `json:"release_date"`
	InventoryCount int    `json:"inventory_count"`
	Received       bool   `json:"received"`
	Notes          string `json:"notes"`
}

// CreatePoster handles POST /api/admin/posters
// @Summary Add a poster to the catalog
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreatePosterRequest true "Poster details"
// @Success 201 {object} models.Poster
// @Failure 422 {object} models.ErrorResponse
// @Router /admin/posters [post]
func (s *Server) CreatePoster(c *fiber.Ctx) error {
	var req CreatePosterRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("title is required"))
	}

	poster := models.Poster{
		Title:          title,
		Active:         true,
		InventoryCount: req.InventoryCount,
		Received:       req.Received,
		Notes:          strings.TrimSpace(req.Notes),
	}
	if req.ReleaseDate != "" {
		released, err := time.Parse("2006-01-02", req.ReleaseDate)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
				models.NewValidationError("release_date must be YYYY-MM-DD"))
		}
		poster.ReleaseDate = released
	}

	if err := s.catalogRepo.Create(c.Context(), &poster); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	cache.InvalidateCatalog(c.Context())
	return c.Status(fiber.StatusCreated).JSON(poster)
}

// SetPosterActiveRequest toggles whether a poster accepts new requests.
type SetPosterActiveRequest struct {
	Active bool `json:"active"`
}

// SetPosterActive handles PATCH /api/admin/posters/:id/active
// @Summary Activate or deactivate a poster
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Poster ID"
// @Param request body SetPosterActiveRequest true "Desired state"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posters/{id}/active [patch]
func (s *Server) SetPosterActive(c *fiber.Ctx) error {
	id, err := s.requirePosterID(c)
	if err != nil {
		return nil
	}

	var req SetPosterActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.catalogRepo.SetActive(c.Context(), id, req.Active); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			return models.RespondWithError(c, fiber.StatusNotFound, appErr)
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	cache.InvalidateCatalog(c.Context())
	return c.JSON(fiber.Map{"id": id, "active": req.Active})
}

// DeletePoster handles DELETE /api/admin/posters/:id
// @Summary Remove a poster from the catalog
// @Description Deletes the catalog entry. Requests already pointing at it
// @Description stay on the ledger until the next audit run archives them.
// @Tags admin
// @Produce json
// @Param id path string true "Poster ID"
// @Success 204
// @Router /admin/posters/{id} [delete]
func (s *Server) DeletePoster(c *fiber.Ctx) error {
	id, err := s.requirePosterID(c)
	if err != nil {
		return nil
	}

	if err := s.catalogRepo.Delete(c.Context(), id); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	cache.InvalidateCatalog(c.Context())
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateManualRequestRequest is the admin payload for inserting one request
// directly, bypassing the submission form but not the allocation policy.
type CreateManualRequestRequest struct {
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
	PosterID      string `json:"poster_id"`
}

// CreateManualRequest handles POST /api/admin/requests
// @Summary Insert one request on a requester's behalf
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateManualRequestRequest true "Request details"
// @Success 201 {object} models.RequestRecord
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /admin/requests [post]
func (s *Server) CreateManualRequest(c *fiber.Ctx) error {
	var req CreateManualRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	_, span := observability.GetTraceLayer().TraceEngineOperation(c.UserContext(), "manual_add")
	record, err := s.engine.ManualAdd(c.Context(), ledger.ManualAddInput{
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		PosterID:      req.PosterID,
		At:            nowUTC(),
	})
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		var denial *ledger.DenialError
		if errors.As(err, &denial) {
			observability.DeniedAddsTotal.WithLabelValues(string(denial.Reason)).Inc()
			return models.RespondWithError(c, fiber.StatusConflict, &models.AppError{
				Code:    string(denial.Reason),
				Message: denial.Error(),
			})
		}
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR" {
			return models.RespondWithError(c, fiber.StatusUnprocessableEntity, appErr)
		}
		if errors.Is(err, ledger.ErrLockTimeout) {
			return models.RespondWithError(c, fiber.StatusServiceUnavailable, &models.AppError{
				Code:    "LOCK_TIMEOUT",
				Message: "Ledger is busy, please retry",
			})
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	observability.RecordsCreatedTotal.Inc()
	cache.InvalidateBoard(c.Context())
	cache.InvalidateRequester(c.Context(), record.RequesterID)
	return c.Status(fiber.StatusCreated).JSON(record)
}

// RunAudit handles POST /api/admin/audit
// @Summary Run the ledger consistency audit
// @Description Executes the full battery of consistency checks. Pass fix=true
// @Description to also apply the configured repairs.
// @Tags admin
// @Produce json
// @Param fix query bool false "Apply repairs"
// @Success 200 {object} ledger.AuditReport
// @Router /admin/audit [post]
func (s *Server) RunAudit(c *fiber.Ctx) error {
	autoFix := c.QueryBool("fix", false)

	_, span := observability.GetTraceLayer().TraceEngineOperation(c.UserContext(), "audit")
	report, err := s.engine.RunAudit(c.Context(), autoFix)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		if errors.Is(err, ledger.ErrLockTimeout) {
			return models.RespondWithError(c, fiber.StatusServiceUnavailable, &models.AppError{
				Code:    "LOCK_TIMEOUT",
				Message: "Ledger is busy, please retry",
			})
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	for _, check := range report.Checks {
		if check.IssuesFound > 0 {
			observability.AuditIssuesTotal.WithLabelValues(check.CheckType).Add(float64(check.IssuesFound))
		}
		if check.IssuesFixed > 0 {
			observability.AuditRepairsTotal.WithLabelValues(check.CheckType).Add(float64(check.IssuesFixed))
		}
	}
	if report.IssuesFixed > 0 {
		cache.InvalidateBoard(c.Context())
	}

	return c.JSON(report)
}

// GetAuditHistory handles GET /api/admin/audit/history
// @Summary Recent audit results
// @Tags admin
// @Produce json
// @Param limit query int false "Max rows" default(50)
// @Success 200 {array} models.IntegrityLog
// @Router /admin/audit/history [get]
func (s *Server) GetAuditHistory(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	logs, err := s.integrityLogRepo.Recent(c.Context(), p.Limit)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(logs)
}

// GetSubmissionLog handles GET /api/admin/submissions
// @Summary Recent submission log entries
// @Tags admin
// @Produce json
// @Param requester query string false "Filter by requester email"
// @Param limit query int false "Max rows" default(50)
// @Success 200 {array} models.SubmissionLog
// @Router /admin/submissions [get]
func (s *Server) GetSubmissionLog(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	var (
		logs []models.SubmissionLog
		err  error
	)
	if requester := strings.ToLower(strings.TrimSpace(c.Query("requester"))); requester != "" {
		logs, err = s.submissionLogRepo.ByRequester(c.Context(), requester, p.Limit)
	} else {
		logs, err = s.submissionLogRepo.Recent(c.Context(), p.Limit)
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(logs)
}
