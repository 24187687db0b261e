package server

import (
	"errors"
	"log/slog"
	"strings"

	"marquee/internal/cache"
	"marquee/internal/ledger"
	"marquee/internal/middleware"
	"marquee/internal/models"
	"marquee/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// CreateSubmissionRequest is the API request model for submissions. Removals
// and additions are display labels in the order the requester listed them.
type CreateSubmissionRequest struct {
	RequesterName string   `json:"requester_name"`
	RequesterID   string   `json:"requester_id"`
	Remove        []string `json:"remove"`
	Add           []string `json:"add"`
	Subscribe     bool     `json:"subscribe"`
}

// CreateSubmission handles POST /api/submissions
// @Summary Process a poster request submission
// @Description Apply a requester's removals and additions as one atomic pass over the ledger.
// @Tags submissions
// @Accept json
// @Produce json
// @Param submission body CreateSubmissionRequest true "Submission"
// @Success 200 {object} ledger.SubmissionResult
// @Failure 422 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /submissions [post]
func (s *Server) CreateSubmission(c *fiber.Ctx) error {
	var req CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	c.Locals("requesterID", strings.ToLower(strings.TrimSpace(req.RequesterID)))

	_, span := observability.GetTraceLayer().TraceEngineOperation(c.UserContext(), "submit")
	result, err := s.engine.Submit(c.Context(), ledger.SubmissionInput{
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		RemoveLabels:  req.Remove,
		AddLabels:     req.Add,
	})
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		var appErr *models.AppError
		switch {
		case errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR":
			observability.SubmissionsTotal.WithLabelValues("rejected").Inc()
			return models.RespondWithError(c, fiber.StatusUnprocessableEntity, appErr)
		case errors.Is(err, ledger.ErrLockTimeout):
			observability.SubmissionsTotal.WithLabelValues("lock_timeout").Inc()
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				&models.AppError{Code: "LOCK_TIMEOUT", Message: "Ledger is busy, please retry"})
		default:
			observability.SubmissionsTotal.WithLabelValues("error").Inc()
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}

	s.recordSubmission(c, &req, result)
	observability.SubmissionsTotal.WithLabelValues("processed").Inc()
	observability.RecordsCreatedTotal.Add(float64(len(result.AddedAccepted)))
	for _, denied := range result.DeniedAdds {
		observability.DeniedAddsTotal.WithLabelValues(string(denied.Reason)).Inc()
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// recordSubmission persists the submission log row, refreshes the roster, and
// drops stale cache entries. All of it is best-effort: the ledger mutation has
// already happened and must be reported back regardless.
func (s *Server) recordSubmission(c *fiber.Ctx, req *CreateSubmissionRequest, result *ledger.SubmissionResult) {
	ctx := c.Context()

	entry := &models.SubmissionLog{
		SubmittedAt:    nowUTC(),
		RequesterID:    result.RequesterID,
		RequesterName:  result.RequesterName,
		AddRaw:         strings.Join(req.Add, "; "),
		RemoveRaw:      strings.Join(req.Remove, "; "),
		SlotsBefore:    result.SlotsBefore,
		SlotsAfter:     result.SlotsAfter,
		AddedAccepted:  strings.Join(result.AddedAccepted, "; "),
		RemovedApplied: strings.Join(result.RemovedApplied, "; "),
		DeniedAdds:     formatDeniedAdds(result.DeniedAdds),
	}
	if err := s.submissionLogRepo.Create(ctx, entry); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to write submission log",
			slog.String("requester_id", result.RequesterID),
			slog.String("error", err.Error()),
		)
	}

	if req.Subscribe {
		if err := s.subscriberRepo.Upsert(ctx, result.RequesterID, result.RequesterName); err != nil {
			middleware.Logger.ErrorContext(c.UserContext(), "failed to upsert subscriber",
				slog.String("requester_id", result.RequesterID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(result.AddedAccepted) > 0 || len(result.RemovedApplied) > 0 {
		cache.InvalidateBoard(ctx)
		cache.InvalidateRequester(ctx, result.RequesterID)
	}
}

func formatDeniedAdds(denied []ledger.DeniedAdd) string {
	parts := make([]string, 0, len(denied))
	for _, d := range denied {
		parts = append(parts, d.Label+" ("+string(d.Reason)+")")
	}
	return strings.Join(parts, "; ")
}

// CreateSubscriberRequest is the API request model for roster signups.
type CreateSubscriberRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CreateSubscriber handles POST /api/subscribers
// @Summary Join the notification roster
// @Tags subscribers
// @Accept json
// @Produce json
// @Param subscriber body CreateSubscriberRequest true "Subscriber"
// @Success 201 {object} fiber.Map
// @Failure 422 {object} models.ErrorResponse
// @Router /subscribers [post]
func (s *Server) CreateSubscriber(c *fiber.Ctx) error {
	var req CreateSubscriberRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("email and name are required"))
	}

	if err := s.subscriberRepo.Upsert(c.Context(), email, name); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"email": email, "active": true})
}

// DeactivateSubscriber handles DELETE /api/admin/subscribers/:email
// @Summary Deactivate a roster entry
// @Tags admin
// @Produce json
// @Param email path string true "Subscriber email"
// @Success 200 {object} fiber.Map
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/subscribers/{email} [delete]
func (s *Server) DeactivateSubscriber(c *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(c.Params("email")))
	if email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("email is required"))
	}

	if err := s.subscriberRepo.Deactivate(c.Context(), email); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			return models.RespondWithError(c, fiber.StatusNotFound, appErr)
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"email": email, "active": false})
}
