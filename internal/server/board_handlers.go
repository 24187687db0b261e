package server

import (
	"strings"

	"marquee/internal/cache"
	"marquee/internal/models"
	"marquee/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// BoardEntry is the API response model for one availability board row.
type BoardEntry struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Title          string `json:"title"`
	ReleaseDate    string `json:"release_date"`
	Active         bool   `json:"active"`
	InventoryCount int    `json:"inventory_count"`
	Received       bool   `json:"received"`
	ActiveRequests int    `json:"active_requests"`
}

// RequesterBoard is the API response model for one requester's slot view.
type RequesterBoard struct {
	RequesterID string               `json:"requester_id"`
	SlotsUsed   int                  `json:"slots_used"`
	SlotsMax    int                  `json:"slots_max"`
	Requests    []RequesterBoardItem `json:"requests"`
}

// RequesterBoardItem is one active request on a requester's board.
type RequesterBoardItem struct {
	PosterID    string `json:"poster_id"`
	Label       string `json:"label"`
	RequestedAt string `json:"requested_at"`
}

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

func (s *Server) buildBoard(c *fiber.Ctx) ([]BoardEntry, error) {
	ctx := c.Context()

	labeled, err := s.catalogRepo.ListWithLabels(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledgerRepo.ActiveCountsByPoster(ctx)
	if err != nil {
		return nil, err
	}

	board := make([]BoardEntry, 0, len(labeled))
	for _, p := range labeled {
		board = append(board, BoardEntry{
			ID:             p.ID,
			Label:          p.Label,
			Title:          p.Title,
			ReleaseDate:    p.ReleaseDate.UTC().Format("2006-01-02"),
			Active:         p.Active,
			InventoryCount: p.InventoryCount,
			Received:       p.Received,
			ActiveRequests: counts[p.ID],
		})
	}
	return board, nil
}

// GetBoard handles GET /api/posters
// @Summary Availability board
// @Description List the catalog with display labels and current request counts.
// @Tags posters
// @Produce json
// @Success 200 {array} BoardEntry
// @Router /posters [get]
func (s *Server) GetBoard(c *fiber.Ctx) error {
	var board []BoardEntry
	err := cache.CacheAside(c.Context(), cache.BoardKey(), &board, cache.BoardTTL, func() error {
		var buildErr error
		board, buildErr = s.buildBoard(c)
		return buildErr
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(board)
}

// GetPoster handles GET /api/posters/:id
// @Summary Get one poster
// @Tags posters
// @Produce json
// @Param id path string true "Poster ID"
// @Success 200 {object} BoardEntry
// @Failure 404 {object} models.ErrorResponse
// @Router /posters/{id} [get]
func (s *Server) GetPoster(c *fiber.Ctx) error {
	id, err := s.requirePosterID(c)
	if err != nil {
		return nil
	}

	board, err := s.buildBoard(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	for _, entry := range board {
		if entry.ID == id {
			return c.JSON(entry)
		}
	}
	return models.RespondWithError(c, fiber.StatusNotFound,
		models.NewNotFoundError("poster", id))
}

// GetRequesterBoard handles GET /api/requesters/:email/board
// @Summary Requester slot view
// @Description A requester's active requests and remaining slots.
// @Tags requesters
// @Produce json
// @Param email path string true "Requester email"
// @Success 200 {object} RequesterBoard
// @Failure 422 {object} models.ErrorResponse
// @Router /requesters/{email}/board [get]
func (s *Server) GetRequesterBoard(c *fiber.Ctx) error {
	requesterID, err := validation.NormalizeRequesterID(strings.TrimSpace(c.Params("email")))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}

	var board RequesterBoard
	build := func() error {
		records, err := s.ledgerRepo.ActiveByRequester(c.Context(), requesterID)
		if err != nil {
			return err
		}
		items := make([]RequesterBoardItem, 0, len(records))
		for _, rec := range records {
			items = append(items, RequesterBoardItem{
				PosterID:    rec.PosterID,
				Label:       rec.LabelAtRequest,
				RequestedAt: rec.RequestedAt.UTC().Format(timeFormat),
			})
		}
		board = RequesterBoard{
			RequesterID: requesterID,
			SlotsUsed:   len(items),
			SlotsMax:    s.config.MaxActive,
			Requests:    items,
		}
		return nil
	}

	var buildErr error
	if s.flags.Enabled("requester_board_cache", requesterID) {
		buildErr = cache.CacheAside(c.Context(), cache.RequesterBoardKey(requesterID),
			&board, cache.RequesterBoardTTL, build)
	} else {
		buildErr = build()
	}
	if buildErr != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(buildErr))
	}

	return c.JSON(board)
}
