package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"marquee/internal/ledger"
	"marquee/internal/models"
	"marquee/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PosterWithLabel pairs a catalog entry with its display label. Labels are
// derived, not stored: two active posters sharing a title are told apart by
// a release-date suffix, so labels stay unique without schema support.
type PosterWithLabel struct {
	models.Poster
	Label string `json:"label"`
}

// CatalogRepository resolves and manages the poster catalog.
type CatalogRepository interface {
	ledger.Catalog

	ListWithLabels(ctx context.Context) ([]PosterWithLabel, error)
	GetByID(ctx context.Context, id string) (*models.Poster, error)
	Create(ctx context.Context, poster *models.Poster) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) all(ctx context.Context) ([]models.Poster, error) {
	var posters []models.Poster
	err := r.db.WithContext(ctx).
		Order("release_date ASC, title ASC, id ASC").
		Find(&posters).Error
	return posters, err
}

// labelFor builds the display label for one poster given a count of how many
// posters share each normalized title.
func labelFor(p models.Poster, titleCount map[string]int) string {
	if titleCount[normalizeTitle(p.Title)] > 1 {
		return p.Title + " (" + p.ReleaseDate.Format("2006-01-02") + ")"
	}
	return p.Title
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (r *catalogRepository) ListWithLabels(ctx context.Context) ([]PosterWithLabel, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "ListWithLabels", "posters")
	defer span.End()

	posters, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	titleCount := make(map[string]int, len(posters))
	for _, p := range posters {
		titleCount[normalizeTitle(p.Title)]++
	}
	out := make([]PosterWithLabel, 0, len(posters))
	for _, p := range posters {
		out = append(out, PosterWithLabel{Poster: p, Label: labelFor(p, titleCount)})
	}
	return out, nil
}

func (r *catalogRepository) ResolveLabel(ctx context.Context, label string) (string, bool, error) {
	labeled, err := r.ListWithLabels(ctx)
	if err != nil {
		return "", false, err
	}
	want := strings.ToLower(strings.TrimSpace(label))
	for _, p := range labeled {
		if strings.ToLower(p.Label) == want {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (r *catalogRepository) IsActive(ctx context.Context, posterID string) (bool, error) {
	var p models.Poster
	err := r.db.WithContext(ctx).Select("active").Where("id = ?", posterID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Active, nil
}

func (r *catalogRepository) Snapshot(ctx context.Context, posterID string) (*ledger.PosterSnapshot, error) {
	labeled, err := r.ListWithLabels(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range labeled {
		if p.ID == posterID {
			return &ledger.PosterSnapshot{
				Title:        p.Title,
				ReleaseDate:  p.ReleaseDate,
				CurrentLabel: p.Label,
			}, nil
		}
	}
	return nil, nil
}

func (r *catalogRepository) ActiveIDSet(ctx context.Context) (map[string]struct{}, error) {
	return r.idSet(ctx, true)
}

func (r *catalogRepository) AllIDSet(ctx context.Context) (map[string]struct{}, error) {
	return r.idSet(ctx, false)
}

func (r *catalogRepository) idSet(ctx context.Context, activeOnly bool) (map[string]struct{}, error) {
	q := r.db.WithContext(ctx).Model(&models.Poster{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*models.Poster, error) {
	var p models.Poster
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepository) Create(ctx context.Context, poster *models.Poster) error {
	if poster.ID == "" {
		poster.ID = uuid.NewString()
	}
	if poster.ReleaseDate.IsZero() {
		poster.ReleaseDate = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(poster).Error
}

func (r *catalogRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Poster{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("poster", id)
	}
	return nil
}

func (r *catalogRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Poster{}, "id = ?", id).Error
}
