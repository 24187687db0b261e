package repository

import (
	"context"

	"marquee/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriberRepository manages the notification roster. Every accepted
// submission upserts its requester here so the roster stays current without
// a separate signup flow.
type SubscriberRepository interface {
	Upsert(ctx context.Context, email, name string) error
	ListActive(ctx context.Context) ([]models.Subscriber, error)
	Deactivate(ctx context.Context, email string) error
}

type subscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) Upsert(ctx context.Context, email, name string) error {
	sub := models.Subscriber{Email: email, Name: name, Active: true}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active"}),
		}).
		Create(&sub).Error
}

func (r *subscriberRepository) ListActive(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("email ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriberRepository) Deactivate(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("email = ?", email).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("subscriber", email)
	}
	return nil
}
