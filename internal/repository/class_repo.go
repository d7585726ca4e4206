package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type ClassRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, classes []models.Class) error
	FindByID(ctx context.Context, id uint) (*models.Class, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error)
	List(ctx context.Context, from, to time.Time, includeCancelled bool) ([]models.Class, error)
	IncrementCount(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	DecrementCount(ctx context.Context, tx *gorm.DB, id uint, by int) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	CountByDiscipline(ctx context.Context, disciplineID uint) (int64, error)
}

type classRepository struct {
	db *gorm.DB
}

func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) CreateBatch(ctx context.Context, tx *gorm.DB, classes []models.Class) error {
	return tx.WithContext(ctx).Create(&classes).Error
}

func (r *classRepository) FindByID(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).
		Preload("Discipline").
		Preload("ComplementaryDiscipline").
		Preload("Instructor").
		First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByIDForUpdate acquires a row-level lock on the class within the given transaction.
func (r *classRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error) {
	var class models.Class
	if err := forUpdate(tx.WithContext(ctx)).First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepository) List(ctx context.Context, from, to time.Time, includeCancelled bool) ([]models.Class, error) {
	var classes []models.Class
	q := r.db.WithContext(ctx).
		Preload("Discipline").
		Preload("ComplementaryDiscipline").
		Preload("Instructor").
		Where("date_time >= ? AND date_time < ?", from, to)
	if !includeCancelled {
		q = q.Where("is_cancelled = ?", false)
	}
	if err := q.Order("date_time ASC, id ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

// IncrementCount takes one seat if one is left. false means the class is full.
func (r *classRepository) IncrementCount(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Class{}).
		Where("id = ? AND current_count < max_capacity", id).
		Update("current_count", gorm.Expr("current_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *classRepository) DecrementCount(ctx context.Context, tx *gorm.DB, id uint, by int) error {
	return tx.WithContext(ctx).
		Model(&models.Class{}).
		Where("id = ?", id).
		Update("current_count", gorm.Expr("GREATEST(current_count - ?, 0)", by)).Error
}

func (r *classRepository) MarkCancelled(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Class{}).
		Where("id = ? AND is_cancelled = ?", id, false).
		Updates(map[string]any{"is_cancelled": true, "current_count": 0})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *classRepository) CountByDiscipline(ctx context.Context, disciplineID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Class{}).
		Where("discipline_id = ? OR complementary_discipline_id = ?", disciplineID, disciplineID).
		Count(&count).Error
	return count, err
}
