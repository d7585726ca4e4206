package repository

import (
	"context"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DiscountRepository interface {
	Create(ctx context.Context, code *models.DiscountCode) error
	FindByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	FindByID(ctx context.Context, id uint) (*models.DiscountCode, error)
	List(ctx context.Context) ([]models.DiscountCode, error)
	Deactivate(ctx context.Context, id uint) (bool, error)
	HasRedemption(ctx context.Context, userID, codeID uint) (bool, error)
	RecordRedemption(ctx context.Context, tx *gorm.DB, redemption *models.PromoRedemption) (bool, error)
	IncrementUses(ctx context.Context, tx *gorm.DB, codeID uint) (bool, error)
}

type discountRepository struct {
	db *gorm.DB
}

func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

func (r *discountRepository) Create(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *discountRepository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&dc).Error; err != nil {
		return nil, err
	}
	return &dc, nil
}

func (r *discountRepository) FindByID(ctx context.Context, id uint) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := r.db.WithContext(ctx).First(&dc, id).Error; err != nil {
		return nil, err
	}
	return &dc, nil
}

func (r *discountRepository) List(ctx context.Context) ([]models.DiscountCode, error) {
	var list []models.DiscountCode
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *discountRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *discountRepository) HasRedemption(ctx context.Context, userID, codeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PromoRedemption{}).
		Where("user_id = ? AND discount_code_id = ? AND status = ?", userID, codeID, models.RedemptionApplied).
		Count(&count).Error
	return count > 0, err
}

// RecordRedemption is insert-if-absent; false means the pair already existed.
func (r *discountRepository) RecordRedemption(ctx context.Context, tx *gorm.DB, redemption *models.PromoRedemption) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "discount_code_id"}},
			DoNothing: true,
		}).
		Create(redemption)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *discountRepository) IncrementUses(ctx context.Context, tx *gorm.DB, codeID uint) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", codeID).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
