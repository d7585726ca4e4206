package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type PurchaseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *models.Purchase) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error)
	FindUsableByUserForUpdate(ctx context.Context, tx *gorm.DB, userID uint, now time.Time) ([]models.Purchase, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Purchase, error)
	Consume(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error)
	Restore(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type purchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *purchaseRepository) Create(ctx context.Context, tx *gorm.DB, p *models.Purchase) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *purchaseRepository) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.conn(tx).WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := forUpdate(tx.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindUsableByUserForUpdate locks every purchase the user could spend right now.
func (r *purchaseRepository) FindUsableByUserForUpdate(ctx context.Context, tx *gorm.DB, userID uint, now time.Time) ([]models.Purchase, error) {
	var list []models.Purchase
	err := forUpdate(tx.WithContext(ctx)).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.PurchaseActive, now).
		Order("expires_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userID uint) ([]models.Purchase, error) {
	var list []models.Purchase
	if err := r.db.WithContext(ctx).
		Preload("Package").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Consume spends count credits in one conditional UPDATE. Both SET
// expressions see the pre-update balance, so the DEPLETED flip and the
// decrement agree. Unlimited purchases only pass the guard.
func (r *purchaseRepository) Consume(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, models.PurchaseActive, now).
		Where("class_count >= ? OR classes_remaining >= ?", models.UnlimitedClasses, count).
		Updates(map[string]any{
			"classes_remaining": gorm.Expr(
				"CASE WHEN class_count >= ? THEN classes_remaining ELSE classes_remaining - ? END",
				models.UnlimitedClasses, count),
			"status": gorm.Expr(
				"CASE WHEN class_count < ? AND classes_remaining - ? = 0 THEN ? ELSE status END",
				models.UnlimitedClasses, count, models.PurchaseDepleted),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Restore gives credits back, capped at the purchased count. Expired purchases
// get the balance but stay EXPIRED; refunded ones are left alone.
func (r *purchaseRepository) Restore(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND class_count < ? AND status IN ?", id, models.UnlimitedClasses,
			[]models.PurchaseStatus{models.PurchaseActive, models.PurchaseDepleted, models.PurchaseExpired}).
		Updates(map[string]any{
			"classes_remaining": gorm.Expr("LEAST(classes_remaining + ?, class_count)", count),
			"status": gorm.Expr(
				"CASE WHEN status = ? AND expires_at > ? THEN ? ELSE status END",
				models.PurchaseDepleted, now, models.PurchaseActive),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *purchaseRepository) MarkRefunded(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status <> ?", id, models.PurchaseRefunded).
		Update("status", models.PurchaseRefunded)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *purchaseRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("status IN ? AND expires_at <= ?",
			[]models.PurchaseStatus{models.PurchaseActive, models.PurchaseDepleted}, now).
		Update("status", models.PurchaseExpired)
	return res.RowsAffected, res.Error
}
