package repository

import (
	"context"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.CartItem, error)
	LockSession(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.CartItem, error)
	AddQuantity(ctx context.Context, tx *gorm.DB, sessionID string, packageID uint, qty int) error
	SetQuantity(ctx context.Context, sessionID string, packageID uint, qty int) (bool, error)
	RemoveItem(ctx context.Context, sessionID string, packageID uint) error
	DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID string) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *cartRepository) ListBySession(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Package").
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) LockSession(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := forUpdate(tx.WithContext(ctx)).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// AddQuantity inserts the line or adds to an existing one for the same package.
func (r *cartRepository) AddQuantity(ctx context.Context, tx *gorm.DB, sessionID string, packageID uint, qty int) error {
	item := models.CartItem{SessionID: sessionID, PackageID: packageID, Quantity: qty}
	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "package_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&item).Error
}

func (r *cartRepository) SetQuantity(ctx context.Context, sessionID string, packageID uint, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("session_id = ? AND package_id = ?", sessionID, packageID).
		Update("quantity", qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, sessionID string, packageID uint) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND package_id = ?", sessionID, packageID).
		Delete(&models.CartItem{}).Error
}

func (r *cartRepository) DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID string) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
