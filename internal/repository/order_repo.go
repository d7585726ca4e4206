package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Order, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.OrderStatus, paidAt *time.Time) (bool, error)
	CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error
	TransactionExists(ctx context.Context, tx *gorm.DB, provider, providerTxnID string) (bool, error)
	FindApprovedTransaction(ctx context.Context, tx *gorm.DB, orderID uint) (*models.Transaction, error)
	CancelStalePending(ctx context.Context, before time.Time) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the order together with its items.
func (r *orderRepository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.conn(tx).WithContext(ctx).
		Preload("Items.Package").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(tx.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items.Package").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.OrderStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *orderRepository) TransactionExists(ctx context.Context, tx *gorm.DB, provider, providerTxnID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("provider = ? AND provider_txn_id = ?", provider, providerTxnID).
		Count(&count).Error
	return count > 0, err
}

func (r *orderRepository) FindApprovedTransaction(ctx context.Context, tx *gorm.DB, orderID uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.conn(tx).WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.TransactionApproved).
		Order("id DESC").
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *orderRepository) CancelStalePending(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderPending, before).
		Update("status", models.OrderCancelled)
	return res.RowsAffected, res.Error
}
