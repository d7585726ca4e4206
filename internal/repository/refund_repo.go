package repository

import (
	"context"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type RefundRepository interface {
	Create(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.RefundRequest, error)
	FindOpenByPurchase(ctx context.Context, tx *gorm.DB, purchaseID uint) (*models.RefundRequest, error)
	Save(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error
	List(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error)
	ListByUser(ctx context.Context, userID uint) ([]models.RefundRequest, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error {
	return tx.WithContext(ctx).Create(req).Error
}

func (r *refundRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.RefundRequest, error) {
	var req models.RefundRequest
	if err := forUpdate(tx.WithContext(ctx)).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *refundRepository) FindOpenByPurchase(ctx context.Context, tx *gorm.DB, purchaseID uint) (*models.RefundRequest, error) {
	var req models.RefundRequest
	if err := tx.WithContext(ctx).
		Where("purchase_id = ? AND status IN ?", purchaseID,
			[]models.RefundStatus{models.RefundPending, models.RefundProcessing}).
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *refundRepository) Save(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error {
	return tx.WithContext(ctx).Save(req).Error
}

func (r *refundRepository) List(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error) {
	var list []models.RefundRequest
	q := r.db.WithContext(ctx)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *refundRepository) ListByUser(ctx context.Context, userID uint) ([]models.RefundRequest, error) {
	var list []models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
