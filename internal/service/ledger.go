package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MintInput struct {
	UserID        uint
	PackageID     uint
	OrderID       *uint
	FinalPrice    decimal.Decimal
	OriginalPrice decimal.Decimal
}

// Ledger owns every balance mutation on a Purchase. The tx-taking methods
// must run inside the caller's transaction.
type Ledger interface {
	MintPurchase(ctx context.Context, tx *gorm.DB, in MintInput) (*models.Purchase, error)
	ConsumeClass(ctx context.Context, tx *gorm.DB, purchaseID uint, count int) (*models.Purchase, error)
	RestoreClass(ctx context.Context, tx *gorm.DB, purchaseID uint, count int) (*models.Purchase, error)
	ListPurchases(ctx context.Context, userID uint) ([]models.Purchase, error)
	ExpirePurchases(ctx context.Context) (int64, error)
}

type ledger struct {
	purchases repository.PurchaseRepository
	packages  repository.PackageRepository
	now       func() time.Time
}

func NewLedger(purchases repository.PurchaseRepository, packages repository.PackageRepository) Ledger {
	return &ledger{purchases: purchases, packages: packages, now: time.Now}
}

func (l *ledger) MintPurchase(ctx context.Context, tx *gorm.DB, in MintInput) (*models.Purchase, error) {
	pkg, err := l.packages.FindByID(ctx, in.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}

	now := l.now()
	p := &models.Purchase{
		UserID:           in.UserID,
		PackageID:        pkg.ID,
		OrderID:          in.OrderID,
		ClassCount:       pkg.ClassCount,
		ClassesRemaining: pkg.ClassCount,
		IsShareable:      pkg.IsShareable,
		MaxShares:        pkg.MaxShares,
		ExpiresAt:        now.AddDate(0, 0, pkg.ValidityDays),
		OriginalPrice:    in.OriginalPrice,
		FinalPrice:       in.FinalPrice,
		Status:           models.PurchaseActive,
		CreatedAt:        now,
	}
	if err := l.purchases.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("mint purchase: %w", err)
	}
	return p, nil
}

func (l *ledger) ConsumeClass(ctx context.Context, tx *gorm.DB, purchaseID uint, count int) (*models.Purchase, error) {
	if count < 1 {
		return nil, invalid("class count must be positive")
	}
	now := l.now()
	ok, err := l.purchases.Consume(ctx, tx, purchaseID, count, now)
	if err != nil {
		return nil, fmt.Errorf("consume class: %w", err)
	}

	p, err := l.purchases.FindByID(ctx, tx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if ok {
		return p, nil
	}
	return nil, diagnoseConsume(p, now)
}

// diagnoseConsume explains why the conditional update matched no row.
func diagnoseConsume(p *models.Purchase, now time.Time) error {
	switch {
	case p.Status == models.PurchaseExpired || p.IsExpired(now):
		return ErrPurchaseExpired
	case p.Status == models.PurchaseDepleted:
		return ErrInsufficientBalance
	case p.Status != models.PurchaseActive:
		return ErrPurchaseNotActive
	default:
		return ErrInsufficientBalance
	}
}

func (l *ledger) RestoreClass(ctx context.Context, tx *gorm.DB, purchaseID uint, count int) (*models.Purchase, error) {
	if count < 1 {
		return nil, invalid("class count must be positive")
	}
	ok, err := l.purchases.Restore(ctx, tx, purchaseID, count, l.now())
	if err != nil {
		return nil, fmt.Errorf("restore class: %w", err)
	}
	p, err := l.purchases.FindByID(ctx, tx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if !ok && !p.IsUnlimited() {
		logrus.WithFields(logrus.Fields{
			"purchase_id": purchaseID,
			"status":      p.Status,
		}).Info("credits not restored to inactive purchase")
	}
	return p, nil
}

func (l *ledger) ListPurchases(ctx context.Context, userID uint) ([]models.Purchase, error) {
	return l.purchases.ListByUser(ctx, userID)
}

func (l *ledger) ExpirePurchases(ctx context.Context) (int64, error) {
	return l.purchases.ExpireDue(ctx, l.now())
}

// SelectBestPurchase picks the spendable purchase that expires soonest, so
// credits about to lapse are used first. It does not mutate its input.
func SelectBestPurchase(purchases []models.Purchase, needed int, now time.Time) *models.Purchase {
	candidates := make([]models.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if p.HasBalance(needed, now) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExpiresAt.Equal(candidates[j].ExpiresAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})
	best := candidates[0]
	return &best
}
