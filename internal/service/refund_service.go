package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RefundPolicy struct {
	WindowDays   int  `json:"windowDays"`
	AllowPartial bool `json:"allowPartial"`
}

// RefundSnapshot is persisted with the request so later policy edits do not
// change how it was assessed.
type RefundSnapshot struct {
	Policy            RefundPolicy    `json:"policy"`
	AssessedAt        time.Time       `json:"assessedAt"`
	DaysSincePurchase int             `json:"daysSincePurchase"`
	ClassCount        int             `json:"classCount"`
	ClassesRemaining  int             `json:"classesRemaining"`
	PricePaid         decimal.Decimal `json:"pricePaid"`
	Reason            string          `json:"reason,omitempty"`
}

type RefundAssessment struct {
	Eligible bool
	Amount   decimal.Decimal
	Snapshot RefundSnapshot
}

// AssessRefund decides eligibility and the suggested amount. Counted packages
// are prorated by unused classes; unlimited ones by unused validity.
func AssessRefund(p *models.Purchase, policy RefundPolicy, now time.Time) RefundAssessment {
	days := int(now.Sub(p.CreatedAt).Hours() / 24)
	snap := RefundSnapshot{
		Policy:            policy,
		AssessedAt:        now,
		DaysSincePurchase: days,
		ClassCount:        p.ClassCount,
		ClassesRemaining:  p.ClassesRemaining,
		PricePaid:         p.FinalPrice,
	}
	out := RefundAssessment{Amount: decimal.Zero, Snapshot: snap}

	if now.After(p.CreatedAt.AddDate(0, 0, policy.WindowDays)) {
		snap.Reason = "outside refund window"
		out.Snapshot = snap
		return out
	}

	fraction := decimal.Zero
	if p.IsUnlimited() {
		total := p.ExpiresAt.Sub(p.CreatedAt)
		left := p.ExpiresAt.Sub(now)
		switch {
		case total <= 0 || left <= 0:
		case total-left < 24*time.Hour:
			// same-day refunds of unlimited passes count as unused
			fraction = decimal.NewFromInt(1)
		default:
			fraction = decimal.NewFromFloat(left.Hours()).Div(decimal.NewFromFloat(total.Hours()))
		}
	} else if p.ClassCount > 0 {
		fraction = decimal.NewFromInt(int64(p.ClassesRemaining)).Div(decimal.NewFromInt(int64(p.ClassCount)))
	}
	used := fraction.LessThan(decimal.NewFromInt(1))

	if used && !policy.AllowPartial {
		snap.Reason = "package partially used"
		out.Snapshot = snap
		return out
	}

	out.Eligible = true
	out.Amount = p.FinalPrice.Mul(fraction).Round(2)
	out.Snapshot = snap
	return out
}

type RefundAction string

const (
	RefundActionApprove    RefundAction = "approve"
	RefundActionReject     RefundAction = "reject"
	RefundActionProcessing RefundAction = "processing"
)

func (a RefundAction) target() (models.RefundStatus, bool) {
	switch a {
	case RefundActionApprove:
		return models.RefundRefunded, true
	case RefundActionReject:
		return models.RefundRejected, true
	case RefundActionProcessing:
		return models.RefundProcessing, true
	}
	return "", false
}

type AdjudicateInput struct {
	RefundID     uint
	Action       RefundAction
	Notes        string
	CustomAmount *decimal.Decimal
}

type RefundService interface {
	RequestRefund(ctx context.Context, userID, purchaseID uint, reason string) (*models.RefundRequest, error)
	Adjudicate(ctx context.Context, adminID uint, in AdjudicateInput) (*models.RefundRequest, error)
	ListRefunds(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error)
	ListUserRefunds(ctx context.Context, userID uint) ([]models.RefundRequest, error)
}

type refundService struct {
	tx        repository.Transactor
	refunds   repository.RefundRepository
	purchases repository.PurchaseRepository
	orders    repository.OrderRepository
	settings  SettingsService
	publisher EventPublisher
	now       func() time.Time
}

func NewRefundService(
	tx repository.Transactor,
	refunds repository.RefundRepository,
	purchases repository.PurchaseRepository,
	orders repository.OrderRepository,
	settings SettingsService,
	publisher EventPublisher,
) RefundService {
	return &refundService{
		tx:        tx,
		refunds:   refunds,
		purchases: purchases,
		orders:    orders,
		settings:  settings,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *refundService) RequestRefund(ctx context.Context, userID, purchaseID uint, reason string) (*models.RefundRequest, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	policy := settings.RefundPolicy()

	var req *models.RefundRequest
	err = s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		p, err := s.purchases.FindByIDForUpdate(ctx, tx, purchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if p.UserID != userID {
			return ErrPurchaseNotFound
		}
		if p.Status == models.PurchaseRefunded {
			return ErrPurchaseAlreadyRefunded
		}

		_, err = s.refunds.FindOpenByPurchase(ctx, tx, p.ID)
		if err == nil {
			return ErrRefundAlreadyRequested
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		assessment := AssessRefund(p, policy, s.now())
		snapshot, err := json.Marshal(assessment.Snapshot)
		if err != nil {
			return fmt.Errorf("encode refund snapshot: %w", err)
		}
		req = &models.RefundRequest{
			UserID:         userID,
			PurchaseID:     p.ID,
			Amount:         assessment.Amount,
			Eligible:       assessment.Eligible,
			Status:         models.RefundPending,
			Reason:         reason,
			PolicySnapshot: datatypes.JSON(snapshot),
		}
		if err := s.refunds.Create(ctx, tx, req); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrRefundAlreadyRequested
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"refund_id":   req.ID,
		"purchase_id": purchaseID,
		"user_id":     userID,
		"eligible":    req.Eligible,
		"amount":      req.Amount.StringFixed(2),
	}).Info("refund requested")
	return req, nil
}

func (s *refundService) Adjudicate(ctx context.Context, adminID uint, in AdjudicateInput) (*models.RefundRequest, error) {
	target, ok := in.Action.target()
	if !ok {
		return nil, ErrInvalidRefundAction
	}

	var (
		req     *models.RefundRequest
		orderID *uint
		txn     *models.Transaction
	)
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		req, err = s.refunds.FindByIDForUpdate(ctx, tx, in.RefundID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefundNotFound
			}
			return err
		}
		if req.Status.IsTerminal() {
			return ErrAlreadyFinalized
		}
		if !req.Status.CanTransitionTo(target) {
			return ErrInvalidTransition
		}

		now := s.now()
		req.Status = target
		req.AdjudicatedBy = &adminID
		if in.Notes != "" {
			req.Notes = in.Notes
		}

		if target == models.RefundRefunded {
			p, err := s.purchases.FindByIDForUpdate(ctx, tx, req.PurchaseID)
			if err != nil {
				return err
			}
			amount := req.Amount
			if in.CustomAmount != nil {
				amount = *in.CustomAmount
			}
			if amount.IsNegative() || amount.GreaterThan(p.FinalPrice) {
				return ErrInvalidRefundAmount
			}
			marked, err := s.purchases.MarkRefunded(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if !marked {
				return ErrPurchaseAlreadyRefunded
			}
			req.RefundedAmount = decimal.NewNullDecimal(amount.Round(2))
			req.RefundedAt = &now

			orderID = p.OrderID
			if orderID != nil {
				txn, err = s.orders.FindApprovedTransaction(ctx, tx, *orderID)
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}
		}
		return s.refunds.Save(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"refund_id": req.ID,
		"status":    req.Status,
		"admin_id":  adminID,
	}).Info("refund adjudicated")

	if req.Status == models.RefundRefunded {
		switch {
		case txn == nil:
			logrus.WithField("refund_id", req.ID).Warn("no provider transaction for refund; settle offline")
		case txn.Provider == models.ProviderFree:
		default:
			publish(s.publisher, EventRefundApproved, RefundApprovedEvent{
				RefundID:          req.ID,
				PurchaseID:        req.PurchaseID,
				OrderID:           *orderID,
				UserID:            req.UserID,
				Provider:          txn.Provider,
				ProviderReference: txn.ProviderReference,
				Amount:            req.RefundedAmount.Decimal,
				Reason:            req.Reason,
			})
		}
	}
	return req, nil
}

func (s *refundService) ListRefunds(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error) {
	return s.refunds.List(ctx, status)
}

func (s *refundService) ListUserRefunds(ctx context.Context, userID uint) ([]models.RefundRequest, error) {
	return s.refunds.ListByUser(ctx, userID)
}
