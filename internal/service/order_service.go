package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentGateway starts a checkout with an external provider.
type PaymentGateway interface {
	Supports(provider string) bool
	Checkout(ctx context.Context, provider string, order *models.Order) (*models.CheckoutSession, error)
}

type CreateOrderInput struct {
	DiscountCode  string
	PaymentMethod string
}

type OrderResult struct {
	Order    *models.Order
	Checkout *models.CheckoutSession
}

// Pricing is the priced form of a cart.
type Pricing struct {
	Items    []models.OrderItem
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// PriceLines totals cart lines and applies a percentage discount rounded to cents.
func PriceLines(items []models.CartItem, percentage int) Pricing {
	p := Pricing{Subtotal: decimal.Zero, Discount: decimal.Zero}
	for _, it := range items {
		unit := it.Package.Price
		line := unit.Mul(decimal.NewFromInt(int64(it.Quantity)))
		p.Items = append(p.Items, models.OrderItem{
			PackageID:  it.PackageID,
			Quantity:   it.Quantity,
			UnitPrice:  unit,
			TotalPrice: line,
		})
		p.Subtotal = p.Subtotal.Add(line)
	}
	if percentage > 0 {
		p.Discount = p.Subtotal.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Round(2)
	}
	p.Total = p.Subtotal.Sub(p.Discount)
	if p.Total.IsNegative() {
		p.Total = decimal.Zero
	}
	return p
}

// unitFinalPrice spreads the order discount over each unit proportionally.
func unitFinalPrice(unit, subtotal, total decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return unit.Mul(total).Div(subtotal).Round(2)
}

type OrderService interface {
	CreateOrderFromCart(ctx context.Context, actingUserID uint, in CreateOrderInput) (*OrderResult, error)
	ConfirmPayment(ctx context.Context, orderID uint, result models.PaymentResult) (*models.Order, error)
	GetOrder(ctx context.Context, actingUserID, orderID uint) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uint) ([]models.Order, error)
	CancelPendingOrder(ctx context.Context, actingUserID, orderID uint) (*models.Order, error)
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int64, error)
}

type orderService struct {
	tx        repository.Transactor
	carts     repository.CartRepository
	orders    repository.OrderRepository
	discounts repository.DiscountRepository
	validator DiscountService
	ledger    Ledger
	gateway   PaymentGateway
	locker    SessionLocker
	publisher EventPublisher
	now       func() time.Time
}

func NewOrderService(
	tx repository.Transactor,
	carts repository.CartRepository,
	orders repository.OrderRepository,
	discounts repository.DiscountRepository,
	validator DiscountService,
	ledger Ledger,
	gateway PaymentGateway,
	locker SessionLocker,
	publisher EventPublisher,
) OrderService {
	return &orderService{
		tx:        tx,
		carts:     carts,
		orders:    orders,
		discounts: discounts,
		validator: validator,
		ledger:    ledger,
		gateway:   gateway,
		locker:    locker,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *orderService) CreateOrderFromCart(ctx context.Context, actingUserID uint, in CreateOrderInput) (*OrderResult, error) {
	if in.PaymentMethod == "" || in.PaymentMethod == models.ProviderFree ||
		s.gateway == nil || !s.gateway.Supports(in.PaymentMethod) {
		return nil, ErrUnknownProvider
	}
	session := UserSessionKey(actingUserID)

	var order *models.Order
	err := withSessionLock(ctx, s.locker, session, func() error {
		items, err := s.carts.ListBySession(ctx, session)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		packageIDs := make([]uint, 0, len(items))
		for _, it := range items {
			if it.Package == nil || !it.Package.IsActive {
				return ErrPackageUnavailable
			}
			packageIDs = append(packageIDs, it.PackageID)
		}

		var discount *DiscountValidation
		if NormalizeCode(in.DiscountCode) != "" {
			if discount, err = s.validator.Validate(ctx, in.DiscountCode, packageIDs, actingUserID); err != nil {
				return err
			}
		}

		pct := 0
		if discount != nil {
			pct = discount.Percentage
		}
		pricing := PriceLines(items, pct)

		order = &models.Order{
			UserID:        actingUserID,
			Status:        models.OrderPending,
			PaymentMethod: in.PaymentMethod,
			Subtotal:      pricing.Subtotal,
			Discount:      pricing.Discount,
			Total:         pricing.Total,
			Items:         pricing.Items,
		}
		if discount != nil {
			order.DiscountCodeID = &discount.CodeID
			order.DiscountCode = &discount.Code
		}
		if pricing.Total.IsZero() {
			order.PaymentMethod = models.ProviderFree
		}

		return s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
			locked, err := s.carts.LockSession(ctx, tx, session)
			if err != nil {
				return err
			}
			if len(locked) == 0 {
				return ErrEmptyCart
			}
			if err := s.orders.Create(ctx, tx, order); err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			deleted, err := s.carts.DeleteBySession(ctx, tx, session)
			if err != nil {
				return err
			}
			if deleted == 0 {
				return ErrEmptyCart
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  actingUserID,
		"total":    order.Total.StringFixed(2),
		"provider": order.PaymentMethod,
	}).Info("order created")

	if order.Total.IsZero() {
		paid, err := s.ConfirmPayment(ctx, order.ID, models.PaymentResult{
			Provider:      models.ProviderFree,
			ProviderTxnID: fmt.Sprintf("free-%d", order.ID),
			Status:        models.TransactionApproved,
			Amount:        decimal.Zero,
		})
		if err != nil {
			return nil, err
		}
		return &OrderResult{Order: paid}, nil
	}

	checkout, err := s.gateway.Checkout(ctx, in.PaymentMethod, order)
	if err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("checkout failed")
		return nil, Upstream(in.PaymentMethod, err)
	}
	return &OrderResult{Order: order, Checkout: checkout}, nil
}

func (s *orderService) ConfirmPayment(ctx context.Context, orderID uint, result models.PaymentResult) (*models.Order, error) {
	if result.Provider == "" || result.ProviderTxnID == "" {
		return nil, ErrInvalidCallback
	}

	var (
		minted      []uint
		transitions models.OrderStatus
		notPending  bool
		orphaned    *models.Order
	)
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status == models.OrderPaid {
			return nil
		}
		seen, err := s.orders.TransactionExists(ctx, tx, result.Provider, result.ProviderTxnID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		if err := s.orders.CreateTransaction(ctx, tx, transactionFrom(order.ID, result)); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if order.Status != models.OrderPending {
			notPending = true
			// money captured for an order that already closed is handed back
			if result.Status == models.TransactionApproved && result.Provider != models.ProviderFree {
				orphaned = order
			}
			return nil
		}

		switch result.Status {
		case models.TransactionApproved:
			now := s.now()
			ok, err := s.orders.TransitionStatus(ctx, tx, order.ID, models.OrderPending, models.OrderPaid, &now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOrderNotPending
			}
			transitions = models.OrderPaid
			if minted, err = s.mintOrder(ctx, tx, order); err != nil {
				return err
			}
			return s.redeemDiscount(ctx, tx, order)
		case models.TransactionDenied:
			ok, err := s.orders.TransitionStatus(ctx, tx, order.ID, models.OrderPending, models.OrderFailed, nil)
			if err != nil {
				return err
			}
			if ok {
				transitions = models.OrderFailed
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notPending {
		if orphaned != nil {
			s.refundOrphanedCapture(orphaned, result)
		}
		return nil, ErrOrderNotPending
	}

	order, err := s.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"order_id":        orderID,
		"provider":        result.Provider,
		"provider_txn_id": result.ProviderTxnID,
		"txn_status":      result.Status,
		"order_status":    order.Status,
	}
	switch transitions {
	case models.OrderPaid:
		logrus.WithFields(fields).WithField("purchases", len(minted)).Info("order paid")
		publish(s.publisher, EventOrderPaid, OrderEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Status:      string(order.Status),
			Total:       order.Total,
			Provider:    result.Provider,
			PurchaseIDs: minted,
		})
	case models.OrderFailed:
		logrus.WithFields(fields).Warn("payment denied")
		publish(s.publisher, EventOrderFailed, OrderEvent{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Status:   string(order.Status),
			Total:    order.Total,
			Provider: result.Provider,
		})
	default:
		logrus.WithFields(fields).Info("payment callback recorded")
	}
	return order, nil
}

func (s *orderService) mintOrder(ctx context.Context, tx *gorm.DB, order *models.Order) ([]uint, error) {
	var ids []uint
	for _, item := range order.Items {
		final := unitFinalPrice(item.UnitPrice, order.Subtotal, order.Total)
		for i := 0; i < item.Quantity; i++ {
			orderID := order.ID
			p, err := s.ledger.MintPurchase(ctx, tx, MintInput{
				UserID:        order.UserID,
				PackageID:     item.PackageID,
				OrderID:       &orderID,
				FinalPrice:    final,
				OriginalPrice: item.UnitPrice,
			})
			if err != nil {
				return nil, err
			}
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (s *orderService) redeemDiscount(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.DiscountCodeID == nil {
		return nil
	}
	inserted, err := s.discounts.RecordRedemption(ctx, tx, &models.PromoRedemption{
		UserID:         order.UserID,
		DiscountCodeID: *order.DiscountCodeID,
		OrderID:        order.ID,
		Status:         models.RedemptionApplied,
	})
	if err != nil {
		return fmt.Errorf("record redemption: %w", err)
	}
	if !inserted {
		return nil
	}
	ok, err := s.discounts.IncrementUses(ctx, tx, *order.DiscountCodeID)
	if err != nil {
		return err
	}
	if !ok {
		// cap reached concurrently; the order stays paid
		logrus.WithFields(logrus.Fields{
			"order_id":         order.ID,
			"discount_code_id": *order.DiscountCodeID,
		}).Warn("discount code usage limit reached at payment time")
	}
	return nil
}

func (s *orderService) refundOrphanedCapture(order *models.Order, result models.PaymentResult) {
	amount := result.Amount
	if !amount.IsPositive() {
		amount = order.Total
	}
	logrus.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"order_status":    order.Status,
		"provider":        result.Provider,
		"provider_txn_id": result.ProviderTxnID,
		"amount":          amount.StringFixed(2),
	}).Warn("payment approved for closed order; refunding capture")
	publish(s.publisher, EventRefundApproved, RefundApprovedEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		Provider:          result.Provider,
		ProviderReference: result.ProviderReference,
		Amount:            amount,
		Reason:            fmt.Sprintf("payment received after order was %s", strings.ToLower(string(order.Status))),
	})
}

func transactionFrom(orderID uint, r models.PaymentResult) *models.Transaction {
	txn := &models.Transaction{
		OrderID:           orderID,
		Provider:          r.Provider,
		ProviderTxnID:     r.ProviderTxnID,
		ProviderReference: r.ProviderReference,
		Status:            r.Status,
		Amount:            r.Amount,
	}
	if r.AuthorizationNumber != "" {
		txn.AuthorizationNumber = &r.AuthorizationNumber
	}
	if r.CardBrand != "" {
		txn.CardBrand = &r.CardBrand
	}
	if r.CardLastDigits != "" {
		txn.CardLastDigits = &r.CardLastDigits
	}
	if len(r.Raw) > 0 && json.Valid(r.Raw) {
		txn.RawPayload = datatypes.JSON(r.Raw)
	}
	return txn
}

func (s *orderService) GetOrder(ctx context.Context, actingUserID, orderID uint) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != actingUserID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *orderService) CancelPendingOrder(ctx context.Context, actingUserID, orderID uint) (*models.Order, error) {
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.UserID != actingUserID {
			return ErrOrderNotFound
		}
		ok, err := s.orders.TransitionStatus(ctx, tx, order.ID, models.OrderPending, models.OrderCancelled, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"order_id": orderID, "user_id": actingUserID}).Info("order cancelled")
	return s.orders.FindByID(ctx, nil, orderID)
}

func (s *orderService) CancelStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.orders.CancelStalePending(ctx, s.now().Add(-olderThan))
}
