package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const ProviderMidtrans = "midtrans"

type Midtrans struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
	now       func() time.Time
}

func NewMidtrans(cfg config.MidtransConfig) *Midtrans {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	m := &Midtrans{serverKey: cfg.ServerKey, now: time.Now}
	m.snap.New(cfg.ServerKey, env)
	m.core.New(cfg.ServerKey, env)
	return m
}

func (m *Midtrans) Name() string { return ProviderMidtrans }

// Checkout creates a Snap transaction. Midtrans settles in whole rupiah.
func (m *Midtrans) Checkout(ctx context.Context, order *models.Order) (*models.CheckoutSession, error) {
	ref := orderReference(order.ID, m.now().Unix())
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  ref,
			GrossAmt: order.Total.Round(0).IntPart(),
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	}

	resp, merr := m.snap.CreateTransaction(req)
	if merr != nil {
		return nil, fmt.Errorf("snap create transaction: %s", merr.GetMessage())
	}
	return &models.CheckoutSession{
		Provider:    ProviderMidtrans,
		Reference:   ref,
		RedirectURL: resp.RedirectURL,
		Token:       resp.Token,
	}, nil
}

type midtransNotification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	ApprovalCode      string `json:"approval_code"`
	Bank              string `json:"bank"`
	CardType          string `json:"card_type"`
	MaskedCard        string `json:"masked_card"`
}

// signature is SHA512(order_id + status_code + gross_amount + server key).
func (m *Midtrans) signature(n midtransNotification) string {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + m.serverKey))
	return hex.EncodeToString(sum[:])
}

func (m *Midtrans) ParseCallback(r *http.Request) (uint, models.PaymentResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return 0, models.PaymentResult{}, fmt.Errorf("read notification: %w", err)
	}
	var n midtransNotification
	if err := json.Unmarshal(raw, &n); err != nil || n.OrderID == "" || n.TransactionID == "" {
		return 0, models.PaymentResult{}, service.ErrInvalidCallback
	}
	if n.SignatureKey == "" || subtle.ConstantTimeCompare([]byte(m.signature(n)), []byte(n.SignatureKey)) != 1 {
		return 0, models.PaymentResult{}, service.ErrInvalidSignature
	}

	status, ok := midtransStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		return 0, models.PaymentResult{}, ErrIgnored
	}
	orderID, err := parseOrderReference(n.OrderID)
	if err != nil {
		return 0, models.PaymentResult{}, err
	}
	amount, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return 0, models.PaymentResult{}, service.ErrInvalidCallback
	}

	result := models.PaymentResult{
		Provider:            ProviderMidtrans,
		ProviderTxnID:       n.TransactionID + ":" + n.TransactionStatus,
		ProviderReference:   n.TransactionID,
		Status:              status,
		Amount:              amount,
		AuthorizationNumber: n.ApprovalCode,
		CardBrand:           n.Bank,
		Raw:                 raw,
	}
	if len(n.MaskedCard) >= 4 {
		result.CardLastDigits = n.MaskedCard[len(n.MaskedCard)-4:]
	}
	return orderID, result, nil
}

func midtransStatus(status, fraud string) (models.TransactionStatus, bool) {
	switch status {
	case "capture":
		if fraud == "challenge" {
			return models.TransactionPending, true
		}
		return models.TransactionApproved, true
	case "settlement":
		return models.TransactionApproved, true
	case "pending":
		return models.TransactionPending, true
	case "deny", "cancel", "expire", "failure":
		return models.TransactionDenied, true
	}
	return "", false
}

func (m *Midtrans) Refund(ctx context.Context, req RefundRequest) error {
	amount := req.Amount.Round(0).IntPart()
	resp, merr := m.core.RefundTransaction(req.ProviderReference, &coreapi.RefundReq{
		RefundKey: fmt.Sprintf("refund-%d-%d", req.OrderID, amount),
		Amount:    amount,
		Reason:    req.Reason,
	})
	if merr != nil {
		return fmt.Errorf("midtrans refund: %s", merr.GetMessage())
	}

	logrus.WithFields(logrus.Fields{
		"order_id":       req.OrderID,
		"transaction_id": req.ProviderReference,
		"amount":         amount,
		"status_code":    resp.StatusCode,
	}).Info("midtrans refund accepted")
	return nil
}
