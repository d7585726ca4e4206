package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	ProviderPayWay = "payway"

	payWayPurchasePath = "/api/payment-gateway/v1/payments/purchase"
	payWayRefundPath   = "/api/payment-gateway/v1/payments/refund"
	payWayTimeLayout   = "20060102150405"
	payWayCurrency     = "USD"
)

// PayWay talks to ABA PayWay's hosted checkout. Every request and pushback
// carries a base64 HMAC-SHA512 over its ordered fields, keyed with the API key.
type PayWay struct {
	cfg    config.PayWayConfig
	client *http.Client
	now    func() time.Time
}

func NewPayWay(cfg config.PayWayConfig) *PayWay {
	return &PayWay{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}
}

func (p *PayWay) Name() string { return ProviderPayWay }

func (p *PayWay) sign(fields ...string) string {
	mac := hmac.New(sha512.New, []byte(p.cfg.APIKey))
	mac.Write([]byte(strings.Join(fields, "")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Checkout needs no server-side call: the browser posts the signed form.
func (p *PayWay) Checkout(ctx context.Context, order *models.Order) (*models.CheckoutSession, error) {
	now := p.now().UTC()
	reqTime := now.Format(payWayTimeLayout)
	tranID := orderReference(order.ID, now.Unix())
	amount := order.Total.StringFixed(2)
	returnURL := base64.StdEncoding.EncodeToString([]byte(p.cfg.CallbackURL))

	fields := map[string]string{
		"req_time":             reqTime,
		"merchant_id":          p.cfg.MerchantID,
		"tran_id":              tranID,
		"amount":               amount,
		"currency":             payWayCurrency,
		"return_url":           returnURL,
		"continue_success_url": p.cfg.ReturnURL,
	}
	fields["hash"] = p.sign(reqTime, p.cfg.MerchantID, tranID, amount, payWayCurrency, returnURL, p.cfg.ReturnURL)

	return &models.CheckoutSession{
		Provider:    ProviderPayWay,
		Reference:   tranID,
		RedirectURL: strings.TrimRight(p.cfg.BaseURL, "/") + payWayPurchasePath,
		Fields:      fields,
	}, nil
}

type payWayPushback struct {
	TranID string `json:"tran_id"`
	APV    string `json:"apv"`
	Status string `json:"status"`
	Amount string `json:"amount"`
	Hash   string `json:"hash"`
}

func (p *PayWay) ParseCallback(r *http.Request) (uint, models.PaymentResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return 0, models.PaymentResult{}, fmt.Errorf("read pushback: %w", err)
	}
	var cb payWayPushback
	if err := json.Unmarshal(raw, &cb); err != nil || cb.TranID == "" || cb.Status == "" {
		return 0, models.PaymentResult{}, service.ErrInvalidCallback
	}

	want := p.sign(cb.TranID, cb.APV, cb.Status, cb.Amount)
	if !hmac.Equal([]byte(want), []byte(cb.Hash)) {
		return 0, models.PaymentResult{}, service.ErrInvalidSignature
	}

	orderID, err := parseOrderReference(cb.TranID)
	if err != nil {
		return 0, models.PaymentResult{}, err
	}

	amount := decimal.Zero
	if cb.Amount != "" {
		if amount, err = decimal.NewFromString(cb.Amount); err != nil {
			return 0, models.PaymentResult{}, service.ErrInvalidCallback
		}
	}

	return orderID, models.PaymentResult{
		Provider:            ProviderPayWay,
		ProviderTxnID:       cb.TranID + ":" + cb.Status,
		ProviderReference:   cb.TranID,
		Status:              payWayStatus(cb.Status),
		Amount:              amount,
		AuthorizationNumber: cb.APV,
		Raw:                 raw,
	}, nil
}

func payWayStatus(code string) models.TransactionStatus {
	switch code {
	case "0", "00":
		return models.TransactionApproved
	case "2":
		return models.TransactionPending
	default:
		return models.TransactionDenied
	}
}

type payWayRefundResponse struct {
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

func (p *PayWay) Refund(ctx context.Context, req RefundRequest) error {
	reqTime := p.now().UTC().Format(payWayTimeLayout)
	amount := req.Amount.StringFixed(2)
	body, err := json.Marshal(map[string]string{
		"req_time":    reqTime,
		"merchant_id": p.cfg.MerchantID,
		"tran_id":     req.ProviderReference,
		"amount":      amount,
		"hash":        p.sign(reqTime, p.cfg.MerchantID, req.ProviderReference, amount),
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+payWayRefundPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payway refund: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("payway refund: unexpected status %d", resp.StatusCode)
	}
	var out payWayRefundResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("payway refund: decode response: %w", err)
	}
	if out.Status.Code != "00" {
		return fmt.Errorf("payway refund rejected: %s %s", out.Status.Code, out.Status.Message)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"tran_id":  req.ProviderReference,
		"amount":   amount,
	}).Info("payway refund accepted")
	return nil
}
