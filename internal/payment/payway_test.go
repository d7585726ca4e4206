package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestPayWay(baseURL string) *PayWay {
	p := NewPayWay(config.PayWayConfig{
		BaseURL:     baseURL,
		MerchantID:  "studio",
		APIKey:      "secret-key",
		ReturnURL:   "https://studio.test/thanks",
		CallbackURL: "https://api.studio.test/payments/payway/confirm",
	})
	p.now = func() time.Time { return fixedNow }
	return p
}

func pushback(t *testing.T, p *PayWay, tranID, apv, status, amount string) *http.Request {
	t.Helper()
	body, err := json.Marshal(payWayPushback{
		TranID: tranID,
		APV:    apv,
		Status: status,
		Amount: amount,
		Hash:   p.sign(tranID, apv, status, amount),
	})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/payments/payway/confirm", strings.NewReader(string(body)))
}

func TestPayWay_CheckoutSignsForm(t *testing.T) {
	p := newTestPayWay("https://checkout.test/")
	order := &models.Order{ID: 42, Total: decimal.RequireFromString("90")}

	session, err := p.Checkout(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test"+payWayPurchasePath, session.RedirectURL)
	assert.Equal(t, "STUDIO-42-1772442000", session.Reference)
	f := session.Fields
	assert.Equal(t, "90.00", f["amount"])
	assert.Equal(t, "20260302090000", f["req_time"])
	callback, err := base64.StdEncoding.DecodeString(f["return_url"])
	require.NoError(t, err)
	assert.Equal(t, "https://api.studio.test/payments/payway/confirm", string(callback))
	assert.Equal(t, p.sign(f["req_time"], "studio", f["tran_id"], "90.00", "USD", f["return_url"], f["continue_success_url"]), f["hash"])
}

func TestPayWay_ParseCallback(t *testing.T) {
	p := newTestPayWay("https://checkout.test")

	orderID, result, err := p.ParseCallback(pushback(t, p, "STUDIO-42-1772442000", "A1B2", "0", "90.00"))

	require.NoError(t, err)
	assert.Equal(t, uint(42), orderID)
	assert.Equal(t, models.TransactionApproved, result.Status)
	assert.Equal(t, "STUDIO-42-1772442000:0", result.ProviderTxnID)
	assert.Equal(t, "STUDIO-42-1772442000", result.ProviderReference)
	assert.Equal(t, "A1B2", result.AuthorizationNumber)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(90)))
	assert.NotEmpty(t, result.Raw)
}

func TestPayWay_ParseCallbackRejects(t *testing.T) {
	p := newTestPayWay("https://checkout.test")

	t.Run("tampered amount", func(t *testing.T) {
		req := pushback(t, p, "STUDIO-42-1", "", "0", "90.00")
		body := strings.Replace(readAll(t, req), `"90.00"`, `"1.00"`, 1)
		_, _, err := p.ParseCallback(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		assert.ErrorIs(t, err, service.ErrInvalidSignature)
	})
	t.Run("not json", func(t *testing.T) {
		_, _, err := p.ParseCallback(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tran_id=1")))
		assert.ErrorIs(t, err, service.ErrInvalidCallback)
	})
	t.Run("foreign reference", func(t *testing.T) {
		_, _, err := p.ParseCallback(pushback(t, p, "SHOP-42", "", "0", "90.00"))
		assert.ErrorIs(t, err, service.ErrInvalidCallback)
	})
}

func TestPayWayStatus(t *testing.T) {
	assert.Equal(t, models.TransactionApproved, payWayStatus("0"))
	assert.Equal(t, models.TransactionPending, payWayStatus("2"))
	assert.Equal(t, models.TransactionDenied, payWayStatus("3"))
}

func TestPayWay_Refund(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, payWayRefundPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":{"code":"00","message":"Success"}}`))
	}))
	defer srv.Close()
	p := newTestPayWay(srv.URL)

	err := p.Refund(context.Background(), RefundRequest{OrderID: 42, ProviderReference: "STUDIO-42-1", Amount: decimal.RequireFromString("60")})

	require.NoError(t, err)
	assert.Equal(t, "60.00", got["amount"])
	assert.Equal(t, "STUDIO-42-1", got["tran_id"])
	assert.Equal(t, p.sign(got["req_time"], "studio", "STUDIO-42-1", "60.00"), got["hash"])
}

func TestPayWay_RefundRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"code":"11","message":"Already refunded"}}`))
	}))
	defer srv.Close()

	err := newTestPayWay(srv.URL).Refund(context.Background(), RefundRequest{ProviderReference: "STUDIO-1-1", Amount: decimal.NewFromInt(1)})
	assert.ErrorContains(t, err, "Already refunded")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(newTestPayWay("https://checkout.test"), NewMidtrans(config.MidtransConfig{ServerKey: "k"}))

	assert.True(t, r.Supports(ProviderPayWay))
	assert.True(t, r.Supports(ProviderMidtrans))
	assert.False(t, r.Supports(models.ProviderFree))
	assert.Equal(t, []string{"midtrans", "payway"}, r.Names())

	_, err := r.Checkout(context.Background(), "stripe", &models.Order{ID: 1})
	assert.ErrorIs(t, err, service.ErrUnknownProvider)
}

func TestParseOrderReference(t *testing.T) {
	id, err := parseOrderReference("STUDIO-7-1700000000")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	for _, bad := range []string{"", "STUDIO-", "STUDIO-x-1", "STUDIO-0-1", "ORDER-7"} {
		_, err := parseOrderReference(bad)
		assert.ErrorIs(t, err, service.ErrInvalidCallback, bad)
	}
}

func readAll(t *testing.T, r *http.Request) string {
	t.Helper()
	var sb strings.Builder
	_, err := io.Copy(&sb, r.Body)
	require.NoError(t, err)
	return sb.String()
}
