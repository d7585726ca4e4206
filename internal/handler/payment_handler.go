package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/payment"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/Eursukkul/studio-ledger/pkg/idempotency"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ProviderLookup interface {
	Get(name string) (payment.Provider, bool)
}

// ReceiptJournal remembers the response sent for each processed callback.
type ReceiptJournal interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) ([]byte, bool, error)
}

type PaymentHandler struct {
	orders    service.OrderService
	providers ProviderLookup
	journal   ReceiptJournal
}

func NewPaymentHandler(orders service.OrderService, providers ProviderLookup, journal ReceiptJournal) *PaymentHandler {
	return &PaymentHandler{orders: orders, providers: providers, journal: journal}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/:provider/confirm", h.Confirm)
}

// Confirm is the provider webhook. The signature is the only credential;
// replays are answered from the journal with the original snapshot.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	name := c.Param("provider")
	provider, ok := h.providers.Get(name)
	if !ok {
		return toHTTPError(service.ErrUnknownProvider)
	}

	orderID, result, err := provider.ParseCallback(c.Request())
	if err != nil {
		if errors.Is(err, payment.ErrIgnored) {
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}
		logrus.WithError(err).WithField("provider", name).Warn("rejected payment callback")
		return toHTTPError(err)
	}

	log := logrus.WithFields(logrus.Fields{
		"provider": name,
		"order_id": orderID,
		"txn_id":   result.ProviderTxnID,
		"status":   result.Status,
	})
	key := name + ":" + result.ProviderTxnID
	if snapshot, err := h.journal.Get(key); err == nil {
		log.Info("payment callback replayed")
		return c.JSONBlob(http.StatusOK, snapshot)
	} else if !errors.Is(err, idempotency.ErrNotFound) {
		log.WithError(err).Warn("receipt journal unavailable")
	}

	order, err := h.orders.ConfirmPayment(c.Request().Context(), orderID, result)
	if err != nil {
		log.WithError(err).Warn("payment callback not applied")
		return toHTTPError(err)
	}

	body, err := json.Marshal(dto.ToOrderResponse(order))
	if err != nil {
		return toHTTPError(err)
	}
	stored, _, err := h.journal.Put(key, body)
	if err != nil {
		// the database already deduplicates on (provider, txn id)
		log.WithError(err).Warn("failed to record payment receipt")
		stored = body
	}
	log.WithField("order_status", order.Status).Info("payment callback applied")
	return c.JSONBlob(http.StatusOK, stored)
}
