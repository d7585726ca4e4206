// Package payment adapts external payment providers to the order flow.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// ErrIgnored marks a well-formed callback that carries no payment outcome
// (refund notices, test pings). Handlers acknowledge it without side effects.
var ErrIgnored = errors.New("callback ignored")

type RefundRequest struct {
	OrderID           uint
	ProviderReference string
	Amount            decimal.Decimal
	Reason            string
}

type Provider interface {
	Name() string
	Checkout(ctx context.Context, order *models.Order) (*models.CheckoutSession, error)
	// ParseCallback verifies the provider signature and returns the order it
	// refers to together with the outcome.
	ParseCallback(r *http.Request) (uint, models.PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) error
}

// Registry routes by provider name and satisfies service.PaymentGateway.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Supports(provider string) bool {
	_, ok := r.providers[provider]
	return ok
}

func (r *Registry) Get(provider string) (Provider, bool) {
	p, ok := r.providers[provider]
	return p, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Checkout(ctx context.Context, provider string, order *models.Order) (*models.CheckoutSession, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, service.ErrUnknownProvider
	}
	return p.Checkout(ctx, order)
}

const referencePrefix = "STUDIO-"

// orderReference is unique per checkout attempt so a retried order gets a
// fresh provider-side id.
func orderReference(orderID uint, unix int64) string {
	return fmt.Sprintf("%s%d-%d", referencePrefix, orderID, unix)
}

func parseOrderReference(ref string) (uint, error) {
	rest, ok := strings.CutPrefix(ref, referencePrefix)
	if !ok {
		return 0, fmt.Errorf("%w: unknown reference %q", service.ErrInvalidCallback, ref)
	}
	idPart, _, _ := strings.Cut(rest, "-")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: unknown reference %q", service.ErrInvalidCallback, ref)
	}
	return uint(id), nil
}
