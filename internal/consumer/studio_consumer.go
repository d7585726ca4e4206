package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/payment"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/Eursukkul/studio-ledger/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	KeyUserUpserted = "user.upserted"
)

// RoutingKeys is what the side-effect queue binds to.
var RoutingKeys = []string{
	KeyUserUpserted,
	service.EventRefundApproved,
	service.EventGuestInvited,
	"reservation.*",
	service.EventClassCancelled,
	"order.*",
}

// errPoison marks messages that will never succeed; they are dropped, not requeued.
var errPoison = errors.New("poison message")

type ProviderLookup interface {
	Get(provider string) (payment.Provider, bool)
}

type UserEvent struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	QRToken string `json:"qr_token"`
	Role    string `json:"role"`
}

type StudioConsumer struct {
	users     repository.UserRepository
	providers ProviderLookup
	notifier  Notifier
}

func NewStudioConsumer(users repository.UserRepository, providers ProviderLookup, notifier Notifier) *StudioConsumer {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &StudioConsumer{users: users, providers: providers, notifier: notifier}
}

// Start processes deliveries until the channel closes or ctx is done.
func (sc *StudioConsumer) Start(ctx context.Context, msgs <-chan amqp.Delivery) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logrus.Info("delivery channel closed, stopping consumer")
					return
				}
				sc.handleMessage(ctx, msg)
			}
		}
	}()
}

func (sc *StudioConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	log := logrus.WithFields(logrus.Fields{
		"routing_key": msg.RoutingKey,
		"redelivered": msg.Redelivered,
	})

	err := sc.Dispatch(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		msg.Ack(false)
	case errors.Is(err, errPoison):
		log.WithError(err).Error("dropping message")
		msg.Nack(false, false)
	default:
		// one retry through the broker, then drop
		log.WithError(err).Warn("message handling failed")
		msg.Nack(false, !msg.Redelivered)
	}
}

// Dispatch routes one message body by routing key.
func (sc *StudioConsumer) Dispatch(ctx context.Context, routingKey string, body []byte) error {
	switch {
	case routingKey == KeyUserUpserted:
		return sc.upsertUser(ctx, body)
	case routingKey == service.EventRefundApproved:
		return sc.refund(ctx, body)
	case routingKey == service.EventGuestInvited,
		routingKey == service.EventClassCancelled,
		strings.HasPrefix(routingKey, "reservation."),
		strings.HasPrefix(routingKey, "order."):
		return sc.notifier.Notify(ctx, routingKey, body)
	}
	logrus.WithField("routing_key", routingKey).Debug("no handler for routing key")
	return nil
}

func (sc *StudioConsumer) upsertUser(ctx context.Context, body []byte) error {
	var ev UserEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if ev.ID == 0 || ev.QRToken == "" {
		return fmt.Errorf("%w: user event without id or qr token", errPoison)
	}
	role := ev.Role
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	if err := sc.users.Upsert(ctx, &models.User{
		ID:      ev.ID,
		Name:    ev.Name,
		Email:   ev.Email,
		QRToken: ev.QRToken,
		Role:    role,
	}); err != nil {
		return fmt.Errorf("upsert user %d: %w", ev.ID, err)
	}
	logrus.WithField("user_id", ev.ID).Info("user synced")
	return nil
}

func (sc *StudioConsumer) refund(ctx context.Context, body []byte) error {
	var ev service.RefundApprovedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	provider, ok := sc.providers.Get(ev.Provider)
	if !ok {
		return fmt.Errorf("%w: no provider %q for refund %d", errPoison, ev.Provider, ev.RefundID)
	}
	if err := provider.Refund(ctx, payment.RefundRequest{
		OrderID:           ev.OrderID,
		ProviderReference: ev.ProviderReference,
		Amount:            ev.Amount,
		Reason:            ev.Reason,
	}); err != nil {
		return fmt.Errorf("refund %d via %s: %w", ev.RefundID, ev.Provider, err)
	}
	logrus.WithFields(logrus.Fields{
		"refund_id": ev.RefundID,
		"order_id":  ev.OrderID,
		"provider":  ev.Provider,
		"amount":    ev.Amount.String(),
	}).Info("provider refund issued")
	return nil
}
