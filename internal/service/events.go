package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Routing keys on the studio topic exchange.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventGuestInvited         = "guest.invited"
	EventClassCancelled       = "class.cancelled"
	EventOrderPaid            = "order.paid"
	EventOrderFailed          = "order.failed"
	EventRefundApproved       = "refund.approved"
)

// EventPublisher is satisfied by *rabbitmq.Publisher. A nil publisher skips publishing.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type ReservationEvent struct {
	ReservationID    uint      `json:"reservation_id"`
	ClassID          uint      `json:"class_id"`
	UserID           uint      `json:"user_id"`
	PurchaseID       uint      `json:"purchase_id"`
	ClassStartsAt    time.Time `json:"class_starts_at"`
	CreditsMoved     int       `json:"credits_moved"`
	ClassesRemaining int       `json:"classes_remaining"`
}

type GuestInvitedEvent struct {
	ReservationID     uint      `json:"reservation_id"`
	HostReservationID uint      `json:"host_reservation_id"`
	HostUserID        uint      `json:"host_user_id"`
	ClassID           uint      `json:"class_id"`
	ClassStartsAt     time.Time `json:"class_starts_at"`
	GuestName         string    `json:"guest_name"`
	GuestEmail        string    `json:"guest_email"`
	InvitationToken   string    `json:"invitation_token"`
}

type ClassCancelledEvent struct {
	ClassID        uint      `json:"class_id"`
	ClassStartsAt  time.Time `json:"class_starts_at"`
	ReservationIDs []uint    `json:"reservation_ids"`
	UserIDs        []uint    `json:"user_ids"`
}

type OrderEvent struct {
	OrderID     uint            `json:"order_id"`
	UserID      uint            `json:"user_id"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Provider    string          `json:"provider"`
	PurchaseIDs []uint          `json:"purchase_ids,omitempty"`
}

// RefundApprovedEvent carries what the consumer needs to call the provider
// without going back to the database.
type RefundApprovedEvent struct {
	RefundID          uint            `json:"refund_id"`
	PurchaseID        uint            `json:"purchase_id"`
	OrderID           uint            `json:"order_id"`
	UserID            uint            `json:"user_id"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason"`
}

// publish runs after commit; a broker hiccup must not undo a committed booking.
func publish(p EventPublisher, key string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(key, payload); err != nil {
		logrus.WithError(err).WithField("routing_key", key).Error("failed to publish event")
	}
}
