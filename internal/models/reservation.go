package models

import "time"

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type GuestStatus string

const (
	GuestPending  GuestStatus = "PENDING"
	GuestAccepted GuestStatus = "ACCEPTED"
	GuestDeclined GuestStatus = "DECLINED"
)

// Reservation rows come in two flavours: the booking user's own seat, and a
// guest row (IsGuestReservation) pointing back to it via HostReservationID.
// Only the former occupies class capacity.
type Reservation struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	ClassID            uint              `gorm:"not null;index" json:"class_id"`
	UserID             uint              `gorm:"not null;index" json:"user_id"`
	PurchaseID         uint              `gorm:"not null;index" json:"purchase_id"`
	Status             ReservationStatus `gorm:"type:varchar(20);not null" json:"status"`
	CheckedIn          bool              `gorm:"not null" json:"checked_in"`
	CheckedInAt        *time.Time        `json:"checked_in_at,omitempty"`
	CheckedInBy        *uint             `json:"checked_in_by,omitempty"`
	IsGuestReservation bool              `gorm:"not null" json:"is_guest_reservation"`
	HostReservationID  *uint             `gorm:"index" json:"host_reservation_id,omitempty"`
	GuestName          *string           `json:"guest_name,omitempty"`
	GuestEmail         *string           `json:"guest_email,omitempty"`
	GuestStatus        *GuestStatus      `gorm:"type:varchar(20)" json:"guest_status,omitempty"`
	InvitationToken    *string           `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	Class *Class `gorm:"foreignKey:ClassID" json:"class,omitempty"`
}

