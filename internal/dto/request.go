package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type GuestRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

type CreateReservationRequest struct {
	ClassID    uint          `json:"classId" validate:"required"`
	PurchaseID *uint         `json:"purchaseId"`
	Guest      *GuestRequest `json:"guest" validate:"omitempty"`
}

type RespondInvitationRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type AddCartItemRequest struct {
	PackageID uint `json:"packageId" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1,max=20"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=20"`
}

type MergeCartRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

type CreateOrderRequest struct {
	DiscountCode  string `json:"discountCode" validate:"max=64"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

type ValidateDiscountRequest struct {
	Code       string `json:"code" validate:"required,max=64"`
	PackageIDs []uint `json:"packageIds" validate:"required,min=1"`
}

type CreateRefundRequest struct {
	PurchaseID uint   `json:"purchaseId" validate:"required"`
	Reason     string `json:"reason" validate:"max=500"`
}

type AdjudicateRefundRequest struct {
	RefundID     uint             `json:"refundId" validate:"required"`
	Action       string           `json:"action" validate:"required,oneof=approve reject processing"`
	Notes        string           `json:"notes" validate:"max=1000"`
	CustomAmount *decimal.Decimal `json:"customAmount"`
}

type ScanAttendanceRequest struct {
	QRCode  string `json:"qrCode" validate:"required"`
	ClassID uint   `json:"classId" validate:"required"`
}

type ManualAttendanceRequest struct {
	CheckedIn *bool `json:"checkedIn" validate:"required"`
}

type DisciplineRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"max=100"`
	Description string `json:"description"`
	Benefits    string `json:"benefits"`
	Order       int    `json:"order"`
	IsActive    *bool  `json:"isActive"`
}

type CreateInstructorRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Bio         string   `json:"bio"`
	Disciplines []string `json:"disciplines"`
}

type CreatePackageRequest struct {
	Slug         string          `json:"slug" validate:"max=100"`
	Name         string          `json:"name" validate:"required,max=100"`
	ClassCount   int             `json:"classCount" validate:"required,min=1"`
	Price        decimal.Decimal `json:"price"`
	ValidityDays int             `json:"validityDays" validate:"required,min=1"`
	IsShareable  bool            `json:"isShareable"`
	MaxShares    int             `json:"maxShares" validate:"min=0"`
	IsFeatured   bool            `json:"isFeatured"`
}

type ScheduleClassRequest struct {
	DisciplineID              uint      `json:"disciplineId" validate:"required"`
	ComplementaryDisciplineID *uint     `json:"complementaryDisciplineId"`
	InstructorID              uint      `json:"instructorId" validate:"required"`
	StartsAt                  time.Time `json:"startsAt" validate:"required"`
	Duration                  int       `json:"duration" validate:"required,min=1"`
	MaxCapacity               int       `json:"maxCapacity" validate:"min=0"`
	ClassType                 string    `json:"classType" validate:"max=50"`
	RepeatWeeks               int       `json:"repeatWeeks" validate:"min=0"`
}

type CreateDiscountCodeRequest struct {
	Code         string    `json:"code" validate:"required,max=64"`
	Percentage   int       `json:"percentage" validate:"required,min=1,max=100"`
	MaxUses      *int      `json:"maxUses" validate:"omitempty,min=1"`
	ValidFrom    time.Time `json:"validFrom" validate:"required"`
	ValidUntil   time.Time `json:"validUntil" validate:"required,gtfield=ValidFrom"`
	ApplicableTo []uint    `json:"applicableTo"`
}

type UpdateSettingsRequest struct {
	CancellationCutoffHours int  `json:"cancellationCutoffHours" validate:"min=0,max=168"`
	DefaultClassCapacity    int  `json:"defaultClassCapacity" validate:"required,min=1"`
	RefundWindowDays        int  `json:"refundWindowDays" validate:"min=0"`
	RefundAllowPartial      bool `json:"refundAllowPartial"`
}
