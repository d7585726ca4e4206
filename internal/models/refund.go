package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundRefunded   RefundStatus = "REFUNDED"
	RefundRejected   RefundStatus = "REJECTED"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:    {RefundProcessing, RefundRefunded, RefundRejected},
	RefundProcessing: {RefundRefunded, RefundRejected},
}

func (s RefundStatus) IsTerminal() bool {
	return s == RefundRefunded || s == RefundRejected
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type RefundRequest struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	UserID         uint                `gorm:"not null;index" json:"user_id"`
	PurchaseID     uint                `gorm:"not null;index" json:"purchase_id"`
	Amount         decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Eligible       bool                `gorm:"not null" json:"eligible"`
	Status         RefundStatus        `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason         string              `json:"reason"`
	PolicySnapshot datatypes.JSON      `json:"policy_snapshot"`
	Notes          string              `json:"notes"`
	RefundedAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"refunded_amount"`
	AdjudicatedBy  *uint               `json:"adjudicated_by,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	RefundedAt     *time.Time          `json:"refunded_at,omitempty"`
}
