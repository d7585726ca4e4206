package models

import (
	"time"

	"github.com/lib/pq"
)

// DiscountCode.Code is stored upper-cased; lookups normalise the same way.
type DiscountCode struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Code         string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Percentage   int           `gorm:"not null;check:chk_discount_codes_percentage,percentage BETWEEN 0 AND 100" json:"percentage"`
	MaxUses      *int          `json:"max_uses,omitempty"`
	CurrentUses  int           `gorm:"not null;check:chk_discount_codes_uses,max_uses IS NULL OR current_uses <= max_uses" json:"current_uses"`
	ValidFrom    time.Time     `gorm:"not null" json:"valid_from"`
	ValidUntil   time.Time     `gorm:"not null" json:"valid_until"`
	IsActive     bool          `gorm:"not null" json:"is_active"`
	ApplicableTo pq.Int64Array `gorm:"type:bigint[]" json:"applicable_to"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type RedemptionStatus string

const RedemptionApplied RedemptionStatus = "APPLIED"

type PromoRedemption struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UserID         uint             `gorm:"not null;uniqueIndex:idx_promo_redemptions_user_code" json:"user_id"`
	DiscountCodeID uint             `gorm:"not null;uniqueIndex:idx_promo_redemptions_user_code" json:"discount_code_id"`
	OrderID        uint             `gorm:"not null" json:"order_id"`
	Status         RedemptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}
