package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseActive   PurchaseStatus = "ACTIVE"
	PurchaseDepleted PurchaseStatus = "DEPLETED"
	PurchaseExpired  PurchaseStatus = "EXPIRED"
	PurchaseRefunded PurchaseStatus = "REFUNDED"
)

// Purchase snapshots the package terms at mint time so catalog edits never
// change an entitlement already sold.
type Purchase struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	PackageID        uint            `gorm:"not null;index" json:"package_id"`
	OrderID          *uint           `gorm:"index" json:"order_id,omitempty"`
	ClassCount       int             `gorm:"not null" json:"class_count"`
	ClassesRemaining int             `gorm:"not null;check:chk_purchases_balance,classes_remaining >= 0 AND classes_remaining <= class_count" json:"classes_remaining"`
	IsShareable      bool            `gorm:"not null" json:"is_shareable"`
	MaxShares        int             `gorm:"not null" json:"max_shares"`
	ExpiresAt        time.Time       `gorm:"not null;index" json:"expires_at"`
	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"original_price"`
	FinalPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"final_price"`
	Status           PurchaseStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

func (p *Purchase) IsUnlimited() bool {
	return p.ClassCount >= UnlimitedClasses
}

func (p *Purchase) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// HasBalance reports whether count credits can be spent right now.
func (p *Purchase) HasBalance(count int, now time.Time) bool {
	if p.Status != PurchaseActive || p.IsExpired(now) {
		return false
	}
	return p.IsUnlimited() || p.ClassesRemaining >= count
}
