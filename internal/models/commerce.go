package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProviderFree tags the synthetic transaction of a zero-total order.
const ProviderFree = "FREE"

type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_session_package" json:"session_id"`
	PackageID uint      `gorm:"not null;uniqueIndex:idx_cart_session_package" json:"package_id"`
	Quantity  int       `gorm:"not null;check:chk_cart_items_quantity,quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod  string          `gorm:"type:varchar(32);not null" json:"payment_method"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	DiscountCodeID *uint           `json:"discount_code_id,omitempty"`
	DiscountCode   *string         `gorm:"type:varchar(64)" json:"discount_code,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Items        []OrderItem   `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:OrderID" json:"transactions,omitempty"`
}

type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"not null;index" json:"order_id"`
	PackageID  uint            `gorm:"not null" json:"package_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

type TransactionStatus string

const (
	TransactionApproved TransactionStatus = "APPROVED"
	TransactionDenied   TransactionStatus = "DENIED"
	TransactionPending  TransactionStatus = "PENDING"
)

// Transaction is append-only: one row per provider attempt or callback.
type Transaction struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	OrderID             uint              `gorm:"not null;index" json:"order_id"`
	Provider            string            `gorm:"type:varchar(32);not null;uniqueIndex:idx_transactions_provider_txn" json:"provider"`
	ProviderTxnID       string            `gorm:"type:varchar(128);not null;uniqueIndex:idx_transactions_provider_txn" json:"provider_txn_id"`
	ProviderReference   string            `gorm:"type:varchar(128)" json:"provider_reference"`
	Status              TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	Amount              decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	AuthorizationNumber *string           `json:"authorization_number,omitempty"`
	CardBrand           *string           `json:"card_brand,omitempty"`
	CardLastDigits      *string           `gorm:"type:varchar(4)" json:"card_last_digits,omitempty"`
	RawPayload          datatypes.JSON    `json:"-"`
	CreatedAt           time.Time         `json:"created_at"`
}

// PaymentResult is a provider outcome after signature verification, before it
// is recorded as a Transaction.
type PaymentResult struct {
	Provider            string
	ProviderTxnID       string
	ProviderReference   string
	Status              TransactionStatus
	Amount              decimal.Decimal
	AuthorizationNumber string
	CardBrand           string
	CardLastDigits      string
	Raw                 []byte
}

// CheckoutSession is what the client needs to hand the buyer to a provider.
type CheckoutSession struct {
	Provider    string            `json:"provider"`
	Reference   string            `json:"reference"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Token       string            `json:"token,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}
