package models

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is the local projection of the identity directory, kept in sync from
// user.* messages. QRToken is what the front desk scans.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Email     string    `gorm:"index" json:"email"`
	QRToken   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"qr_token"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every table in migration order.
func All() []any {
	return []any{
		&Discipline{}, &Instructor{}, &Package{}, &Class{},
		&User{}, &Setting{},
		&Order{}, &OrderItem{}, &Transaction{},
		&Purchase{}, &Reservation{},
		&CartItem{}, &DiscountCode{}, &PromoRedemption{},
		&RefundRequest{},
	}
}
