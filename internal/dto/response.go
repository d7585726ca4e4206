package dto

import (
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type ReservationResponse struct {
	ID                 uint       `json:"id"`
	ClassID            uint       `json:"classId"`
	UserID             uint       `json:"userId"`
	PurchaseID         uint       `json:"purchaseId"`
	Status             string     `json:"status"`
	CheckedIn          bool       `json:"checkedIn"`
	CheckedInAt        *time.Time `json:"checkedInAt,omitempty"`
	IsGuestReservation bool       `json:"isGuestReservation"`
	HostReservationID  *uint      `json:"hostReservationId,omitempty"`
	GuestName          *string    `json:"guestName,omitempty"`
	GuestEmail         *string    `json:"guestEmail,omitempty"`
	GuestStatus        *string    `json:"guestStatus,omitempty"`
	ClassStartsAt      *time.Time `json:"classStartsAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func ToReservationResponse(r *models.Reservation) ReservationResponse {
	out := ReservationResponse{
		ID:                 r.ID,
		ClassID:            r.ClassID,
		UserID:             r.UserID,
		PurchaseID:         r.PurchaseID,
		Status:             string(r.Status),
		CheckedIn:          r.CheckedIn,
		CheckedInAt:        r.CheckedInAt,
		IsGuestReservation: r.IsGuestReservation,
		HostReservationID:  r.HostReservationID,
		GuestName:          r.GuestName,
		GuestEmail:         r.GuestEmail,
		CancelledAt:        r.CancelledAt,
		CreatedAt:          r.CreatedAt,
	}
	if r.GuestStatus != nil {
		s := string(*r.GuestStatus)
		out.GuestStatus = &s
	}
	if r.Class != nil {
		starts := r.Class.DateTime
		out.ClassStartsAt = &starts
	}
	return out
}

func ToReservationList(rs []models.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(rs))
	for i := range rs {
		out[i] = ToReservationResponse(&rs[i])
	}
	return out
}

type PurchaseResponse struct {
	ID               uint            `json:"id"`
	PackageID        uint            `json:"packageId"`
	PackageName      string          `json:"packageName,omitempty"`
	ClassCount       int             `json:"classCount"`
	ClassesRemaining int             `json:"classesRemaining"`
	Unlimited        bool            `json:"unlimited"`
	IsShareable      bool            `json:"isShareable"`
	MaxShares        int             `json:"maxShares"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	OriginalPrice    decimal.Decimal `json:"originalPrice"`
	FinalPrice       decimal.Decimal `json:"finalPrice"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func ToPurchaseResponse(p *models.Purchase) PurchaseResponse {
	out := PurchaseResponse{
		ID:               p.ID,
		PackageID:        p.PackageID,
		ClassCount:       p.ClassCount,
		ClassesRemaining: p.ClassesRemaining,
		Unlimited:        p.IsUnlimited(),
		IsShareable:      p.IsShareable,
		MaxShares:        p.MaxShares,
		ExpiresAt:        p.ExpiresAt,
		OriginalPrice:    p.OriginalPrice,
		FinalPrice:       p.FinalPrice,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
	}
	if p.Package != nil {
		out.PackageName = p.Package.Name
	}
	return out
}

type ReservationResultResponse struct {
	Reservation      ReservationResponse  `json:"reservation"`
	GuestReservation *ReservationResponse `json:"guestReservation,omitempty"`
	UpdatedPurchase  PurchaseResponse     `json:"updatedPurchase"`
}

func ToReservationResult(r *service.ReservationResult) ReservationResultResponse {
	out := ReservationResultResponse{
		Reservation:     ToReservationResponse(r.Reservation),
		UpdatedPurchase: ToPurchaseResponse(r.Purchase),
	}
	if r.GuestReservation != nil {
		g := ToReservationResponse(r.GuestReservation)
		out.GuestReservation = &g
	}
	return out
}

type OrderItemResponse struct {
	PackageID  uint            `json:"packageId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type OrderResponse struct {
	ID            uint                `json:"id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	DiscountCode  *string             `json:"discountCode,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func ToOrderResponse(o *models.Order) OrderResponse {
	out := OrderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Total:         o.Total,
		DiscountCode:  o.DiscountCode,
		Items:         make([]OrderItemResponse, len(o.Items)),
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
	}
	for i, it := range o.Items {
		out.Items[i] = OrderItemResponse{
			PackageID:  it.PackageID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
	}
	return out
}

type OrderResultResponse struct {
	Order    OrderResponse           `json:"order"`
	Checkout *models.CheckoutSession `json:"checkout,omitempty"`
}

type DiscountValidationResponse struct {
	Valid      bool   `json:"valid"`
	Code       string `json:"code,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
}

type DiscountCodeResponse struct {
	ID           uint      `json:"id"`
	Code         string    `json:"code"`
	Percentage   int       `json:"percentage"`
	MaxUses      *int      `json:"maxUses,omitempty"`
	CurrentUses  int       `json:"currentUses"`
	ValidFrom    time.Time `json:"validFrom"`
	ValidUntil   time.Time `json:"validUntil"`
	IsActive     bool      `json:"isActive"`
	ApplicableTo []int64   `json:"applicableTo"`
}

func ToDiscountCodeResponse(d *models.DiscountCode) DiscountCodeResponse {
	return DiscountCodeResponse{
		ID:           d.ID,
		Code:         d.Code,
		Percentage:   d.Percentage,
		MaxUses:      d.MaxUses,
		CurrentUses:  d.CurrentUses,
		ValidFrom:    d.ValidFrom,
		ValidUntil:   d.ValidUntil,
		IsActive:     d.IsActive,
		ApplicableTo: []int64(d.ApplicableTo),
	}
}

type RefundResponse struct {
	ID             uint                `json:"id"`
	PurchaseID     uint                `json:"purchaseId"`
	UserID         uint                `json:"userId"`
	Status         string              `json:"status"`
	Eligible       bool                `json:"eligible"`
	Amount         decimal.Decimal     `json:"amount"`
	RefundedAmount decimal.NullDecimal `json:"refundedAmount"`
	Reason         string              `json:"reason"`
	Notes          string              `json:"notes,omitempty"`
	PolicySnapshot any                 `json:"policySnapshot,omitempty"`
	RefundedAt     *time.Time          `json:"refundedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func ToRefundResponse(r *models.RefundRequest) RefundResponse {
	out := RefundResponse{
		ID:             r.ID,
		PurchaseID:     r.PurchaseID,
		UserID:         r.UserID,
		Status:         string(r.Status),
		Eligible:       r.Eligible,
		Amount:         r.Amount,
		RefundedAmount: r.RefundedAmount,
		Reason:         r.Reason,
		Notes:          r.Notes,
		RefundedAt:     r.RefundedAt,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.PolicySnapshot) > 0 {
		out.PolicySnapshot = r.PolicySnapshot
	}
	return out
}

func ToRefundList(rs []models.RefundRequest) []RefundResponse {
	out := make([]RefundResponse, len(rs))
	for i := range rs {
		out[i] = ToRefundResponse(&rs[i])
	}
	return out
}

type CheckInResponse struct {
	ReservationID uint       `json:"reservationId"`
	ClassID       uint       `json:"classId"`
	UserID        uint       `json:"userId"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	CheckedInAt   *time.Time `json:"checkedInAt"`
}

type AttendanceSummaryResponse struct {
	ClassID   uint                  `json:"classId"`
	Confirmed int                   `json:"confirmed"`
	Guests    int                   `json:"guests"`
	CheckedIn int                   `json:"checkedIn"`
	Roster    []ReservationResponse `json:"roster"`
}

type DisciplineResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Benefits    string `json:"benefits"`
	Order       int    `json:"order"`
	IsActive    bool   `json:"isActive"`
}

func ToDisciplineResponse(d *models.Discipline) DisciplineResponse {
	return DisciplineResponse{
		ID:          d.ID,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Benefits:    d.Benefits,
		Order:       d.Order,
		IsActive:    d.IsActive,
	}
}

type InstructorResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Bio         string   `json:"bio"`
	Disciplines []string `json:"disciplines"`
}

func ToInstructorResponse(i *models.Instructor) InstructorResponse {
	return InstructorResponse{ID: i.ID, Name: i.Name, Bio: i.Bio, Disciplines: []string(i.Disciplines)}
}

type PackageResponse struct {
	ID           uint            `json:"id"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	ClassCount   int             `json:"classCount"`
	Unlimited    bool            `json:"unlimited"`
	Price        decimal.Decimal `json:"price"`
	ValidityDays int             `json:"validityDays"`
	IsShareable  bool            `json:"isShareable"`
	MaxShares    int             `json:"maxShares"`
	IsFeatured   bool            `json:"isFeatured"`
}

func ToPackageResponse(p *models.Package) PackageResponse {
	return PackageResponse{
		ID:           p.ID,
		Slug:         p.Slug,
		Name:         p.Name,
		ClassCount:   p.ClassCount,
		Unlimited:    p.IsUnlimited(),
		Price:        p.Price,
		ValidityDays: p.ValidityDays,
		IsShareable:  p.IsShareable,
		MaxShares:    p.MaxShares,
		IsFeatured:   p.IsFeatured,
	}
}

type ClassResponse struct {
	ID                        uint                `json:"id"`
	DisciplineID              uint                `json:"disciplineId"`
	ComplementaryDisciplineID *uint               `json:"complementaryDisciplineId,omitempty"`
	InstructorID              uint                `json:"instructorId"`
	StartsAt                  time.Time           `json:"startsAt"`
	EndsAt                    time.Time           `json:"endsAt"`
	Duration                  int                 `json:"duration"`
	MaxCapacity               int                 `json:"maxCapacity"`
	CurrentCount              int                 `json:"currentCount"`
	SpotsLeft                 int                 `json:"spotsLeft"`
	ClassType                 string              `json:"classType,omitempty"`
	IsCancelled               bool                `json:"isCancelled"`
	RecurrenceGroup           *string             `json:"recurrenceGroup,omitempty"`
	Discipline                *DisciplineResponse `json:"discipline,omitempty"`
	Instructor                *InstructorResponse `json:"instructor,omitempty"`
}

func ToClassResponse(c *models.Class) ClassResponse {
	out := ClassResponse{
		ID:                        c.ID,
		DisciplineID:              c.DisciplineID,
		ComplementaryDisciplineID: c.ComplementaryDisciplineID,
		InstructorID:              c.InstructorID,
		StartsAt:                  c.DateTime,
		EndsAt:                    c.EndsAt(),
		Duration:                  c.Duration,
		MaxCapacity:               c.MaxCapacity,
		CurrentCount:              c.CurrentCount,
		SpotsLeft:                 c.SpotsLeft(),
		ClassType:                 c.ClassType,
		IsCancelled:               c.IsCancelled,
		RecurrenceGroup:           c.RecurrenceGroup,
	}
	if c.Discipline != nil {
		d := ToDisciplineResponse(c.Discipline)
		out.Discipline = &d
	}
	if c.Instructor != nil {
		i := ToInstructorResponse(c.Instructor)
		out.Instructor = &i
	}
	return out
}

func ToClassList(cs []models.Class) []ClassResponse {
	out := make([]ClassResponse, len(cs))
	for i := range cs {
		out[i] = ToClassResponse(&cs[i])
	}
	return out
}
