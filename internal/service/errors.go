package service

import "fmt"

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindPolicy
	KindUnauthorized
	KindForbidden
	KindUpstream
)

// DomainError is a named, client-safe failure. Sentinels below are compared
// with errors.Is; Kind decides the HTTP status at the edge.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so detailed variants (see invalid) still satisfy errors.Is
// against their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

func newError(kind ErrorKind, code, msg string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: msg}
}

func invalid(format string, args ...any) error {
	return newError(KindValidation, ErrInvalidInput.Code, fmt.Sprintf(format, args...))
}

// Upstream wraps a payment-provider failure so it surfaces as a 502.
func Upstream(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPaymentProvider, provider, err)
}

var (
	ErrInvalidInput = newError(KindValidation, "INVALID_INPUT", "invalid input")

	// Catalog
	ErrClassNotFound      = newError(KindNotFound, "CLASS_NOT_FOUND", "class not found")
	ErrClassCancelled     = newError(KindConflict, "CLASS_CANCELLED", "class has been cancelled")
	ErrClassStarted       = newError(KindPolicy, "CLASS_ALREADY_STARTED", "class has already started")
	ErrDisciplineNotFound = newError(KindNotFound, "DISCIPLINE_NOT_FOUND", "discipline not found")
	ErrDisciplineInUse    = newError(KindConflict, "DISCIPLINE_IN_USE", "discipline is referenced by scheduled classes")
	ErrInstructorNotFound = newError(KindNotFound, "INSTRUCTOR_NOT_FOUND", "instructor not found")
	ErrPackageNotFound    = newError(KindNotFound, "PACKAGE_NOT_FOUND", "package not found")
	ErrSlugTaken          = newError(KindConflict, "SLUG_TAKEN", "slug is already in use")
	ErrInvalidSchedule    = newError(KindValidation, "INVALID_SCHEDULE", "invalid class schedule")

	// Entitlement ledger
	ErrPurchaseNotFound        = newError(KindNotFound, "PURCHASE_NOT_FOUND", "purchase not found")
	ErrInsufficientBalance     = newError(KindConflict, "INSUFFICIENT_BALANCE", "not enough classes left on this package")
	ErrPurchaseExpired         = newError(KindPolicy, "PURCHASE_EXPIRED", "package has expired")
	ErrPurchaseNotActive       = newError(KindConflict, "PURCHASE_NOT_ACTIVE", "package is not active")
	ErrPurchaseAlreadyRefunded = newError(KindConflict, "PURCHASE_ALREADY_REFUNDED", "purchase has already been refunded")

	// Reservations
	ErrNoActivePackage     = newError(KindConflict, "NO_ACTIVE_PACKAGE", "no active package with enough classes")
	ErrNotShareable        = newError(KindPolicy, "NOT_SHAREABLE", "package does not allow guests")
	ErrShareLimitReached   = newError(KindPolicy, "SHARE_LIMIT_REACHED", "package guest limit reached")
	ErrClassFull           = newError(KindConflict, "CLASS_FULL", "class is full")
	ErrAlreadyReserved     = newError(KindConflict, "ALREADY_RESERVED", "you already have a reservation for this class")
	ErrReservationNotFound = newError(KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found")
	ErrNotOwner            = newError(KindForbidden, "NOT_OWNER", "reservation belongs to another user")
	ErrAlreadyCancelled    = newError(KindConflict, "ALREADY_CANCELLED", "reservation is already cancelled")
	ErrTooLateToCancel     = newError(KindPolicy, "TOO_LATE_TO_CANCEL", "cancellation window has closed")
	ErrInvitationNotFound  = newError(KindNotFound, "INVITATION_NOT_FOUND", "invitation not found")
	ErrInvitationExpired   = newError(KindPolicy, "INVITATION_EXPIRED", "class has already started")
	ErrAlreadyResponded    = newError(KindConflict, "ALREADY_RESPONDED", "invitation was already answered")

	// Commerce
	ErrEmptyCart          = newError(KindValidation, "EMPTY_CART", "cart is empty")
	ErrReservedSession    = newError(KindForbidden, "CART_SESSION_RESERVED", "session id is reserved for member carts")
	ErrInvalidQuantity    = newError(KindValidation, "INVALID_QUANTITY", "quantity must be between 1 and 20")
	ErrPackageUnavailable = newError(KindValidation, "PACKAGE_UNAVAILABLE", "package is not available")
	ErrUnknownProvider    = newError(KindValidation, "UNKNOWN_PROVIDER", "unsupported payment method")
	ErrOrderNotFound      = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrOrderNotPending    = newError(KindConflict, "ORDER_NOT_PENDING", "order is no longer awaiting payment")
	ErrPaymentProvider    = newError(KindUpstream, "PAYMENT_PROVIDER_ERROR", "payment provider error")
	ErrInvalidCallback    = newError(KindValidation, "INVALID_CALLBACK", "payment callback could not be verified")
	ErrInvalidSignature   = newError(KindUnauthorized, "INVALID_SIGNATURE", "payment callback signature mismatch")

	// Discounts
	ErrDiscountNotFound      = newError(KindValidation, "DISCOUNT_NOT_FOUND", "discount code not found")
	ErrDiscountInactive      = newError(KindValidation, "DISCOUNT_INACTIVE", "discount code is not active")
	ErrDiscountNotStarted    = newError(KindValidation, "DISCOUNT_NOT_STARTED", "discount code is not valid yet")
	ErrDiscountExpired       = newError(KindValidation, "DISCOUNT_EXPIRED", "discount code has expired")
	ErrDiscountAlreadyUsed   = newError(KindValidation, "DISCOUNT_ALREADY_USED", "you have already used this discount code")
	ErrDiscountExhausted     = newError(KindValidation, "DISCOUNT_EXHAUSTED", "discount code has reached its usage limit")
	ErrDiscountNotApplicable = newError(KindValidation, "DISCOUNT_NOT_APPLICABLE", "discount code does not apply to these packages")
	ErrDiscountCodeExists    = newError(KindConflict, "DISCOUNT_CODE_EXISTS", "discount code already exists")
	ErrDiscountCodeNotFound  = newError(KindNotFound, "DISCOUNT_CODE_NOT_FOUND", "discount code not found")

	// Refunds
	ErrRefundNotFound         = newError(KindNotFound, "REFUND_NOT_FOUND", "refund request not found")
	ErrRefundAlreadyRequested = newError(KindConflict, "REFUND_ALREADY_REQUESTED", "a refund request is already open for this purchase")
	ErrAlreadyFinalized       = newError(KindConflict, "ALREADY_FINALIZED", "refund request has already been finalized")
	ErrInvalidTransition      = newError(KindConflict, "INVALID_TRANSITION", "refund request cannot move to that state")
	ErrInvalidRefundAction    = newError(KindValidation, "INVALID_REFUND_ACTION", "action must be approve, reject or processing")
	ErrInvalidRefundAmount    = newError(KindValidation, "INVALID_REFUND_AMOUNT", "refund amount must be between 0 and the price paid")

	// Attendance
	ErrUserNotFound         = newError(KindNotFound, "USER_NOT_FOUND", "no member matches this QR code")
	ErrNoReservation        = newError(KindNotFound, "NO_RESERVATION", "member has no reservation for this class")
	ErrAlreadyCheckedIn     = newError(KindConflict, "ALREADY_CHECKED_IN", "member is already checked in")
	ErrNotCheckedIn         = newError(KindConflict, "NOT_CHECKED_IN", "reservation is not checked in")
	ErrReservationNotActive = newError(KindConflict, "RESERVATION_NOT_ACTIVE", "reservation is cancelled")

	// Settings
	ErrInvalidSettings = newError(KindValidation, "INVALID_SETTINGS", "invalid settings")
)
