package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/middleware"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/payment"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// --- request helpers ---

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withParam(c echo.Context, name, value string) echo.Context {
	c.SetParamNames(name)
	c.SetParamValues(value)
	return c
}

func asMember(c echo.Context, id uint) echo.Context {
	middleware.SetIdentity(c, id, models.RoleUser)
	return c
}

func asAdmin(c echo.Context, id uint) echo.Context {
	middleware.SetIdentity(c, id, models.RoleAdmin)
	return c
}

// httpError unwraps the *echo.HTTPError a handler returned.
func httpError(t *testing.T, err error) (int, dto.ErrorResponse) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T (%v)", err, err)
	body, ok := he.Message.(dto.ErrorResponse)
	require.True(t, ok, "unexpected message type %T", he.Message)
	return he.Code, body
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var fixedTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// --- Mock ReservationService ---

type mockReservationService struct {
	createFn  func(ctx context.Context, userID uint, in service.CreateReservationInput) (*service.ReservationResult, error)
	cancelFn  func(ctx context.Context, reservationID, userID uint) error
	respondFn func(ctx context.Context, token string, accept bool) (*models.Reservation, error)
	listFn    func(ctx context.Context, userID uint, upcomingOnly bool) ([]models.Reservation, error)
	rosterFn  func(ctx context.Context, classID uint) ([]models.Reservation, error)
}

func (m *mockReservationService) CreateReservation(ctx context.Context, userID uint, in service.CreateReservationInput) (*service.ReservationResult, error) {
	return m.createFn(ctx, userID, in)
}
func (m *mockReservationService) CancelReservation(ctx context.Context, reservationID, userID uint) error {
	return m.cancelFn(ctx, reservationID, userID)
}
func (m *mockReservationService) RespondToInvitation(ctx context.Context, token string, accept bool) (*models.Reservation, error) {
	return m.respondFn(ctx, token, accept)
}
func (m *mockReservationService) ListUserReservations(ctx context.Context, userID uint, upcomingOnly bool) ([]models.Reservation, error) {
	return m.listFn(ctx, userID, upcomingOnly)
}
func (m *mockReservationService) ListClassRoster(ctx context.Context, classID uint) ([]models.Reservation, error) {
	return m.rosterFn(ctx, classID)
}

type mockPurchaseLister struct {
	listFn func(ctx context.Context, userID uint) ([]models.Purchase, error)
}

func (m *mockPurchaseLister) ListPurchases(ctx context.Context, userID uint) ([]models.Purchase, error) {
	return m.listFn(ctx, userID)
}

// --- Mock CartService ---

type mockCartService struct {
	getFn    func(ctx context.Context, sessionID string) (*service.CartView, error)
	addFn    func(ctx context.Context, sessionID string, packageID uint, quantity int) (*service.CartView, error)
	updateFn func(ctx context.Context, sessionID string, packageID uint, quantity int) (*service.CartView, error)
	removeFn func(ctx context.Context, sessionID string, packageID uint) (*service.CartView, error)
	mergeFn  func(ctx context.Context, anonSessionID string, userID uint) (*service.CartView, error)
}

func (m *mockCartService) GetCart(ctx context.Context, sessionID string) (*service.CartView, error) {
	return m.getFn(ctx, sessionID)
}
func (m *mockCartService) AddItem(ctx context.Context, sessionID string, packageID uint, quantity int) (*service.CartView, error) {
	return m.addFn(ctx, sessionID, packageID, quantity)
}
func (m *mockCartService) UpdateQuantity(ctx context.Context, sessionID string, packageID uint, quantity int) (*service.CartView, error) {
	return m.updateFn(ctx, sessionID, packageID, quantity)
}
func (m *mockCartService) RemoveItem(ctx context.Context, sessionID string, packageID uint) (*service.CartView, error) {
	return m.removeFn(ctx, sessionID, packageID)
}
func (m *mockCartService) MergeCart(ctx context.Context, anonSessionID string, userID uint) (*service.CartView, error) {
	return m.mergeFn(ctx, anonSessionID, userID)
}

// --- Mock OrderService ---

type mockOrderService struct {
	createFn  func(ctx context.Context, userID uint, in service.CreateOrderInput) (*service.OrderResult, error)
	confirmFn func(ctx context.Context, orderID uint, result models.PaymentResult) (*models.Order, error)
	getFn     func(ctx context.Context, userID, orderID uint) (*models.Order, error)
	listFn    func(ctx context.Context, userID uint) ([]models.Order, error)
	cancelFn  func(ctx context.Context, userID, orderID uint) (*models.Order, error)
}

func (m *mockOrderService) CreateOrderFromCart(ctx context.Context, userID uint, in service.CreateOrderInput) (*service.OrderResult, error) {
	return m.createFn(ctx, userID, in)
}
func (m *mockOrderService) ConfirmPayment(ctx context.Context, orderID uint, result models.PaymentResult) (*models.Order, error) {
	return m.confirmFn(ctx, orderID, result)
}
func (m *mockOrderService) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	return m.getFn(ctx, userID, orderID)
}
func (m *mockOrderService) ListUserOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return m.listFn(ctx, userID)
}
func (m *mockOrderService) CancelPendingOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	return m.cancelFn(ctx, userID, orderID)
}
func (m *mockOrderService) CancelStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// --- Payment providers ---

type stubProvider struct {
	name    string
	parseFn func(r *http.Request) (uint, models.PaymentResult, error)
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Checkout(ctx context.Context, order *models.Order) (*models.CheckoutSession, error) {
	return nil, nil
}
func (p *stubProvider) ParseCallback(r *http.Request) (uint, models.PaymentResult, error) {
	return p.parseFn(r)
}
func (p *stubProvider) Refund(ctx context.Context, req payment.RefundRequest) error { return nil }

// --- Mock DiscountService ---

type mockDiscountService struct {
	validateFn   func(ctx context.Context, code string, packageIDs []uint, userID uint) (*service.DiscountValidation, error)
	createFn     func(ctx context.Context, in service.CreateDiscountInput) (*models.DiscountCode, error)
	listFn       func(ctx context.Context) ([]models.DiscountCode, error)
	deactivateFn func(ctx context.Context, id uint) error
}

func (m *mockDiscountService) Validate(ctx context.Context, code string, packageIDs []uint, userID uint) (*service.DiscountValidation, error) {
	return m.validateFn(ctx, code, packageIDs, userID)
}
func (m *mockDiscountService) CreateDiscountCode(ctx context.Context, in service.CreateDiscountInput) (*models.DiscountCode, error) {
	return m.createFn(ctx, in)
}
func (m *mockDiscountService) ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	return m.listFn(ctx)
}
func (m *mockDiscountService) DeactivateDiscountCode(ctx context.Context, id uint) error {
	return m.deactivateFn(ctx, id)
}

// --- Mock RefundService ---

type mockRefundService struct {
	requestFn    func(ctx context.Context, userID, purchaseID uint, reason string) (*models.RefundRequest, error)
	adjudicateFn func(ctx context.Context, adminID uint, in service.AdjudicateInput) (*models.RefundRequest, error)
	listFn       func(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error)
	listUserFn   func(ctx context.Context, userID uint) ([]models.RefundRequest, error)
}

func (m *mockRefundService) RequestRefund(ctx context.Context, userID, purchaseID uint, reason string) (*models.RefundRequest, error) {
	return m.requestFn(ctx, userID, purchaseID, reason)
}
func (m *mockRefundService) Adjudicate(ctx context.Context, adminID uint, in service.AdjudicateInput) (*models.RefundRequest, error) {
	return m.adjudicateFn(ctx, adminID, in)
}
func (m *mockRefundService) ListRefunds(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error) {
	return m.listFn(ctx, status)
}
func (m *mockRefundService) ListUserRefunds(ctx context.Context, userID uint) ([]models.RefundRequest, error) {
	return m.listUserFn(ctx, userID)
}

// --- Mock AttendanceService ---

type mockAttendanceService struct {
	checkInFn func(ctx context.Context, qrToken string, classID, adminID uint) (*service.CheckInResult, error)
	manualFn  func(ctx context.Context, reservationID, adminID uint, checkedIn bool) (*models.Reservation, error)
	summaryFn func(ctx context.Context, classID uint) (*service.AttendanceSummary, error)
}

func (m *mockAttendanceService) CheckIn(ctx context.Context, qrToken string, classID, adminID uint) (*service.CheckInResult, error) {
	return m.checkInFn(ctx, qrToken, classID, adminID)
}
func (m *mockAttendanceService) ManualCheckIn(ctx context.Context, reservationID, adminID uint, checkedIn bool) (*models.Reservation, error) {
	return m.manualFn(ctx, reservationID, adminID, checkedIn)
}
func (m *mockAttendanceService) ClassAttendance(ctx context.Context, classID uint) (*service.AttendanceSummary, error) {
	return m.summaryFn(ctx, classID)
}

// --- Mock CatalogService ---

type mockCatalogService struct {
	service.CatalogService
	scheduleFn    func(ctx context.Context, in service.ScheduleClassInput) ([]models.Class, error)
	listClassesFn func(ctx context.Context, from, to time.Time) ([]models.Class, error)
	getPackageFn  func(ctx context.Context, slug string) (*models.Package, error)
	createDiscFn  func(ctx context.Context, in service.DisciplineInput) (*models.Discipline, error)
	cancelClassFn func(ctx context.Context, id uint) error
}

func (m *mockCatalogService) ScheduleClass(ctx context.Context, in service.ScheduleClassInput) ([]models.Class, error) {
	return m.scheduleFn(ctx, in)
}
func (m *mockCatalogService) ListClasses(ctx context.Context, from, to time.Time) ([]models.Class, error) {
	return m.listClassesFn(ctx, from, to)
}
func (m *mockCatalogService) GetPackageBySlug(ctx context.Context, slug string) (*models.Package, error) {
	return m.getPackageFn(ctx, slug)
}
func (m *mockCatalogService) CreateDiscipline(ctx context.Context, in service.DisciplineInput) (*models.Discipline, error) {
	return m.createDiscFn(ctx, in)
}
func (m *mockCatalogService) CancelClass(ctx context.Context, id uint) error {
	return m.cancelClassFn(ctx, id)
}

// --- Mock SettingsService ---

type mockSettingsService struct {
	current service.StudioSettings
}

func (m *mockSettingsService) Get(ctx context.Context) (service.StudioSettings, error) {
	return m.current, nil
}
func (m *mockSettingsService) Update(ctx context.Context, in service.StudioSettings) (service.StudioSettings, error) {
	if in.DefaultClassCapacity < 1 {
		return service.StudioSettings{}, service.ErrInvalidSettings
	}
	m.current = in
	return in, nil
}
