package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- In-memory store ---
//
// txMu serializes transactions the way row locks do in Postgres; mu guards
// the maps for calls made outside a transaction.

type store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID       uint
	classes      map[uint]models.Class
	disciplines  map[uint]models.Discipline
	instructors  map[uint]models.Instructor
	packages     map[uint]models.Package
	purchases    map[uint]models.Purchase
	reservations map[uint]models.Reservation
	cart         []models.CartItem
	orders       map[uint]models.Order
	txns         []models.Transaction
	codes        map[uint]models.DiscountCode
	redemptions  []models.PromoRedemption
	refunds      map[uint]models.RefundRequest
	users        map[uint]models.User
	settings     map[string]string
}

func newStore() *store {
	return &store{
		nextID:       100,
		classes:      map[uint]models.Class{},
		disciplines:  map[uint]models.Discipline{},
		instructors:  map[uint]models.Instructor{},
		packages:     map[uint]models.Package{},
		purchases:    map[uint]models.Purchase{},
		reservations: map[uint]models.Reservation{},
		orders:       map[uint]models.Order{},
		codes:        map[uint]models.DiscountCode{},
		refunds:      map[uint]models.RefundRequest{},
		users:        map[uint]models.User{},
		settings:     map[string]string{},
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type snapshot struct {
	nextID       uint
	classes      map[uint]models.Class
	disciplines  map[uint]models.Discipline
	instructors  map[uint]models.Instructor
	packages     map[uint]models.Package
	purchases    map[uint]models.Purchase
	reservations map[uint]models.Reservation
	cart         []models.CartItem
	orders       map[uint]models.Order
	txns         []models.Transaction
	codes        map[uint]models.DiscountCode
	redemptions  []models.PromoRedemption
	refunds      map[uint]models.RefundRequest
	settings     map[string]string
}

func (s *store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		nextID:       s.nextID,
		classes:      cloneMap(s.classes),
		disciplines:  cloneMap(s.disciplines),
		instructors:  cloneMap(s.instructors),
		packages:     cloneMap(s.packages),
		purchases:    cloneMap(s.purchases),
		reservations: cloneMap(s.reservations),
		cart:         append([]models.CartItem(nil), s.cart...),
		orders:       cloneMap(s.orders),
		txns:         append([]models.Transaction(nil), s.txns...),
		codes:        cloneMap(s.codes),
		redemptions:  append([]models.PromoRedemption(nil), s.redemptions...),
		refunds:      cloneMap(s.refunds),
		settings:     cloneMap(s.settings),
	}
}

func (s *store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.classes = snap.classes
	s.disciplines = snap.disciplines
	s.instructors = snap.instructors
	s.packages = snap.packages
	s.purchases = snap.purchases
	s.reservations = snap.reservations
	s.cart = snap.cart
	s.orders = snap.orders
	s.txns = snap.txns
	s.codes = snap.codes
	s.redemptions = snap.redemptions
	s.refunds = snap.refunds
	s.settings = snap.settings
}

// WithinTransaction rolls the whole store back when fn fails.
func (s *store) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- Classes ---

type fakeClasses struct{ *store }

func (r fakeClasses) CreateBatch(ctx context.Context, tx *gorm.DB, classes []models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range classes {
		classes[i].ID = r.id()
		r.classes[classes[i].ID] = classes[i]
	}
	return nil
}

func (r fakeClasses) FindByID(ctx context.Context, id uint) (*models.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeClasses) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error) {
	return r.FindByID(ctx, id)
}

func (r fakeClasses) List(ctx context.Context, from, to time.Time, includeCancelled bool) ([]models.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Class
	for _, c := range r.classes {
		if c.DateTime.Before(from) || !c.DateTime.Before(to) || (c.IsCancelled && !includeCancelled) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r fakeClasses) IncrementCount(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok || c.CurrentCount >= c.MaxCapacity {
		return false, nil
	}
	c.CurrentCount++
	r.classes[id] = c
	return true, nil
}

func (r fakeClasses) DecrementCount(ctx context.Context, tx *gorm.DB, id uint, by int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.classes[id]
	c.CurrentCount -= by
	if c.CurrentCount < 0 {
		c.CurrentCount = 0
	}
	r.classes[id] = c
	return nil
}

func (r fakeClasses) MarkCancelled(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok || c.IsCancelled {
		return false, nil
	}
	c.IsCancelled = true
	c.CurrentCount = 0
	r.classes[id] = c
	return true, nil
}

func (r fakeClasses) CountByDiscipline(ctx context.Context, disciplineID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.classes {
		if c.DisciplineID == disciplineID || (c.ComplementaryDisciplineID != nil && *c.ComplementaryDisciplineID == disciplineID) {
			n++
		}
	}
	return n, nil
}

// --- Disciplines / instructors / packages ---

type fakeDisciplines struct{ *store }

func (r fakeDisciplines) Create(ctx context.Context, d *models.Discipline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.disciplines {
		if existing.Slug == d.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	d.ID = r.id()
	r.disciplines[d.ID] = *d
	return nil
}

func (r fakeDisciplines) FindByID(ctx context.Context, id uint) (*models.Discipline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disciplines[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (r fakeDisciplines) List(ctx context.Context, activeOnly bool) ([]models.Discipline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Discipline
	for _, d := range r.disciplines {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r fakeDisciplines) Update(ctx context.Context, d *models.Discipline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disciplines[d.ID] = *d
	return nil
}

func (r fakeDisciplines) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disciplines, id)
	return nil
}

type fakeInstructors struct{ *store }

func (r fakeInstructors) Create(ctx context.Context, i *models.Instructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i.ID = r.id()
	r.instructors[i.ID] = *i
	return nil
}

func (r fakeInstructors) FindByID(ctx context.Context, id uint) (*models.Instructor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.instructors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &i, nil
}

func (r fakeInstructors) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Instructor
	for _, i := range r.instructors {
		if activeOnly && !i.IsActive {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

type fakePackages struct{ *store }

func (r fakePackages) Create(ctx context.Context, p *models.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.packages {
		if existing.Slug == p.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.id()
	r.packages[p.ID] = *p
	return nil
}

func (r fakePackages) FindByID(ctx context.Context, id uint) (*models.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r fakePackages) FindBySlug(ctx context.Context, slug string) (*models.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packages {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePackages) ListActive(ctx context.Context) ([]models.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Package
	for _, p := range r.packages {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Purchases ---

type fakePurchases struct{ *store }

func (r fakePurchases) Create(ctx context.Context, tx *gorm.DB, p *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.purchases[p.ID] = *p
	return nil
}

func (r fakePurchases) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r fakePurchases) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Purchase, error) {
	return r.FindByID(ctx, tx, id)
}

func (r fakePurchases) FindUsableByUserForUpdate(ctx context.Context, tx *gorm.DB, userID uint, now time.Time) ([]models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Purchase
	for _, p := range r.purchases {
		if p.UserID == userID && p.Status == models.PurchaseActive && p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakePurchases) ListByUser(ctx context.Context, userID uint) ([]models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Purchase
	for _, p := range r.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakePurchases) Consume(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.Status != models.PurchaseActive || !p.ExpiresAt.After(now) {
		return false, nil
	}
	if p.IsUnlimited() {
		return true, nil
	}
	if p.ClassesRemaining < count {
		return false, nil
	}
	p.ClassesRemaining -= count
	if p.ClassesRemaining == 0 {
		p.Status = models.PurchaseDepleted
	}
	r.purchases[id] = p
	return true, nil
}

func (r fakePurchases) Restore(ctx context.Context, tx *gorm.DB, id uint, count int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.IsUnlimited() || p.Status == models.PurchaseRefunded {
		return false, nil
	}
	p.ClassesRemaining += count
	if p.ClassesRemaining > p.ClassCount {
		p.ClassesRemaining = p.ClassCount
	}
	if p.Status == models.PurchaseDepleted && p.ExpiresAt.After(now) {
		p.Status = models.PurchaseActive
	}
	r.purchases[id] = p
	return true, nil
}

func (r fakePurchases) MarkRefunded(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok || p.Status == models.PurchaseRefunded {
		return false, nil
	}
	p.Status = models.PurchaseRefunded
	r.purchases[id] = p
	return true, nil
}

func (r fakePurchases) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.purchases {
		if (p.Status == models.PurchaseActive || p.Status == models.PurchaseDepleted) && !p.ExpiresAt.After(now) {
			p.Status = models.PurchaseExpired
			r.purchases[id] = p
			n++
		}
	}
	return n, nil
}

// --- Reservations ---

type fakeReservations struct{ *store }

func (r fakeReservations) Create(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !res.IsGuestReservation && res.Status == models.ReservationConfirmed {
		for _, existing := range r.reservations {
			if existing.ClassID == res.ClassID && existing.UserID == res.UserID &&
				!existing.IsGuestReservation && existing.Status == models.ReservationConfirmed {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	res.ID = r.id()
	r.reservations[res.ID] = *res
	return nil
}

func (r fakeReservations) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &res, nil
}

func (r fakeReservations) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error) {
	return r.FindByID(ctx, id)
}

func (r fakeReservations) FindConfirmedPrimary(ctx context.Context, tx *gorm.DB, classID, userID uint) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.ClassID == classID && res.UserID == userID && !res.IsGuestReservation && res.Status == models.ReservationConfirmed {
			return &res, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeReservations) FindConfirmedGuests(ctx context.Context, tx *gorm.DB, hostID uint) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.reservations {
		if res.HostReservationID != nil && *res.HostReservationID == hostID && res.Status == models.ReservationConfirmed {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r fakeReservations) FindByInvitationTokenForUpdate(ctx context.Context, tx *gorm.DB, token string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.InvitationToken != nil && *res.InvitationToken == token {
			return &res, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeReservations) ListConfirmedByClass(ctx context.Context, tx *gorm.DB, classID uint) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.reservations {
		if res.ClassID == classID && res.Status == models.ReservationConfirmed {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeReservations) ListByUser(ctx context.Context, userID uint, from *time.Time) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.reservations {
		if res.UserID != userID {
			continue
		}
		c := r.classes[res.ClassID]
		if from != nil && c.DateTime.Before(*from) {
			continue
		}
		res.Class = &c
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeReservations) CountConfirmedGuests(ctx context.Context, tx *gorm.DB, purchaseID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.PurchaseID == purchaseID && res.IsGuestReservation && res.Status == models.ReservationConfirmed {
			n++
		}
	}
	return n, nil
}

func (r fakeReservations) Cancel(ctx context.Context, tx *gorm.DB, ids []uint, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		res, ok := r.reservations[id]
		if !ok || res.Status != models.ReservationConfirmed {
			continue
		}
		res.Status = models.ReservationCancelled
		res.CancelledAt = &at
		r.reservations[id] = res
		n++
	}
	return n, nil
}

func (r fakeReservations) UpdateGuestStatus(ctx context.Context, tx *gorm.DB, id uint, status models.GuestStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.GuestStatus == nil || *res.GuestStatus != models.GuestPending {
		return false, nil
	}
	res.GuestStatus = &status
	r.reservations[id] = res
	return true, nil
}

func (r fakeReservations) SetCheckIn(ctx context.Context, tx *gorm.DB, id uint, checkedIn bool, by uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.Status != models.ReservationConfirmed || res.CheckedIn == checkedIn {
		return false, nil
	}
	res.CheckedIn = checkedIn
	if checkedIn {
		res.CheckedInAt = &at
		res.CheckedInBy = &by
	} else {
		res.CheckedInAt = nil
		res.CheckedInBy = nil
	}
	r.reservations[id] = res
	return true, nil
}

// --- Cart ---

type fakeCarts struct{ *store }

func (r fakeCarts) withPackages(items []models.CartItem) []models.CartItem {
	for i := range items {
		if p, ok := r.packages[items[i].PackageID]; ok {
			items[i].Package = &p
		}
	}
	return items
}

func (r fakeCarts) ListBySession(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CartItem
	for _, it := range r.cart {
		if it.SessionID == sessionID {
			out = append(out, it)
		}
	}
	return r.withPackages(out), nil
}

func (r fakeCarts) LockSession(ctx context.Context, tx *gorm.DB, sessionID string) ([]models.CartItem, error) {
	return r.ListBySession(ctx, sessionID)
}

func (r fakeCarts) AddQuantity(ctx context.Context, tx *gorm.DB, sessionID string, packageID uint, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.cart {
		if it.SessionID == sessionID && it.PackageID == packageID {
			r.cart[i].Quantity += qty
			return nil
		}
	}
	r.cart = append(r.cart, models.CartItem{ID: r.id(), SessionID: sessionID, PackageID: packageID, Quantity: qty})
	return nil
}

func (r fakeCarts) SetQuantity(ctx context.Context, sessionID string, packageID uint, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.cart {
		if it.SessionID == sessionID && it.PackageID == packageID {
			r.cart[i].Quantity = qty
			return true, nil
		}
	}
	return false, nil
}

func (r fakeCarts) RemoveItem(ctx context.Context, sessionID string, packageID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.cart[:0:0]
	for _, it := range r.cart {
		if !(it.SessionID == sessionID && it.PackageID == packageID) {
			kept = append(kept, it)
		}
	}
	r.cart = kept
	return nil
}

func (r fakeCarts) DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.cart[:0:0]
	for _, it := range r.cart {
		if it.SessionID == sessionID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	r.cart = kept
	return n, nil
}

// --- Orders ---

type fakeOrders struct{ *store }

func (r fakeOrders) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = r.id()
	order.CreatedAt = time.Now()
	items := make([]models.OrderItem, len(order.Items))
	for i, it := range order.Items {
		it.ID = r.id()
		it.OrderID = order.ID
		items[i] = it
	}
	order.Items = items
	r.orders[order.ID] = *order
	return nil
}

func (r fakeOrders) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o.Transactions = nil
	for _, t := range r.txns {
		if t.OrderID == id {
			o.Transactions = append(o.Transactions, t)
		}
	}
	return &o, nil
}

func (r fakeOrders) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Order, error) {
	return r.FindByID(ctx, tx, id)
}

func (r fakeOrders) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeOrders) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.OrderStatus, paidAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if paidAt != nil {
		o.PaidAt = paidAt
	}
	r.orders[id] = o
	return true, nil
}

func (r fakeOrders) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.Provider == txn.Provider && t.ProviderTxnID == txn.ProviderTxnID {
			return gorm.ErrDuplicatedKey
		}
	}
	txn.ID = r.id()
	r.txns = append(r.txns, *txn)
	return nil
}

func (r fakeOrders) TransactionExists(ctx context.Context, tx *gorm.DB, provider, providerTxnID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.Provider == provider && t.ProviderTxnID == providerTxnID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeOrders) FindApprovedTransaction(ctx context.Context, tx *gorm.DB, orderID uint) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.txns) - 1; i >= 0; i-- {
		if t := r.txns[i]; t.OrderID == orderID && t.Status == models.TransactionApproved {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeOrders) CancelStalePending(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, o := range r.orders {
		if o.Status == models.OrderPending && o.CreatedAt.Before(before) {
			o.Status = models.OrderCancelled
			r.orders[id] = o
			n++
		}
	}
	return n, nil
}

// --- Discounts ---

type fakeDiscounts struct{ *store }

func (r fakeDiscounts) Create(ctx context.Context, code *models.DiscountCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if strings.EqualFold(c.Code, code.Code) {
			return gorm.ErrDuplicatedKey
		}
	}
	code.ID = r.id()
	r.codes[code.ID] = *code
	return nil
}

func (r fakeDiscounts) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if strings.EqualFold(c.Code, code) {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeDiscounts) FindByID(ctx context.Context, id uint) (*models.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeDiscounts) List(ctx context.Context) ([]models.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DiscountCode
	for _, c := range r.codes {
		out = append(out, c)
	}
	return out, nil
}

func (r fakeDiscounts) Deactivate(ctx context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return false, nil
	}
	c.IsActive = false
	r.codes[id] = c
	return true, nil
}

func (r fakeDiscounts) HasRedemption(ctx context.Context, userID, codeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, red := range r.redemptions {
		if red.UserID == userID && red.DiscountCodeID == codeID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeDiscounts) RecordRedemption(ctx context.Context, tx *gorm.DB, redemption *models.PromoRedemption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, red := range r.redemptions {
		if red.UserID == redemption.UserID && red.DiscountCodeID == redemption.DiscountCodeID {
			return false, nil
		}
	}
	redemption.ID = r.id()
	r.redemptions = append(r.redemptions, *redemption)
	return true, nil
}

func (r fakeDiscounts) IncrementUses(ctx context.Context, tx *gorm.DB, codeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[codeID]
	if !ok || (c.MaxUses != nil && c.CurrentUses >= *c.MaxUses) {
		return false, nil
	}
	c.CurrentUses++
	r.codes[codeID] = c
	return true, nil
}

// --- Refunds ---

type fakeRefunds struct{ *store }

func (r fakeRefunds) Create(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = r.id()
	r.refunds[req.ID] = *req
	return nil
}

func (r fakeRefunds) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.refunds[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r fakeRefunds) FindOpenByPurchase(ctx context.Context, tx *gorm.DB, purchaseID uint) (*models.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.refunds {
		if req.PurchaseID == purchaseID && !req.Status.IsTerminal() {
			return &req, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeRefunds) Save(ctx context.Context, tx *gorm.DB, req *models.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds[req.ID] = *req
	return nil
}

func (r fakeRefunds) List(ctx context.Context, status *models.RefundStatus) ([]models.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RefundRequest
	for _, req := range r.refunds {
		if status == nil || req.Status == *status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r fakeRefunds) ListByUser(ctx context.Context, userID uint) ([]models.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RefundRequest
	for _, req := range r.refunds {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

// --- Users / settings ---

type fakeUsers struct{ *store }

func (r fakeUsers) FindByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r fakeUsers) FindByQRToken(ctx context.Context, token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.QRToken == token {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUsers) Upsert(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

type fakeSettings struct{ *store }

func (r fakeSettings) All(ctx context.Context) ([]models.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Setting
	for k, v := range r.settings {
		out = append(out, models.Setting{Key: k, Value: v})
	}
	return out, nil
}

func (r fakeSettings) Upsert(ctx context.Context, settings []models.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range settings {
		r.settings[s.Key] = s.Value
	}
	return nil
}

// --- Collaborators ---

type publishedEvent struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: routingKey, payload: payload})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

type mockGateway struct {
	supportsFn func(provider string) bool
	checkoutFn func(ctx context.Context, provider string, order *models.Order) (*models.CheckoutSession, error)
}

func (m *mockGateway) Supports(provider string) bool {
	if m.supportsFn == nil {
		return provider == "payway"
	}
	return m.supportsFn(provider)
}

func (m *mockGateway) Checkout(ctx context.Context, provider string, order *models.Order) (*models.CheckoutSession, error) {
	if m.checkoutFn == nil {
		return &models.CheckoutSession{Provider: provider, Reference: "ref-1", RedirectURL: "https://pay.example/checkout"}, nil
	}
	return m.checkoutFn(ctx, provider, order)
}

// --- Fixture ---

var (
	testNow      = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	testDefaults = StudioSettings{
		CancellationCutoffHours: 6,
		DefaultClassCapacity:    12,
		RefundWindowDays:        14,
		RefundAllowPartial:      true,
	}
)

type fixture struct {
	st        *store
	pub       *recordingPublisher
	gateway   *mockGateway
	settings  SettingsService
	ledger    *ledger
	res       *reservationService
	carts     *cartService
	discounts *discountService
	orders    *orderService
	refunds   *refundService
	attend    *attendanceService
	catalog   *catalogService
}

func newFixture() *fixture {
	st := newStore()
	pub := &recordingPublisher{}
	gw := &mockGateway{}
	clock := func() time.Time { return testNow }

	settings := NewSettingsService(fakeSettings{st}, testDefaults)

	l := NewLedger(fakePurchases{st}, fakePackages{st}).(*ledger)
	l.now = clock

	res := NewReservationService(st, fakeClasses{st}, fakePurchases{st}, fakeReservations{st}, l, settings, pub).(*reservationService)
	res.now = clock

	carts := NewCartService(st, fakeCarts{st}, fakePackages{st}, nil).(*cartService)

	discounts := NewDiscountService(fakeDiscounts{st}).(*discountService)
	discounts.now = clock

	orders := NewOrderService(st, fakeCarts{st}, fakeOrders{st}, fakeDiscounts{st}, discounts, l, gw, nil, pub).(*orderService)
	orders.now = clock

	refunds := NewRefundService(st, fakeRefunds{st}, fakePurchases{st}, fakeOrders{st}, settings, pub).(*refundService)
	refunds.now = clock

	attend := NewAttendanceService(st, fakeUsers{st}, fakeClasses{st}, fakeReservations{st}).(*attendanceService)
	attend.now = clock

	catalog := NewCatalogService(st, fakeDisciplines{st}, fakeInstructors{st}, fakePackages{st}, fakeClasses{st}, fakeReservations{st}, l, settings, pub, 12).(*catalogService)
	catalog.now = clock

	return &fixture{
		st: st, pub: pub, gateway: gw, settings: settings, ledger: l,
		res: res, carts: carts, discounts: discounts, orders: orders,
		refunds: refunds, attend: attend, catalog: catalog,
	}
}

func (f *fixture) addClass(startsIn time.Duration, capacity int) uint {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	id := f.st.id()
	f.st.classes[id] = models.Class{
		ID:           id,
		DisciplineID: 1,
		InstructorID: 1,
		DateTime:     testNow.Add(startsIn),
		Duration:     60,
		MaxCapacity:  capacity,
	}
	return id
}

func (f *fixture) addPackage(classCount int, price string, shareable bool, maxShares int) uint {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	id := f.st.id()
	f.st.packages[id] = models.Package{
		ID:           id,
		Slug:         fmt.Sprintf("pkg-%d", id),
		Name:         "Package",
		ClassCount:   classCount,
		Price:        decimal.RequireFromString(price),
		ValidityDays: 30,
		IsShareable:  shareable,
		MaxShares:    maxShares,
		IsActive:     true,
	}
	return id
}

func (f *fixture) addPurchase(userID uint, classCount, remaining int, expiresIn time.Duration, shareable bool, maxShares int) uint {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	id := f.st.id()
	status := models.PurchaseActive
	if remaining == 0 && classCount < models.UnlimitedClasses {
		status = models.PurchaseDepleted
	}
	f.st.purchases[id] = models.Purchase{
		ID:               id,
		UserID:           userID,
		ClassCount:       classCount,
		ClassesRemaining: remaining,
		IsShareable:      shareable,
		MaxShares:        maxShares,
		ExpiresAt:        testNow.Add(expiresIn),
		OriginalPrice:    decimal.NewFromInt(100),
		FinalPrice:       decimal.NewFromInt(100),
		Status:           status,
		CreatedAt:        testNow.Add(-24 * time.Hour),
	}
	return id
}

func (f *fixture) purchase(id uint) models.Purchase {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.purchases[id]
}

func (f *fixture) class(id uint) models.Class {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.classes[id]
}

func (f *fixture) reservation(id uint) models.Reservation {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.reservations[id]
}

func (f *fixture) order(id uint) models.Order {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.orders[id]
}
