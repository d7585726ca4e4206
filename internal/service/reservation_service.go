package service

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type GuestInput struct {
	Name  string
	Email string
}

type CreateReservationInput struct {
	ClassID    uint
	PurchaseID *uint
	Guest      *GuestInput
}

// ReservationResult carries the updated purchase so callers can show the
// remaining balance without another round trip.
type ReservationResult struct {
	Reservation      *models.Reservation
	GuestReservation *models.Reservation
	Purchase         *models.Purchase
}

type ReservationService interface {
	CreateReservation(ctx context.Context, actingUserID uint, in CreateReservationInput) (*ReservationResult, error)
	CancelReservation(ctx context.Context, reservationID, actingUserID uint) error
	RespondToInvitation(ctx context.Context, token string, accept bool) (*models.Reservation, error)
	ListUserReservations(ctx context.Context, userID uint, upcomingOnly bool) ([]models.Reservation, error)
	ListClassRoster(ctx context.Context, classID uint) ([]models.Reservation, error)
}

type reservationService struct {
	tx           repository.Transactor
	classRepo    repository.ClassRepository
	purchaseRepo repository.PurchaseRepository
	resRepo      repository.ReservationRepository
	ledger       Ledger
	settings     SettingsService
	publisher    EventPublisher
	now          func() time.Time
}

func NewReservationService(
	tx repository.Transactor,
	classRepo repository.ClassRepository,
	purchaseRepo repository.PurchaseRepository,
	resRepo repository.ReservationRepository,
	ledger Ledger,
	settings SettingsService,
	publisher EventPublisher,
) ReservationService {
	return &reservationService{
		tx:           tx,
		classRepo:    classRepo,
		purchaseRepo: purchaseRepo,
		resRepo:      resRepo,
		ledger:       ledger,
		settings:     settings,
		publisher:    publisher,
		now:          time.Now,
	}
}

func (s *reservationService) CreateReservation(ctx context.Context, actingUserID uint, in CreateReservationInput) (*ReservationResult, error) {
	if in.Guest != nil && (in.Guest.Name == "" || in.Guest.Email == "") {
		return nil, invalid("guest name and email are required")
	}

	var (
		result = &ReservationResult{}
		class  *models.Class
	)
	now := s.now()

	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		// 1. Lock the class row; serializes concurrent attempts on the same class
		var err error
		class, err = s.classRepo.FindByIDForUpdate(ctx, tx, in.ClassID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}
		if class.IsCancelled {
			return ErrClassCancelled
		}
		if !class.DateTime.After(now) {
			return ErrClassStarted
		}

		// 2. One credit for the member, one more for a guest
		needed := 1
		if in.Guest != nil {
			needed = 2
		}

		// 3. Resolve which purchase pays
		purchase, err := s.resolvePurchase(ctx, tx, actingUserID, in.PurchaseID, needed, in.Guest != nil, now)
		if err != nil {
			return err
		}
		if in.Guest != nil && purchase.MaxShares > 0 {
			shared, err := s.resRepo.CountConfirmedGuests(ctx, tx, purchase.ID)
			if err != nil {
				return err
			}
			if int(shared) >= purchase.MaxShares {
				return ErrShareLimitReached
			}
		}

		// 4. Take a seat; guests ride on the member's seat
		seated, err := s.classRepo.IncrementCount(ctx, tx, class.ID)
		if err != nil {
			return err
		}
		if !seated {
			return ErrClassFull
		}

		// 5. Double booking
		_, err = s.resRepo.FindConfirmedPrimary(ctx, tx, class.ID, actingUserID)
		if err == nil {
			return ErrAlreadyReserved
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 6. Spend the credits
		updated, err := s.ledger.ConsumeClass(ctx, tx, purchase.ID, needed)
		if err != nil {
			return err
		}
		result.Purchase = updated

		// 7. Insert reservation rows
		host := &models.Reservation{
			ClassID:    class.ID,
			UserID:     actingUserID,
			PurchaseID: purchase.ID,
			Status:     models.ReservationConfirmed,
		}
		if err := s.resRepo.Create(ctx, tx, host); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrAlreadyReserved
			}
			return err
		}
		result.Reservation = host

		if in.Guest != nil {
			guestStatus := models.GuestPending
			token := uuid.NewString()
			guest := &models.Reservation{
				ClassID:            class.ID,
				UserID:             actingUserID,
				PurchaseID:         purchase.ID,
				Status:             models.ReservationConfirmed,
				IsGuestReservation: true,
				HostReservationID:  &host.ID,
				GuestName:          &in.Guest.Name,
				GuestEmail:         &in.Guest.Email,
				GuestStatus:        &guestStatus,
				InvitationToken:    &token,
			}
			if err := s.resRepo.Create(ctx, tx, guest); err != nil {
				return err
			}
			result.GuestReservation = guest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id":    result.Reservation.ID,
		"class_id":          class.ID,
		"user_id":           actingUserID,
		"purchase_id":       result.Purchase.ID,
		"classes_remaining": result.Purchase.ClassesRemaining,
		"with_guest":        result.GuestReservation != nil,
	}).Info("reservation confirmed")

	credits := 1
	if result.GuestReservation != nil {
		credits = 2
	}
	publish(s.publisher, EventReservationConfirmed, ReservationEvent{
		ReservationID:    result.Reservation.ID,
		ClassID:          class.ID,
		UserID:           actingUserID,
		PurchaseID:       result.Purchase.ID,
		ClassStartsAt:    class.DateTime,
		CreditsMoved:     credits,
		ClassesRemaining: result.Purchase.ClassesRemaining,
	})
	if g := result.GuestReservation; g != nil {
		publish(s.publisher, EventGuestInvited, GuestInvitedEvent{
			ReservationID:     g.ID,
			HostReservationID: result.Reservation.ID,
			HostUserID:        actingUserID,
			ClassID:           class.ID,
			ClassStartsAt:     class.DateTime,
			GuestName:         *g.GuestName,
			GuestEmail:        *g.GuestEmail,
			InvitationToken:   *g.InvitationToken,
		})
	}

	return result, nil
}

// resolvePurchase honours a pinned purchase or falls back to the
// earliest-expiring one that can cover the credits. With a guest, only
// shareable purchases qualify.
func (s *reservationService) resolvePurchase(ctx context.Context, tx *gorm.DB, userID uint, pinned *uint, needed int, withGuest bool, now time.Time) (*models.Purchase, error) {
	if pinned != nil {
		p, err := s.purchaseRepo.FindByIDForUpdate(ctx, tx, *pinned)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPurchaseNotFound
			}
			return nil, err
		}
		if p.UserID != userID {
			return nil, ErrPurchaseNotFound
		}
		if withGuest && !p.IsShareable {
			return nil, ErrNotShareable
		}
		if !p.HasBalance(needed, now) {
			return nil, ErrNoActivePackage
		}
		return p, nil
	}

	usable, err := s.purchaseRepo.FindUsableByUserForUpdate(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}
	if !withGuest {
		if best := SelectBestPurchase(usable, needed, now); best != nil {
			return best, nil
		}
		return nil, ErrNoActivePackage
	}

	shareable := make([]models.Purchase, 0, len(usable))
	for _, p := range usable {
		if p.IsShareable {
			shareable = append(shareable, p)
		}
	}
	if best := SelectBestPurchase(shareable, needed, now); best != nil {
		return best, nil
	}
	if SelectBestPurchase(usable, needed, now) != nil {
		return nil, ErrNotShareable
	}
	return nil, ErrNoActivePackage
}

func (s *reservationService) CancelReservation(ctx context.Context, reservationID, actingUserID uint) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	now := s.now()

	var (
		res       *models.Reservation
		class     *models.Class
		credits   int
		remaining int
	)
	err = s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.resRepo.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.UserID != actingUserID {
			return ErrNotOwner
		}
		if res.Status == models.ReservationCancelled {
			return ErrAlreadyCancelled
		}

		class, err = s.classRepo.FindByIDForUpdate(ctx, tx, res.ClassID)
		if err != nil {
			return err
		}
		if !now.Before(class.DateTime.Add(-settings.CancellationCutoff())) {
			return ErrTooLateToCancel
		}

		ids := []uint{res.ID}
		if !res.IsGuestReservation {
			guests, err := s.resRepo.FindConfirmedGuests(ctx, tx, res.ID)
			if err != nil {
				return err
			}
			for _, g := range guests {
				ids = append(ids, g.ID)
			}
		}

		cancelled, err := s.resRepo.Cancel(ctx, tx, ids, now)
		if err != nil {
			return err
		}
		if cancelled == 0 {
			return ErrAlreadyCancelled
		}
		credits = int(cancelled)

		purchase, err := s.ledger.RestoreClass(ctx, tx, res.PurchaseID, credits)
		if err != nil {
			return err
		}
		remaining = purchase.ClassesRemaining

		if !res.IsGuestReservation {
			return s.classRepo.DecrementCount(ctx, tx, class.ID, 1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id":   res.ID,
		"class_id":         res.ClassID,
		"user_id":          actingUserID,
		"credits_restored": credits,
	}).Info("reservation cancelled")

	publish(s.publisher, EventReservationCancelled, ReservationEvent{
		ReservationID:    res.ID,
		ClassID:          res.ClassID,
		UserID:           actingUserID,
		PurchaseID:       res.PurchaseID,
		ClassStartsAt:    class.DateTime,
		CreditsMoved:     credits,
		ClassesRemaining: remaining,
	})
	return nil
}

func (s *reservationService) RespondToInvitation(ctx context.Context, token string, accept bool) (*models.Reservation, error) {
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	var res *models.Reservation
	now := s.now()

	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.resRepo.FindByInvitationTokenForUpdate(ctx, tx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvitationNotFound
			}
			return err
		}
		if res.Status == models.ReservationCancelled {
			return ErrReservationNotActive
		}

		class, err := s.classRepo.FindByIDForUpdate(ctx, tx, res.ClassID)
		if err != nil {
			return err
		}
		if !now.Before(class.DateTime) {
			return ErrInvitationExpired
		}
		if res.GuestStatus == nil || *res.GuestStatus != models.GuestPending {
			return ErrAlreadyResponded
		}

		status := models.GuestDeclined
		if accept {
			status = models.GuestAccepted
		}
		ok, err := s.resRepo.UpdateGuestStatus(ctx, tx, res.ID, status)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResponded
		}
		res.GuestStatus = &status
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"class_id":       res.ClassID,
		"guest_status":   *res.GuestStatus,
	}).Info("guest invitation answered")
	return res, nil
}

func (s *reservationService) ListUserReservations(ctx context.Context, userID uint, upcomingOnly bool) ([]models.Reservation, error) {
	var from *time.Time
	if upcomingOnly {
		now := s.now()
		from = &now
	}
	return s.resRepo.ListByUser(ctx, userID, from)
}

func (s *reservationService) ListClassRoster(ctx context.Context, classID uint) ([]models.Reservation, error) {
	if _, err := s.classRepo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return s.resRepo.ListConfirmedByClass(ctx, nil, classID)
}
