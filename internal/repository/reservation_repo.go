package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, r *models.Reservation) error
	FindByID(ctx context.Context, id uint) (*models.Reservation, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error)
	FindConfirmedPrimary(ctx context.Context, tx *gorm.DB, classID, userID uint) (*models.Reservation, error)
	FindConfirmedGuests(ctx context.Context, tx *gorm.DB, hostID uint) ([]models.Reservation, error)
	FindByInvitationTokenForUpdate(ctx context.Context, tx *gorm.DB, token string) (*models.Reservation, error)
	ListConfirmedByClass(ctx context.Context, tx *gorm.DB, classID uint) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID uint, from *time.Time) ([]models.Reservation, error)
	CountConfirmedGuests(ctx context.Context, tx *gorm.DB, purchaseID uint) (int64, error)
	Cancel(ctx context.Context, tx *gorm.DB, ids []uint, at time.Time) (int64, error)
	UpdateGuestStatus(ctx context.Context, tx *gorm.DB, id uint, status models.GuestStatus) (bool, error)
	SetCheckIn(ctx context.Context, tx *gorm.DB, id uint, checkedIn bool, by uint, at time.Time) (bool, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *reservationRepository) Create(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	return tx.WithContext(ctx).Create(res).Error
}

func (r *reservationRepository) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.db.WithContext(ctx).Preload("Class").First(&res, id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error) {
	var res models.Reservation
	if err := forUpdate(tx.WithContext(ctx)).First(&res, id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) FindConfirmedPrimary(ctx context.Context, tx *gorm.DB, classID, userID uint) (*models.Reservation, error) {
	var res models.Reservation
	err := r.conn(tx).WithContext(ctx).
		Where("class_id = ? AND user_id = ? AND status = ? AND is_guest_reservation = ?",
			classID, userID, models.ReservationConfirmed, false).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) FindConfirmedGuests(ctx context.Context, tx *gorm.DB, hostID uint) ([]models.Reservation, error) {
	var list []models.Reservation
	err := forUpdate(tx.WithContext(ctx)).
		Where("host_reservation_id = ? AND status = ?", hostID, models.ReservationConfirmed).
		Find(&list).Error
	return list, err
}

func (r *reservationRepository) FindByInvitationTokenForUpdate(ctx context.Context, tx *gorm.DB, token string) (*models.Reservation, error) {
	var res models.Reservation
	if err := forUpdate(tx.WithContext(ctx)).
		Where("invitation_token = ?", token).
		First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) ListConfirmedByClass(ctx context.Context, tx *gorm.DB, classID uint) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.conn(tx).WithContext(ctx).
		Where("class_id = ? AND status = ?", classID, models.ReservationConfirmed).
		Order("is_guest_reservation ASC, id ASC").
		Find(&list).Error
	return list, err
}

// ListByUser returns the user's reservations, optionally only classes starting at or after from.
func (r *reservationRepository) ListByUser(ctx context.Context, userID uint, from *time.Time) ([]models.Reservation, error) {
	var list []models.Reservation
	q := r.db.WithContext(ctx).
		Joins("Class").
		Where("reservations.user_id = ?", userID)
	if from != nil {
		q = q.Where(`"Class"."date_time" >= ?`, *from)
	}
	if err := q.Order(`"Class"."date_time" ASC, reservations.id ASC`).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reservationRepository) CountConfirmedGuests(ctx context.Context, tx *gorm.DB, purchaseID uint) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("purchase_id = ? AND is_guest_reservation = ? AND status = ?", purchaseID, true, models.ReservationConfirmed).
		Count(&count).Error
	return count, err
}

func (r *reservationRepository) Cancel(ctx context.Context, tx *gorm.DB, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id IN ? AND status = ?", ids, models.ReservationConfirmed).
		Updates(map[string]any{"status": models.ReservationCancelled, "cancelled_at": at})
	return res.RowsAffected, res.Error
}

func (r *reservationRepository) UpdateGuestStatus(ctx context.Context, tx *gorm.DB, id uint, status models.GuestStatus) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND guest_status = ?", id, models.GuestPending).
		Update("guest_status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetCheckIn flips the attendance flag only if it is not already in the
// requested state, so a double scan affects zero rows.
func (r *reservationRepository) SetCheckIn(ctx context.Context, tx *gorm.DB, id uint, checkedIn bool, by uint, at time.Time) (bool, error) {
	updates := map[string]any{"checked_in": checkedIn, "checked_in_at": nil, "checked_in_by": nil}
	if checkedIn {
		updates["checked_in_at"] = at
		updates["checked_in_by"] = by
	}
	res := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND checked_in = ?", id, models.ReservationConfirmed, !checkedIn).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
