package service

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CheckInResult struct {
	Reservation *models.Reservation
	User        *models.User
}

type AttendanceSummary struct {
	ClassID   uint                 `json:"classId"`
	Confirmed int                  `json:"confirmed"`
	Guests    int                  `json:"guests"`
	CheckedIn int                  `json:"checkedIn"`
	Roster    []models.Reservation `json:"roster"`
}

type AttendanceService interface {
	CheckIn(ctx context.Context, qrToken string, classID, adminID uint) (*CheckInResult, error)
	ManualCheckIn(ctx context.Context, reservationID, adminID uint, checkedIn bool) (*models.Reservation, error)
	ClassAttendance(ctx context.Context, classID uint) (*AttendanceSummary, error)
}

type attendanceService struct {
	tx      repository.Transactor
	users   repository.UserRepository
	classes repository.ClassRepository
	resRepo repository.ReservationRepository
	now     func() time.Time
}

func NewAttendanceService(tx repository.Transactor, users repository.UserRepository, classes repository.ClassRepository, resRepo repository.ReservationRepository) AttendanceService {
	return &attendanceService{tx: tx, users: users, classes: classes, resRepo: resRepo, now: time.Now}
}

func (s *attendanceService) CheckIn(ctx context.Context, qrToken string, classID, adminID uint) (*CheckInResult, error) {
	if qrToken == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.FindByQRToken(ctx, qrToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var res *models.Reservation
	err = s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.resRepo.FindConfirmedPrimary(ctx, tx, classID, user.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoReservation
			}
			return err
		}
		if res.CheckedIn {
			return ErrAlreadyCheckedIn
		}
		now := s.now()
		ok, err := s.resRepo.SetCheckIn(ctx, tx, res.ID, true, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCheckedIn
		}
		res.CheckedIn = true
		res.CheckedInAt = &now
		res.CheckedInBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"class_id":       classID,
		"user_id":        user.ID,
		"admin_id":       adminID,
	}).Info("member checked in")
	return &CheckInResult{Reservation: res, User: user}, nil
}

// ManualCheckIn sets or clears attendance for corrections at the front desk.
func (s *attendanceService) ManualCheckIn(ctx context.Context, reservationID, adminID uint, checkedIn bool) (*models.Reservation, error) {
	var res *models.Reservation
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.resRepo.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.Status != models.ReservationConfirmed {
			return ErrReservationNotActive
		}
		now := s.now()
		ok, err := s.resRepo.SetCheckIn(ctx, tx, res.ID, checkedIn, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			if checkedIn {
				return ErrAlreadyCheckedIn
			}
			return ErrNotCheckedIn
		}
		res.CheckedIn = checkedIn
		if checkedIn {
			res.CheckedInAt = &now
			res.CheckedInBy = &adminID
		} else {
			res.CheckedInAt = nil
			res.CheckedInBy = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"admin_id":       adminID,
		"checked_in":     checkedIn,
	}).Info("manual attendance update")
	return res, nil
}

func (s *attendanceService) ClassAttendance(ctx context.Context, classID uint) (*AttendanceSummary, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	roster, err := s.resRepo.ListConfirmedByClass(ctx, nil, classID)
	if err != nil {
		return nil, err
	}
	out := &AttendanceSummary{ClassID: classID, Roster: roster}
	for _, r := range roster {
		if r.IsGuestReservation {
			out.Guests++
		} else {
			out.Confirmed++
		}
		if r.CheckedIn {
			out.CheckedIn++
		}
	}
	return out, nil
}
