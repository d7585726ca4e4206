package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type DisciplineInput struct {
	Name        string
	Slug        string
	Description string
	Benefits    string
	Order       int
	IsActive    bool
}

type InstructorInput struct {
	Name        string
	Bio         string
	Disciplines []string
}

type PackageInput struct {
	Slug         string
	Name         string
	ClassCount   int
	Price        decimal.Decimal
	ValidityDays int
	IsShareable  bool
	MaxShares    int
	IsFeatured   bool
}

type ScheduleClassInput struct {
	DisciplineID              uint
	ComplementaryDisciplineID *uint
	InstructorID              uint
	StartsAt                  time.Time
	Duration                  int
	MaxCapacity               int
	ClassType                 string
	RepeatWeeks               int
}

type CatalogService interface {
	CreateDiscipline(ctx context.Context, in DisciplineInput) (*models.Discipline, error)
	ListDisciplines(ctx context.Context, activeOnly bool) ([]models.Discipline, error)
	UpdateDiscipline(ctx context.Context, id uint, in DisciplineInput) (*models.Discipline, error)
	DeleteDiscipline(ctx context.Context, id uint) error

	CreateInstructor(ctx context.Context, in InstructorInput) (*models.Instructor, error)
	ListInstructors(ctx context.Context) ([]models.Instructor, error)

	CreatePackage(ctx context.Context, in PackageInput) (*models.Package, error)
	ListPackages(ctx context.Context) ([]models.Package, error)
	GetPackageBySlug(ctx context.Context, slug string) (*models.Package, error)

	ScheduleClass(ctx context.Context, in ScheduleClassInput) ([]models.Class, error)
	ListClasses(ctx context.Context, from, to time.Time) ([]models.Class, error)
	GetClass(ctx context.Context, id uint) (*models.Class, error)
	CancelClass(ctx context.Context, id uint) error
}

type catalogService struct {
	tx           repository.Transactor
	disciplines  repository.DisciplineRepository
	instructors  repository.InstructorRepository
	packages     repository.PackageRepository
	classes      repository.ClassRepository
	resRepo      repository.ReservationRepository
	ledger       Ledger
	settings     SettingsService
	publisher    EventPublisher
	maxRecurring int
	now          func() time.Time
}

func NewCatalogService(
	tx repository.Transactor,
	disciplines repository.DisciplineRepository,
	instructors repository.InstructorRepository,
	packages repository.PackageRepository,
	classes repository.ClassRepository,
	resRepo repository.ReservationRepository,
	ledger Ledger,
	settings SettingsService,
	publisher EventPublisher,
	maxRecurringWeeks int,
) CatalogService {
	return &catalogService{
		tx:           tx,
		disciplines:  disciplines,
		instructors:  instructors,
		packages:     packages,
		classes:      classes,
		resRepo:      resRepo,
		ledger:       ledger,
		settings:     settings,
		publisher:    publisher,
		maxRecurring: maxRecurringWeeks,
		now:          time.Now,
	}
}

// Slugify lower-cases and hyphenates a display name.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (s *catalogService) CreateDiscipline(ctx context.Context, in DisciplineInput) (*models.Discipline, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	d := &models.Discipline{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: in.Description,
		Benefits:    in.Benefits,
		Order:       in.Order,
		IsActive:    in.IsActive,
	}
	if err := s.disciplines.Create(ctx, d); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return d, nil
}

func (s *catalogService) ListDisciplines(ctx context.Context, activeOnly bool) ([]models.Discipline, error) {
	return s.disciplines.List(ctx, activeOnly)
}

func (s *catalogService) UpdateDiscipline(ctx context.Context, id uint, in DisciplineInput) (*models.Discipline, error) {
	d, err := s.disciplines.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisciplineNotFound
		}
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		d.Name = name
	}
	d.Description = in.Description
	d.Benefits = in.Benefits
	d.Order = in.Order
	d.IsActive = in.IsActive
	if err := s.disciplines.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *catalogService) DeleteDiscipline(ctx context.Context, id uint) error {
	if _, err := s.disciplines.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDisciplineNotFound
		}
		return err
	}
	n, err := s.classes.CountByDiscipline(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDisciplineInUse
	}
	return s.disciplines.Delete(ctx, id)
}

func (s *catalogService) CreateInstructor(ctx context.Context, in InstructorInput) (*models.Instructor, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	i := &models.Instructor{
		Name:        strings.TrimSpace(in.Name),
		Bio:         in.Bio,
		Disciplines: pq.StringArray(in.Disciplines),
		IsActive:    true,
	}
	if err := s.instructors.Create(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *catalogService) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	return s.instructors.List(ctx, true)
}

func (s *catalogService) CreatePackage(ctx context.Context, in PackageInput) (*models.Package, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, invalid("name is required")
	case in.ClassCount < 1:
		return nil, invalid("class count must be positive")
	case in.Price.IsNegative():
		return nil, invalid("price cannot be negative")
	case in.ValidityDays < 1:
		return nil, invalid("validity days must be positive")
	case in.MaxShares < 0:
		return nil, invalid("max shares cannot be negative")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	p := &models.Package{
		Slug:         slug,
		Name:         strings.TrimSpace(in.Name),
		ClassCount:   in.ClassCount,
		Price:        in.Price.Round(2),
		ValidityDays: in.ValidityDays,
		IsShareable:  in.IsShareable,
		MaxShares:    in.MaxShares,
		IsActive:     true,
		IsFeatured:   in.IsFeatured,
	}
	if !p.IsShareable {
		p.MaxShares = 0
	}
	if err := s.packages.Create(ctx, p); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return p, nil
}

func (s *catalogService) ListPackages(ctx context.Context) ([]models.Package, error) {
	return s.packages.ListActive(ctx)
}

func (s *catalogService) GetPackageBySlug(ctx context.Context, slug string) (*models.Package, error) {
	p, err := s.packages.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return p, nil
}

// ScheduleClass creates one class, or RepeatWeeks further weekly copies
// sharing a recurrence group.
func (s *catalogService) ScheduleClass(ctx context.Context, in ScheduleClassInput) ([]models.Class, error) {
	switch {
	case in.Duration <= 0:
		return nil, newError(KindValidation, ErrInvalidSchedule.Code, "duration must be positive")
	case in.MaxCapacity < 0:
		return nil, newError(KindValidation, ErrInvalidSchedule.Code, "capacity cannot be negative")
	case in.RepeatWeeks < 0 || in.RepeatWeeks > s.maxRecurring:
		return nil, newError(KindValidation, ErrInvalidSchedule.Code, "repeat weeks out of range")
	case !in.StartsAt.After(s.now()):
		return nil, newError(KindValidation, ErrInvalidSchedule.Code, "class must start in the future")
	}

	if _, err := s.disciplines.FindByID(ctx, in.DisciplineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisciplineNotFound
		}
		return nil, err
	}
	if in.ComplementaryDisciplineID != nil {
		if _, err := s.disciplines.FindByID(ctx, *in.ComplementaryDisciplineID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDisciplineNotFound
			}
			return nil, err
		}
	}
	if _, err := s.instructors.FindByID(ctx, in.InstructorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstructorNotFound
		}
		return nil, err
	}

	capacity := in.MaxCapacity
	if capacity == 0 {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		capacity = settings.DefaultClassCapacity
	}

	var group *string
	if in.RepeatWeeks > 0 {
		g := uuid.NewString()
		group = &g
	}
	classes := make([]models.Class, 0, in.RepeatWeeks+1)
	for week := 0; week <= in.RepeatWeeks; week++ {
		classes = append(classes, models.Class{
			DisciplineID:              in.DisciplineID,
			ComplementaryDisciplineID: in.ComplementaryDisciplineID,
			InstructorID:              in.InstructorID,
			DateTime:                  in.StartsAt.AddDate(0, 0, 7*week).UTC(),
			Duration:                  in.Duration,
			MaxCapacity:               capacity,
			ClassType:                 in.ClassType,
			IsRecurring:               group != nil,
			RecurrenceGroup:           group,
		})
	}

	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		return s.classes.CreateBatch(ctx, tx, classes)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"discipline_id": in.DisciplineID,
		"instructor_id": in.InstructorID,
		"starts_at":     in.StartsAt,
		"occurrences":   len(classes),
	}).Info("classes scheduled")
	return classes, nil
}

func (s *catalogService) ListClasses(ctx context.Context, from, to time.Time) ([]models.Class, error) {
	if !to.After(from) {
		return nil, invalid("to must be after from")
	}
	return s.classes.List(ctx, from, to, false)
}

func (s *catalogService) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	c, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return c, nil
}

// CancelClass soft-cancels the class, cancels every confirmed reservation and
// returns the credits to each purchase in one transaction.
func (s *catalogService) CancelClass(ctx context.Context, id uint) error {
	var (
		class   *models.Class
		resIDs  []uint
		userIDs []uint
	)
	now := s.now()
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		class, err = s.classes.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}
		if class.IsCancelled {
			return ErrClassCancelled
		}

		roster, err := s.resRepo.ListConfirmedByClass(ctx, tx, id)
		if err != nil {
			return err
		}
		credits := make(map[uint]int)
		seen := make(map[uint]bool)
		for _, r := range roster {
			resIDs = append(resIDs, r.ID)
			credits[r.PurchaseID]++
			if !seen[r.UserID] {
				seen[r.UserID] = true
				userIDs = append(userIDs, r.UserID)
			}
		}

		if _, err := s.resRepo.Cancel(ctx, tx, resIDs, now); err != nil {
			return err
		}
		purchaseIDs := make([]uint, 0, len(credits))
		for pid := range credits {
			purchaseIDs = append(purchaseIDs, pid)
		}
		// fixed lock order across purchases
		sort.Slice(purchaseIDs, func(i, j int) bool { return purchaseIDs[i] < purchaseIDs[j] })
		for _, pid := range purchaseIDs {
			if _, err := s.ledger.RestoreClass(ctx, tx, pid, credits[pid]); err != nil {
				return err
			}
		}
		ok, err := s.classes.MarkCancelled(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClassCancelled
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"class_id":     id,
		"reservations": len(resIDs),
	}).Info("class cancelled")

	publish(s.publisher, EventClassCancelled, ClassCancelledEvent{
		ClassID:        id,
		ClassStartsAt:  class.DateTime,
		ReservationIDs: resIDs,
		UserIDs:        userIDs,
	})
	return nil
}
