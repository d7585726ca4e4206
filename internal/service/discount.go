package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type DiscountValidation struct {
	CodeID     uint   `json:"codeId"`
	Code       string `json:"code"`
	Percentage int    `json:"percentage"`
}

type CreateDiscountInput struct {
	Code         string
	Percentage   int
	MaxUses      *int
	ValidFrom    time.Time
	ValidUntil   time.Time
	ApplicableTo []uint
}

type DiscountService interface {
	Validate(ctx context.Context, code string, packageIDs []uint, userID uint) (*DiscountValidation, error)
	CreateDiscountCode(ctx context.Context, in CreateDiscountInput) (*models.DiscountCode, error)
	ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error)
	DeactivateDiscountCode(ctx context.Context, id uint) error
}

type discountService struct {
	repo repository.DiscountRepository
	now  func() time.Time
}

func NewDiscountService(repo repository.DiscountRepository) DiscountService {
	return &discountService{repo: repo, now: time.Now}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *discountService) Validate(ctx context.Context, code string, packageIDs []uint, userID uint) (*DiscountValidation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrDiscountNotFound
	}
	dc, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscountNotFound
		}
		return nil, err
	}

	redeemed := false
	if userID != 0 {
		if redeemed, err = s.repo.HasRedemption(ctx, userID, dc.ID); err != nil {
			return nil, err
		}
	}
	if err := EvaluateDiscount(dc, redeemed, packageIDs, s.now()); err != nil {
		return nil, err
	}
	return &DiscountValidation{CodeID: dc.ID, Code: dc.Code, Percentage: dc.Percentage}, nil
}

// EvaluateDiscount applies the code rules in order; the first failing rule wins.
func EvaluateDiscount(dc *models.DiscountCode, redeemed bool, packageIDs []uint, now time.Time) error {
	switch {
	case !dc.IsActive:
		return ErrDiscountInactive
	case now.Before(dc.ValidFrom):
		return ErrDiscountNotStarted
	case now.After(dc.ValidUntil):
		return ErrDiscountExpired
	case redeemed:
		return ErrDiscountAlreadyUsed
	case dc.MaxUses != nil && dc.CurrentUses >= *dc.MaxUses:
		return ErrDiscountExhausted
	}

	if len(dc.ApplicableTo) == 0 {
		return nil
	}
	allowed := make(map[uint]struct{}, len(dc.ApplicableTo))
	for _, id := range dc.ApplicableTo {
		allowed[uint(id)] = struct{}{}
	}
	// one matching package is enough; the percentage still applies to the whole order
	for _, id := range packageIDs {
		if _, ok := allowed[id]; ok {
			return nil
		}
	}
	return ErrDiscountNotApplicable
}

func (s *discountService) CreateDiscountCode(ctx context.Context, in CreateDiscountInput) (*models.DiscountCode, error) {
	code := NormalizeCode(in.Code)
	switch {
	case code == "":
		return nil, invalid("code is required")
	case in.Percentage < 1 || in.Percentage > 100:
		return nil, invalid("percentage must be between 1 and 100")
	case in.MaxUses != nil && *in.MaxUses < 1:
		return nil, invalid("max uses must be positive")
	case !in.ValidUntil.After(in.ValidFrom):
		return nil, invalid("validUntil must be after validFrom")
	}

	applicable := make(pq.Int64Array, 0, len(in.ApplicableTo))
	for _, id := range in.ApplicableTo {
		applicable = append(applicable, int64(id))
	}
	dc := &models.DiscountCode{
		Code:         code,
		Percentage:   in.Percentage,
		MaxUses:      in.MaxUses,
		ValidFrom:    in.ValidFrom,
		ValidUntil:   in.ValidUntil,
		IsActive:     true,
		ApplicableTo: applicable,
	}
	if err := s.repo.Create(ctx, dc); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrDiscountCodeExists
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"code":       dc.Code,
		"percentage": dc.Percentage,
	}).Info("discount code created")
	return dc, nil
}

func (s *discountService) ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	return s.repo.List(ctx)
}

func (s *discountService) DeactivateDiscountCode(ctx context.Context, id uint) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDiscountCodeNotFound
	}
	return nil
}
