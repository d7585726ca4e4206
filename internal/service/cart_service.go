package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxCartQuantity = 20

// SessionLocker serializes work on one cart session across instances.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const memberSessionPrefix = "user_"

// UserSessionKey is the cart session owned by a signed-in user.
func UserSessionKey(userID uint) string {
	return memberSessionPrefix + strconv.FormatUint(uint64(userID), 10)
}

// IsMemberSession reports whether sessionID names a member's cart. Anonymous
// callers must never be able to address one.
func IsMemberSession(sessionID string) bool {
	return strings.HasPrefix(sessionID, memberSessionPrefix)
}

func cartLockKey(sessionID string) string {
	return "cart:" + sessionID
}

type CartLine struct {
	PackageID uint            `json:"packageId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available bool            `json:"available"`
}

type CartView struct {
	SessionID string          `json:"sessionId"`
	Items     []CartLine      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*CartView, error)
	AddItem(ctx context.Context, sessionID string, packageID uint, quantity int) (*CartView, error)
	UpdateQuantity(ctx context.Context, sessionID string, packageID uint, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, sessionID string, packageID uint) (*CartView, error)
	MergeCart(ctx context.Context, anonSessionID string, userID uint) (*CartView, error)
}

type cartService struct {
	tx       repository.Transactor
	carts    repository.CartRepository
	packages repository.PackageRepository
	locker   SessionLocker
}

func NewCartService(tx repository.Transactor, carts repository.CartRepository, packages repository.PackageRepository, locker SessionLocker) CartService {
	return &cartService{tx: tx, carts: carts, packages: packages, locker: locker}
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	if sessionID == "" {
		return nil, invalid("cart session is required")
	}
	items, err := s.carts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &CartView{SessionID: sessionID, Items: make([]CartLine, 0, len(items)), Subtotal: decimal.Zero}
	for _, it := range items {
		line := CartLine{PackageID: it.PackageID, Quantity: it.Quantity}
		if it.Package != nil {
			line.Name = it.Package.Name
			line.UnitPrice = it.Package.Price
			line.Available = it.Package.IsActive
		}
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		view.Items = append(view.Items, line)
	}
	return view, nil
}

func (s *cartService) AddItem(ctx context.Context, sessionID string, packageID uint, quantity int) (*CartView, error) {
	if quantity < 1 || quantity > maxCartQuantity {
		return nil, ErrInvalidQuantity
	}
	if err := s.requireActivePackage(ctx, packageID); err != nil {
		return nil, err
	}

	err := s.withSession(ctx, sessionID, func() error {
		current, err := s.quantityOf(ctx, sessionID, packageID)
		if err != nil {
			return err
		}
		if current+quantity > maxCartQuantity {
			return ErrInvalidQuantity
		}
		return s.carts.AddQuantity(ctx, nil, sessionID, packageID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID string, packageID uint, quantity int) (*CartView, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, sessionID, packageID)
	}
	if quantity < 0 || quantity > maxCartQuantity {
		return nil, ErrInvalidQuantity
	}

	err := s.withSession(ctx, sessionID, func() error {
		ok, err := s.carts.SetQuantity(ctx, sessionID, packageID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPackageNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID string, packageID uint) (*CartView, error) {
	err := s.withSession(ctx, sessionID, func() error {
		return s.carts.RemoveItem(ctx, sessionID, packageID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

// MergeCart moves an anonymous cart into the user's cart after sign-in.
// Quantities for the same package are summed and capped.
func (s *cartService) MergeCart(ctx context.Context, anonSessionID string, userID uint) (*CartView, error) {
	target := UserSessionKey(userID)
	if anonSessionID == "" || anonSessionID == target {
		return s.GetCart(ctx, target)
	}
	if IsMemberSession(anonSessionID) {
		return nil, ErrReservedSession
	}

	err := s.withSession(ctx, target, func() error {
		return s.withSession(ctx, anonSessionID, func() error {
			return s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
				anon, err := s.carts.LockSession(ctx, tx, anonSessionID)
				if err != nil {
					return err
				}
				if len(anon) == 0 {
					return nil
				}
				mine, err := s.carts.LockSession(ctx, tx, target)
				if err != nil {
					return err
				}
				have := make(map[uint]int, len(mine))
				for _, it := range mine {
					have[it.PackageID] = it.Quantity
				}
				for _, it := range anon {
					add := it.Quantity
					if have[it.PackageID]+add > maxCartQuantity {
						add = maxCartQuantity - have[it.PackageID]
					}
					if add <= 0 {
						continue
					}
					if err := s.carts.AddQuantity(ctx, tx, target, it.PackageID, add); err != nil {
						return err
					}
				}
				_, err = s.carts.DeleteBySession(ctx, tx, anonSessionID)
				return err
			})
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":      userID,
		"anon_session": anonSessionID,
	}).Info("cart merged")
	return s.GetCart(ctx, target)
}

func (s *cartService) requireActivePackage(ctx context.Context, packageID uint) error {
	pkg, err := s.packages.FindByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPackageNotFound
		}
		return err
	}
	if !pkg.IsActive {
		return ErrPackageUnavailable
	}
	return nil
}

func (s *cartService) quantityOf(ctx context.Context, sessionID string, packageID uint) (int, error) {
	items, err := s.carts.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if it.PackageID == packageID {
			return it.Quantity, nil
		}
	}
	return 0, nil
}

func (s *cartService) withSession(ctx context.Context, sessionID string, fn func() error) error {
	if sessionID == "" {
		return invalid("cart session is required")
	}
	return withSessionLock(ctx, s.locker, sessionID, fn)
}

func withSessionLock(ctx context.Context, locker SessionLocker, sessionID string, fn func() error) error {
	if locker == nil {
		return fn()
	}
	unlock, err := locker.Lock(ctx, cartLockKey(sessionID))
	if err != nil {
		return fmt.Errorf("lock cart %s: %w", sessionID, err)
	}
	defer unlock()
	return fn()
}
