package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
)

// Service exposes coupon evaluation and redemption.
type Service interface {
	Apply(ctx context.Context, code string) (*models.Coupon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService constructs a coupon service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Apply resolves a code and redeems it in one step. The usage counter moves
// through a single conditional update, so two concurrent applies at the cap
// cannot both succeed; the loser surfaces as a state conflict. Unknown codes
// map to not-found.
func (s *service) Apply(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	applied, err := s.repo.Consume(ctx, coupon.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem coupon")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not redeemable")
	}

	redeemed, err := s.repo.FindByID(ctx, coupon.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon after redeem")
	}
	return redeemed, nil
}

// Get loads a coupon by ID without validity checks.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	return coupon, nil
}

