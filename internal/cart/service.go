package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
)

// Service exposes the session cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (*Summary, error)
	Add(ctx context.Context, sessionID string, productID uuid.UUID, quantity int, override bool) (*Summary, error)
	Remove(ctx context.Context, sessionID string, productID uuid.UUID) (*Summary, error)
	Clear(ctx context.Context, sessionID string) error
	ApplyCoupon(ctx context.Context, sessionID, code string) (*Summary, error)
	RemoveCoupon(ctx context.Context, sessionID string) (*Summary, error)
}

// SummaryLine is a cart line joined with its current catalog product.
type SummaryLine struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// CouponInfo describes the coupon attached to the cart.
type CouponInfo struct {
	ID              uuid.UUID
	Code            string
	DiscountPercent int
}

// Summary is the reconciled, priced view of a session cart.
type Summary struct {
	Lines              []SummaryLine
	Coupon             *CouponInfo
	ItemCount          int
	Total              decimal.Decimal
	Discount           decimal.Decimal
	TotalAfterDiscount decimal.Decimal
}

type catalog interface {
	FindAvailableByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type couponReader interface {
	Apply(ctx context.Context, code string) (*models.Coupon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

type service struct {
	store   *Store
	catalog catalog
	coupons couponReader
	now     func() time.Time
}

// NewService constructs a cart service instance.
func NewService(store *Store, productCatalog catalog, coupons couponReader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if productCatalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon reader required")
	}
	return &service{
		store:   store,
		catalog: productCatalog,
		coupons: coupons,
		now:     time.Now,
	}, nil
}

// Get returns the reconciled cart. Lines whose product vanished or became
// unavailable are dropped and the cleaned state is written back, so a cart
// never silently prices phantom lines at checkout.
func (s *service) Get(ctx context.Context, sessionID string) (*Summary, error) {
	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state)
}

// Add puts quantity of the product into the cart. With override the quantity
// replaces the stored one, otherwise it accumulates; a resulting quantity of
// zero or less removes the line. The unit price snapshot is taken only when
// the line is first created.
func (s *service) Add(ctx context.Context, sessionID string, productID uuid.UUID, quantity int, override bool) (*Summary, error) {
	product, err := s.catalog.FindAvailableByID(ctx, productID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := productID.String()
	line, exists := state.Lines[key]
	if !exists {
		line = Line{UnitPrice: product.Price}
	}

	if override {
		line.Quantity = quantity
	} else {
		line.Quantity += quantity
	}

	if line.Quantity <= 0 {
		delete(state.Lines, key)
	} else {
		state.Lines[key] = line
	}

	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state)
}

// Remove drops the product line from the cart. Removing an absent line is a
// no-op.
func (s *service) Remove(ctx context.Context, sessionID string, productID uuid.UUID) (*Summary, error) {
	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	delete(state.Lines, productID.String())

	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state)
}

// Clear removes the whole cart for the session.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

// ApplyCoupon redeems the code and attaches the coupon to the cart. The
// usage counter moves here, at apply time. A cart carries at most one
// coupon; applying a second replaces the first.
func (s *service) ApplyCoupon(ctx context.Context, sessionID, code string) (*Summary, error) {
	coupon, err := s.coupons.Apply(ctx, code)
	if err != nil {
		return nil, err
	}

	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.CouponID = &coupon.ID
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state)
}

// RemoveCoupon detaches any coupon from the cart.
func (s *service) RemoveCoupon(ctx context.Context, sessionID string) (*Summary, error) {
	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.CouponID = nil
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state)
}

// reconcile joins the state against the catalog, drops stale lines and
// coupons, persists any repairs, and prices the result.
func (s *service) reconcile(ctx context.Context, sessionID string, state *State) (*Summary, error) {
	ids := make([]uuid.UUID, 0, len(state.Lines))
	changed := false

	for key := range state.Lines {
		id, err := uuid.Parse(key)
		if err != nil {
			delete(state.Lines, key)
			changed = true
			continue
		}
		ids = append(ids, id)
	}

	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}
	productsByID := make(map[string]models.Product, len(products))
	for _, p := range products {
		productsByID[p.ID.String()] = p
	}

	lines := make([]SummaryLine, 0, len(state.Lines))
	for key, line := range state.Lines {
		product, ok := productsByID[key]
		if !ok {
			delete(state.Lines, key)
			changed = true
			continue
		}
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		lines = append(lines, SummaryLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })

	var couponInfo *CouponInfo
	if state.CouponID != nil {
		coupon, err := s.coupons.Get(ctx, *state.CouponID)
		switch {
		case err != nil && pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound:
			state.CouponID = nil
			changed = true
		case err != nil:
			return nil, err
		case !coupon.InWindow(s.now()):
			state.CouponID = nil
			changed = true
		default:
			couponInfo = &CouponInfo{
				ID:              coupon.ID,
				Code:            coupon.Code,
				DiscountPercent: coupon.DiscountPercent,
			}
		}
	}

	if changed {
		if err := s.store.Save(ctx, sessionID, state); err != nil {
			return nil, err
		}
	}

	total := decimal.Zero
	count := 0
	for _, line := range lines {
		total = total.Add(line.Subtotal)
		count += line.Quantity
	}

	discount := decimal.Zero
	if couponInfo != nil {
		discount = total.
			Mul(decimal.NewFromInt(int64(couponInfo.DiscountPercent))).
			Div(decimal.NewFromInt(100)).
			Round(2)
	}

	return &Summary{
		Lines:              lines,
		Coupon:             couponInfo,
		ItemCount:          count,
		Total:              total,
		Discount:           discount,
		TotalAfterDiscount: total.Sub(discount),
	}, nil
}
