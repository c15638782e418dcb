package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	ErrUserRequired     = errors.New("user id is required")
	ErrProductRequired  = errors.New("product id is required")
)

type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int, expectedVersion *int64) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// GetCart returns the user's cart with derived totals. A user with no prior
// writes gets an empty cart, never a not-found error.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	if userID == uuid.Nil {
		return nil, ErrUserRequired
	}

	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return EmptyCart(userID), nil
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch cart")
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}

	c.Recalculate()
	return c, nil
}

// UpsertItem sets the stored quantity for productID. Quantity zero removes the
// row; callers wanting additive semantics compose a read with this write.
func (s *service) UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int, expectedVersion *int64) error {
	if userID == uuid.Nil {
		return ErrUserRequired
	}
	if productID == uuid.Nil {
		return ErrProductRequired
	}
	if quantity < 0 {
		return ErrNegativeQuantity
	}

	if err := s.repo.UpsertItem(ctx, userID, productID, quantity, expectedVersion); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			log.Debug().Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: cart upsert rejected, stale version")
			return ErrVersionConflict
		}
		return err
	}

	log.Debug().Stringer("user_id", userID).Stringer("product_id", productID).Int("quantity", quantity).Msg("service: cart item upserted")
	return nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return s.UpsertItem(ctx, userID, productID, 0, nil)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrUserRequired
	}

	if err := s.repo.Clear(ctx, userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return nil
}
