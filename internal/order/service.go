package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vastrakart/vastrakart/internal/cart"
	"github.com/vastrakart/vastrakart/internal/pricing"
)

// allowedTransitions is the admin status machine. The storefront's original
// behaviour allowed any transition; this table narrows it to the documented
// lifecycle, with cancellation reachable from every non-terminal state.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var (
	ErrEmptyShippingAddress    = errors.New("shipping address is required")
	ErrEmptyCart               = errors.New("cannot place an order from an empty cart")
	ErrNonPositiveTotal        = errors.New("order total must be positive")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// PlacementResult reports what happened at checkout. CartCleared is false when
// the order is durable but the follow-up cart clear did not go through; the
// cart is then queued for reconciliation rather than silently left stale.
type PlacementResult struct {
	Order       *Order
	CartCleared bool
}

// ClearPublisher hands a failed post-order cart clear to the reconciliation
// worker. Implementations must be safe for concurrent use.
type ClearPublisher interface {
	PublishPendingClear(ctx context.Context, userID, orderID uuid.UUID) error
}

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress, idempotencyKey string) (*PlacementResult, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAllOrders(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next OrderStatus, actor string, trackingNumber *string) (*Order, error)
}

type service struct {
	orderRepo Repository
	carts     cart.Service
	publisher ClearPublisher
}

// NewService wires the order service. publisher may be nil; pending clears are
// then only logged and reported, never retried in the background.
func NewService(orderRepo Repository, carts cart.Service, publisher ClearPublisher) Service {
	return &service{
		orderRepo: orderRepo,
		carts:     carts,
		publisher: publisher,
	}
}

// PlaceOrder converts the user's current cart into an immutable priced order.
// Item names and unit prices are copied at this instant; later catalog price
// changes never alter a placed order.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress, idempotencyKey string) (*PlacementResult, error) {
	if userID == uuid.Nil {
		return nil, cart.ErrUserRequired
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ErrEmptyShippingAddress
	}

	userCart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read cart for checkout: %w", err)
	}
	if len(userCart.Items) == 0 {
		log.Warn().Stringer("user_id", userID).Msg("service: checkout attempted with empty cart")
		return nil, ErrEmptyCart
	}

	items := make([]OrderItem, 0, len(userCart.Items))
	totalAmount := 0.0
	for _, cartItem := range userCart.Items {
		if cartItem.Product == nil {
			return nil, fmt.Errorf("service: cart item %s has no product attached", cartItem.ProductID)
		}
		unitPrice := pricing.EffectivePrice(cartItem.Product.OriginalPrice, cartItem.Product.DiscountedPrice)
		items = append(items, OrderItem{
			ProductID:   cartItem.ProductID,
			ProductName: cartItem.Product.Name,
			Quantity:    cartItem.Quantity,
			UnitPrice:   unitPrice,
		})
		totalAmount += unitPrice * float64(cartItem.Quantity)
	}

	if totalAmount <= 0 {
		return nil, ErrNonPositiveTotal
	}

	newOrder := &Order{
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   "unpaid",
		Items:           items,
		TotalAmount:     totalAmount,
		ShippingAddress: shippingAddress,
		OrderDate:       time.Now().UTC(),
	}
	if idempotencyKey != "" {
		newOrder.IdempotencyKey = &idempotencyKey
	}

	_, err = s.orderRepo.CreateOrder(ctx, newOrder)
	if err != nil {
		if errors.Is(err, ErrDuplicateOrder) && idempotencyKey != "" {
			existing, lookupErr := s.orderRepo.GetByIdempotencyKey(ctx, userID, idempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("service: failed to load order for reused idempotency key: %w", lookupErr)
			}
			log.Info().Stringer("order_id", existing.ID).Stringer("user_id", userID).Msg("service: idempotency key reused, returning existing order")
			return &PlacementResult{Order: existing, CartCleared: true}, nil
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", newOrder.ID).Stringer("user_id", userID).Float64("total_amount", totalAmount).Msg("service: order created")

	// The order is durable from here on. A failed clear must never roll it
	// back; it is handed to the reconciliation queue instead.
	if err := s.carts.Clear(ctx, userID); err != nil {
		log.Warn().Err(err).Stringer("order_id", newOrder.ID).Stringer("user_id", userID).Msg("service: cart clear after checkout failed, queueing reconciliation")
		if s.publisher != nil {
			if pubErr := s.publisher.PublishPendingClear(ctx, userID, newOrder.ID); pubErr != nil {
				log.Error().Err(pubErr).Stringer("order_id", newOrder.ID).Msg("service: failed to queue cart clear reconciliation")
			}
		}
		return &PlacementResult{Order: newOrder, CartCleared: false}, nil
	}

	return &PlacementResult{Order: newOrder, CartCleared: true}, nil
}

// GetOrder fetches one order scoped to its owner. An order belonging to a
// different user is reported as not found, not as forbidden.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	if o.UserID != userID {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", userID).Msg("service: order requested by non-owner")
		return nil, ErrOrderNotFound
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list user orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListAllOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus drives the admin status machine. Re-setting the current status
// succeeds idempotently, terminal states included; every applied transition is
// audited with previous state, next state and actor.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next OrderStatus, actor string, trackingNumber *string) (*Order, error) {
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == next {
		log.Info().Stringer("order_id", orderID).Stringer("status", next).Msg("service: status already set, no update needed")
		return current, nil
	}

	if !allowedTransitions[current.Status][next] {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("next_status", next).
			Str("actor", actor).
			Msg("service: rejected status transition")
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, next)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, current.Status, next, actor, trackingNumber); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		if errors.Is(err, ErrStatusConflict) {
			// A concurrent transition won the race; the transition we validated
			// no longer starts from the order's real status.
			log.Warn().
				Stringer("order_id", orderID).
				Stringer("stale_status", current.Status).
				Stringer("next_status", next).
				Str("actor", actor).
				Msg("service: status transition lost race to concurrent update")
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, next)
		}
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Stringer("new_status", next).
		Str("actor", actor).
		Msg("service: order status updated")

	updated, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload order after status update: %w", err)
	}

	return updated, nil
}
