package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vastrakart/vastrakart/internal/catalog"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart version conflict")
)

type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error)
	UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int, expectedVersion *int64) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	queryCart := `
		SELECT id, user_id, version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	var c Cart
	err := r.db.QueryRow(ctx, queryCart, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	queryItems := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.id, p.name, p.original_price, p.discounted_price, p.stock, p.primary_image_url, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
	`

	rows, err := r.db.Query(ctx, queryItems, c.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items for cart %s: %w", c.ID, err)
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var item CartItem
		var p catalog.Product
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
			&p.ID,
			&p.Name,
			&p.OriginalPrice,
			&p.DiscountedPrice,
			&p.Stock,
			&p.PrimaryImageURL,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item for cart %s: %w", c.ID, err)
		}
		item.Product = &p
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items for cart %s: %w", c.ID, err)
	}

	c.Items = items

	return &c, nil
}

// UpsertItem sets (not increments) the quantity for one product row, creating
// the cart implicitly on first write. Quantity zero deletes the row. When
// expectedVersion is non-nil the write is rejected with ErrVersionConflict if
// the cart has moved past that version.
func (r *postgresRepository) UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int, expectedVersion *int64) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("repository: failed to rollback cart upsert")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit cart upsert: %w", commitErr)
			}
		}
	}()

	cartID, version, err := r.lockCart(ctx, tx, userID, true)
	if err != nil {
		return err
	}

	if expectedVersion != nil && *expectedVersion != version {
		return ErrVersionConflict
	}

	now := time.Now().UTC()

	if quantity == 0 {
		// Removal of an absent row is a no-op, not an error.
		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
		if err != nil {
			return fmt.Errorf("repository: failed to delete cart item: %w", err)
		}
	} else {
		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate cart item ID: %w", genErr)
		}

		queryItem := `
			INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (cart_id, product_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		`
		_, err = tx.Exec(ctx, queryItem, itemID, cartID, productID, quantity, now)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return catalog.ErrProductNotFound
			}
			return fmt.Errorf("repository: failed to upsert cart item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET version = version + 1, updated_at = $1 WHERE id = $2`, now, cartID)
	if err != nil {
		return fmt.Errorf("repository: failed to bump cart version: %w", err)
	}

	return nil
}

// Clear removes every item from the user's cart. Clearing an absent or
// already-empty cart succeeds.
func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("repository: failed to rollback cart clear")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit cart clear: %w", commitErr)
			}
		}
	}()

	cartID, _, err := r.lockCart(ctx, tx, userID, false)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			err = nil
			return nil
		}
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("repository: failed to clear cart items: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET version = version + 1, updated_at = $1 WHERE id = $2`, time.Now().UTC(), cartID)
	if err != nil {
		return fmt.Errorf("repository: failed to bump cart version: %w", err)
	}

	return nil
}

// lockCart row-locks the user's cart inside tx and returns its id and current
// version. With create set, a missing cart is inserted first so that a first
// upsert creates the cart implicitly.
func (r *postgresRepository) lockCart(ctx context.Context, tx pgx.Tx, userID uuid.UUID, create bool) (uuid.UUID, int64, error) {
	if create {
		cartID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, 0, fmt.Errorf("repository: failed to generate cart ID: %w", genErr)
		}

		now := time.Now().UTC()
		queryCart := `
			INSERT INTO carts (id, user_id, version, created_at, updated_at)
			VALUES ($1, $2, 0, $3, $3)
			ON CONFLICT (user_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, queryCart, cartID, userID, now); err != nil {
			return uuid.Nil, 0, fmt.Errorf("repository: failed to ensure cart for user %s: %w", userID, err)
		}
	}

	var cartID uuid.UUID
	var version int64
	err := tx.QueryRow(ctx, `SELECT id, version FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, 0, ErrCartNotFound
		}
		return uuid.Nil, 0, fmt.Errorf("repository: failed to lock cart for user %s: %w", userID, err)
	}

	return cartID, version, nil
}
