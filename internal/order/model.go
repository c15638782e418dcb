package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (os OrderStatus) String() string {
	return string(os)
}

// Valid reports whether the value is one of the known statuses.
func (os OrderStatus) Valid() bool {
	switch os {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions except an idempotent
// re-set to themselves.
func (os OrderStatus) Terminal() bool {
	return os == StatusDelivered || os == StatusCancelled
}

// OrderItem is a priced line frozen at order time. UnitPrice is the effective
// price the buyer paid; later catalog changes never touch it.
type OrderItem struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderID     uuid.UUID `json:"order_id" db:"order_id"`
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Order is an immutable snapshot of a cart at placement time. Only Status,
// TrackingNumber and PaymentProofURL may change after creation, and only
// through admin-driven status updates.
type Order struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"user_id" db:"user_id"`
	Status          OrderStatus `json:"status" db:"status"`
	PaymentStatus   string      `json:"payment_status" db:"payment_status"`
	Items           []OrderItem `json:"order_items" db:"-"`
	TotalAmount     float64     `json:"total_amount" db:"total_amount"`
	ShippingAddress string      `json:"shipping_address" db:"shipping_address"`
	TrackingNumber  *string     `json:"tracking_number,omitempty" db:"tracking_number"`
	PaymentProofURL *string     `json:"payment_proof_url,omitempty" db:"payment_proof_url"`
	IdempotencyKey  *string     `json:"-" db:"idempotency_key"`
	OrderDate       time.Time   `json:"order_date" db:"order_date"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// StatusTransition is one audit row recording an applied status change.
type StatusTransition struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	OrderID        uuid.UUID   `json:"order_id" db:"order_id"`
	PreviousStatus OrderStatus `json:"previous_status" db:"previous_status"`
	NextStatus     OrderStatus `json:"next_status" db:"next_status"`
	Actor          string      `json:"actor" db:"actor"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
