package request

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	orderRequest "github.com/Alturino/storefront/order/pkg/request"
)

type OrderData struct {
	OrderID         uuid.UUID             `validate:"required" json:"orderId"`
	TotalAmount     decimal.Decimal       `                    json:"totalAmount"`
	Status          string                `validate:"required" json:"status"`
	ShippingAddress orderRequest.Shipping `validate:"-"        json:"shippingAddress"`
	CreatedAt       time.Time             `                    json:"createdAt"`
}

type UserInfo struct {
	UserID   uuid.UUID `validate:"required" json:"userId"`
	FullName string    `                    json:"fullName"`
	Email    string    `                    json:"email"`
}

type CartItem struct {
	ProductID   uuid.UUID       `validate:"required" json:"productId"`
	ProductName string          `                    json:"productName"`
	Quantity    int32           `validate:"gte=1"    json:"quantity"`
	Price       decimal.Decimal `                    json:"price"`
	Size        string          `                    json:"size"`
	Color       string          `                    json:"color"`
	TotalPrice  decimal.Decimal `                    json:"totalPrice"`
}

// NotifyAdmin is the body posted to the notify-admin endpoint after an order
// was placed.
type NotifyAdmin struct {
	OrderData OrderData  `validate:"required"          json:"orderData"`
	UserInfo  UserInfo   `validate:"required"          json:"userInfo"`
	CartItems []CartItem `validate:"required,min=1,dive" json:"cartItems"`
}

func (n NotifyAdmin) MarshalZerologObject(e *zerolog.Event) {
	e.Str("orderId", n.OrderData.OrderID.String()).
		Str("totalAmount", n.OrderData.TotalAmount.String()).
		Str("userId", n.UserInfo.UserID.String()).
		Int("items", len(n.CartItems))
}
