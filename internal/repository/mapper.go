package repository

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/pkg/response"
	orderRequest "github.com/Alturino/storefront/order/pkg/request"
	orderResponse "github.com/Alturino/storefront/order/pkg/response"
)

func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              new(big.Int).Set(d.Coefficient()),
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func (r FindCartLinesByUserIdRow) Response() cartResponse.CartLine {
	line := cartResponse.CartLine{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Size:      r.Size,
		Color:     r.Color,
		CreatedAt: r.CreatedAt.Time,
	}
	if r.ProductName.Valid {
		line.Product = &cartResponse.Product{
			ID:       r.ProductID,
			Name:     r.ProductName.String,
			Price:    DecimalFromNumeric(r.ProductPrice),
			Stock:    r.ProductStock.Int32,
			ImageURL: r.ProductImage.String,
			Category: r.CategoryName.String,
		}
	}
	return line
}

func (o Order) Response() (orderResponse.Order, error) {
	shipping := orderRequest.Shipping{}
	if len(o.ShippingAddress) > 0 {
		if err := json.Unmarshal(o.ShippingAddress, &shipping); err != nil {
			return orderResponse.Order{}, fmt.Errorf(
				"failed unmarshaling shipping address of orderId=%s with error=%w",
				o.ID.String(),
				err,
			)
		}
	}
	return orderResponse.Order{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     DecimalFromNumeric(o.TotalAmount),
		ShippingAddress: shipping,
		Status:          orderResponse.Status(o.Status),
		Lines:           []orderResponse.OrderLine{},
		CreatedAt:       o.CreatedAt.Time,
		UpdatedAt:       o.UpdatedAt.Time,
	}, nil
}

func (i OrderItem) Response() orderResponse.OrderLine {
	return orderResponse.OrderLine{
		ID:        i.ID,
		OrderID:   i.OrderID,
		ProductID: i.ProductID,
		Quantity:  i.Quantity,
		Price:     DecimalFromNumeric(i.Price),
		Size:      i.Size,
		Color:     i.Color,
	}
}

// OrdersResponse maps orders and attaches their items, keeping the order of
// orders as given.
func OrdersResponse(orders []Order, items []OrderItem) ([]orderResponse.Order, error) {
	byOrder := make(map[string][]orderResponse.OrderLine, len(orders))
	for _, item := range items {
		key := item.OrderID.String()
		byOrder[key] = append(byOrder[key], item.Response())
	}

	res := make([]orderResponse.Order, 0, len(orders))
	for _, o := range orders {
		mapped, err := o.Response()
		if err != nil {
			return nil, err
		}
		if lines, ok := byOrder[o.ID.String()]; ok {
			mapped.Lines = lines
		}
		res = append(res, mapped)
	}
	return res, nil
}
