package request

import (
	"github.com/google/uuid"
)

// MaxQuantity bounds the quantity of a single cart line.
const MaxQuantity int32 = 9999

type AddItem struct {
	ProductID uuid.UUID `validate:"required"                json:"productId"`
	Quantity  int32     `validate:"omitempty,gte=1,lte=9999" json:"quantity"`
	Size      string    `validate:"max=32"                   json:"size"`
	Color     string    `validate:"max=32"                   json:"color"`
}

// WithDefaults fills in the quantity of one when none was given.
func (a AddItem) WithDefaults() AddItem {
	if a.Quantity == 0 {
		a.Quantity = 1
	}
	return a
}

type UpdateQuantity struct {
	Quantity int32 `validate:"required" json:"quantity"`
}
