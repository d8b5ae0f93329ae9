package response

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int32           `json:"stock"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Category string          `json:"category,omitempty"`
}

type CartLine struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int32     `json:"quantity"`
	Size      string    `json:"size"`
	Color     string    `json:"color"`
	Product   *Product  `json:"product"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnitPrice is the current product price, zero when the product is gone.
func (l CartLine) UnitPrice() decimal.Decimal {
	if l.Product == nil {
		return decimal.Zero
	}
	return l.Product.Price
}

func (l CartLine) Matches(productID uuid.UUID, size string, color string) bool {
	return l.ProductID == productID && l.Size == size && l.Color == color
}

type Snapshot struct {
	Lines   []CartLine
	Loading bool
}

func EmptySnapshot() Snapshot {
	return Snapshot{Lines: []CartLine{}}
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s Snapshot) TotalItems() int64 {
	var total int64
	for _, l := range s.Lines {
		total += int64(l.Quantity)
	}
	return total
}

// TotalPrice sums price times quantity over lines whose product still exists.
func (s Snapshot) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		if l.Product == nil {
			continue
		}
		total = total.Add(l.Product.Price.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return total
}

func (s Snapshot) Find(productID uuid.UUID, size string, color string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.Matches(productID, size, color) {
			return l, true
		}
	}
	return CartLine{}, false
}

func (s Snapshot) FindLine(lineID uuid.UUID) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

func (s Snapshot) Clone() Snapshot {
	lines := make([]CartLine, len(s.Lines))
	copy(lines, s.Lines)
	return Snapshot{Lines: lines, Loading: s.Loading}
}

func (s Snapshot) Summary() Summary {
	return Summary{
		LineCount:  len(s.Lines),
		TotalItems: s.TotalItems(),
		TotalPrice: s.TotalPrice(),
	}
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	lines := s.Lines
	if lines == nil {
		lines = []CartLine{}
	}
	return json.Marshal(struct {
		Lines      []CartLine      `json:"lines"`
		TotalItems int64           `json:"totalItems"`
		TotalPrice decimal.Decimal `json:"totalPrice"`
		Loading    bool            `json:"loading"`
	}{
		Lines:      lines,
		TotalItems: s.TotalItems(),
		TotalPrice: s.TotalPrice(),
		Loading:    s.Loading,
	})
}

type Summary struct {
	LineCount  int             `json:"lineCount"`
	TotalItems int64           `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// ClampQuantity bounds a requested quantity to [1, stock]. A stock below one
// still allows a single item so an existing line is never zeroed.
func ClampQuantity(quantity int32, stock int32) int32 {
	if stock < 1 {
		stock = 1
	}
	if quantity < 1 {
		return 1
	}
	if quantity > stock {
		return stock
	}
	return quantity
}
