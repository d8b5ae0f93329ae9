package response

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(quantity int32, price *decimal.Decimal) CartLine {
	l := CartLine{ID: uuid.New(), ProductID: uuid.New(), Quantity: quantity}
	if price != nil {
		l.Product = &Product{ID: l.ProductID, Price: *price, Stock: 10}
	}
	return l
}

func TestSnapshotTotals(t *testing.T) {
	p1 := decimal.NewFromInt(10000)
	p2 := decimal.RequireFromString("2500.50")

	tests := []struct {
		name          string
		lines         []CartLine
		expectedItems int64
		expectedPrice decimal.Decimal
	}{
		{name: "empty", lines: nil, expectedItems: 0, expectedPrice: decimal.Zero},
		{
			name:          "single line",
			lines:         []CartLine{line(3, &p1)},
			expectedItems: 3,
			expectedPrice: decimal.NewFromInt(30000),
		},
		{
			name:          "multiple lines",
			lines:         []CartLine{line(2, &p1), line(2, &p2)},
			expectedItems: 4,
			expectedPrice: decimal.RequireFromString("25001"),
		},
		{
			name:          "missing product counts items but not price",
			lines:         []CartLine{line(1, &p1), line(4, nil)},
			expectedItems: 5,
			expectedPrice: decimal.NewFromInt(10000),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := Snapshot{Lines: test.lines}

			assert.Equal(t, test.expectedItems, s.TotalItems())
			assert.True(t, test.expectedPrice.Equal(s.TotalPrice()), "got %s", s.TotalPrice())

			// deriving twice on an unchanged snapshot yields the same values
			assert.Equal(t, s.TotalItems(), s.TotalItems())
			assert.True(t, s.TotalPrice().Equal(s.TotalPrice()))

			summary := s.Summary()
			assert.Equal(t, len(test.lines), summary.LineCount)
			assert.Equal(t, test.expectedItems, summary.TotalItems)
		})
	}
}

func TestSnapshotFind(t *testing.T) {
	productID := uuid.New()
	s := Snapshot{Lines: []CartLine{
		{ID: uuid.New(), ProductID: productID, Size: "M", Color: "red", Quantity: 1},
		{ID: uuid.New(), ProductID: productID, Size: "L", Color: "red", Quantity: 2},
	}}

	found, ok := s.Find(productID, "L", "red")
	require.True(t, ok)
	assert.Equal(t, int32(2), found.Quantity)

	_, ok = s.Find(productID, "L", "blue")
	assert.False(t, ok)

	byID, ok := s.FindLine(s.Lines[0].ID)
	require.True(t, ok)
	assert.Equal(t, "M", byID.Size)
}

func TestSnapshotClone(t *testing.T) {
	s := Snapshot{Lines: []CartLine{{Quantity: 1}}}
	clone := s.Clone()
	clone.Lines[0].Quantity = 5
	assert.Equal(t, int32(1), s.Lines[0].Quantity)
}

func TestSnapshotMarshalJSON(t *testing.T) {
	price := decimal.NewFromInt(10000)
	s := Snapshot{Lines: []CartLine{line(2, &price)}}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.EqualValues(t, 2, body["totalItems"])
	assert.Equal(t, "20000", body["totalPrice"])
	assert.Len(t, body["lines"], 1)

	raw, err = json.Marshal(Snapshot{})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lines":[]`)
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		quantity, stock, expected int32
	}{
		{quantity: 0, stock: 5, expected: 1},
		{quantity: -3, stock: 5, expected: 1},
		{quantity: 3, stock: 5, expected: 3},
		{quantity: 9, stock: 5, expected: 5},
		{quantity: 2, stock: 0, expected: 1},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, ClampQuantity(test.quantity, test.stock))
	}
}
