package basket

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/pricing"
)

// Basket is a shopping basket with its line items and the applied discount code, if any.
type Basket struct {
	ID                 uuid.UUID
	Items              []Item
	DiscountCode       *string
	DiscountPercentage decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item is a single product line in a basket.
type Item struct {
	ID                 uuid.UUID
	BasketID           uuid.UUID
	ProductName        string
	Price              decimal.Decimal
	Quantity           int
	IsDiscounted       bool
	DiscountPercentage decimal.Decimal
}

// MergeKey identifies items that collapse into one line when added repeatedly.
type MergeKey struct {
	ProductName        string
	IsDiscounted       bool
	DiscountPercentage string
}

// MergeKey returns the key the item merges under. Equal percentages with
// different scales (10 and 10.00) produce the same key.
func (i Item) MergeKey() MergeKey {
	return MergeKey{
		ProductName:        i.ProductName,
		IsDiscounted:       i.IsDiscounted,
		DiscountPercentage: i.DiscountPercentage.String(),
	}
}

// Line converts the item into the pricing engine's input.
func (i Item) Line() pricing.Line {
	return pricing.Line{
		Price:              i.Price,
		Quantity:           i.Quantity,
		IsDiscounted:       i.IsDiscounted,
		DiscountPercentage: i.DiscountPercentage,
	}
}

// Total is the item amount after its own discount.
func (i Item) Total() decimal.Decimal {
	return pricing.ItemTotal(i.Line())
}

// Lines returns pricing lines in item order.
func (b *Basket) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(b.Items))
	for _, it := range b.Items {
		lines = append(lines, it.Line())
	}
	return lines
}

// Summary prices the basket.
func (b *Basket) Summary() pricing.Summary {
	return pricing.Compute(b.Lines(), b.DiscountPercentage)
}

// Total returns the basket total with or without VAT.
func (b *Basket) Total(includeVat bool) decimal.Decimal {
	summary := b.Summary()
	if includeVat {
		return summary.TotalWithVat
	}
	return summary.TotalWithoutVat
}

// AddItem merges item into an existing line with the same MergeKey or appends it.
// The returned id is the id of the line that now holds the quantity. A merge
// that would push the line past MaxQuantity leaves the basket unchanged and
// returns a *ValidationError.
func (b *Basket) AddItem(item Item) (uuid.UUID, error) {
	key := item.MergeKey()
	for i := range b.Items {
		if b.Items[i].MergeKey() != key {
			continue
		}
		if item.Quantity > MaxQuantity-b.Items[i].Quantity {
			return uuid.Nil, quantityTooLarge()
		}
		b.Items[i].Quantity += item.Quantity
		return b.Items[i].ID, nil
	}
	if item.Quantity > MaxQuantity {
		return uuid.Nil, quantityTooLarge()
	}
	item.BasketID = b.ID
	b.Items = append(b.Items, item)
	return item.ID, nil
}

// RemoveItem deletes the line with the given id and reports whether it existed.
func (b *Basket) RemoveItem(itemID uuid.UUID) bool {
	for i := range b.Items {
		if b.Items[i].ID == itemID {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyDiscount records code as the basket's discount, replacing any previous one.
func (b *Basket) ApplyDiscount(code discount.Code) {
	name := code.Code
	b.DiscountCode = &name
	b.DiscountPercentage = code.Percentage
}

// ClearDiscount removes the applied discount code.
func (b *Basket) ClearDiscount() {
	b.DiscountCode = nil
	b.DiscountPercentage = decimal.Zero
}

// Clone returns a deep copy so stores never share item slices with callers.
func (b Basket) Clone() Basket {
	out := b
	if b.Items != nil {
		out.Items = make([]Item, len(b.Items))
		copy(out.Items, b.Items)
	}
	if b.DiscountCode != nil {
		code := *b.DiscountCode
		out.DiscountCode = &code
	}
	return out
}
