package basket

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ItemView is the JSON shape of a basket item.
type ItemView struct {
	ID                 string      `json:"id"`
	ProductName        string      `json:"productName"`
	Price              json.Number `json:"price"`
	Quantity           int         `json:"quantity"`
	IsDiscounted       bool        `json:"isDiscounted"`
	DiscountPercentage json.Number `json:"discountPercentage"`
	TotalPrice         json.Number `json:"totalPrice"`
}

// View is the JSON shape of a priced basket.
type View struct {
	ID                 string      `json:"id"`
	Items              []ItemView  `json:"items"`
	DiscountCode       *string     `json:"discountCode"`
	DiscountPercentage json.Number `json:"discountPercentage"`
	Subtotal           json.Number `json:"subtotal"`
	DiscountAmount     json.Number `json:"discountAmount"`
	TotalWithoutVat    json.Number `json:"totalWithoutVat"`
	VatAmount          json.Number `json:"vatAmount"`
	TotalWithVat       json.Number `json:"totalWithVat"`
}

// NewView prices b and shapes it for responses.
func NewView(b Basket) View {
	summary := b.Summary()
	items := make([]ItemView, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, ItemView{
			ID:                 it.ID.String(),
			ProductName:        it.ProductName,
			Price:              number(it.Price),
			Quantity:           it.Quantity,
			IsDiscounted:       it.IsDiscounted,
			DiscountPercentage: number(it.DiscountPercentage),
			TotalPrice:         money(it.Total()),
		})
	}
	return View{
		ID:                 b.ID.String(),
		Items:              items,
		DiscountCode:       b.DiscountCode,
		DiscountPercentage: number(b.DiscountPercentage),
		Subtotal:           money(summary.Subtotal),
		DiscountAmount:     money(summary.DiscountAmount),
		TotalWithoutVat:    money(summary.TotalWithoutVat),
		VatAmount:          money(summary.Vat),
		TotalWithVat:       money(summary.TotalWithVat),
	}
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
