package basket

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/common"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type addItemRequest struct {
	ProductName        *string          `json:"productName" validate:"required"`
	Price              *decimal.Decimal `json:"price" validate:"required"`
	Quantity           *int             `json:"quantity" validate:"required"`
	IsDiscounted       bool             `json:"isDiscounted"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage"`
}

func (r addItemRequest) toNewItem() NewItem {
	item := NewItem{
		ProductName:  *r.ProductName,
		Price:        *r.Price,
		Quantity:     *r.Quantity,
		IsDiscounted: r.IsDiscounted,
	}
	if r.DiscountPercentage != nil {
		item.DiscountPercentage = *r.DiscountPercentage
	}
	return item
}

type applyDiscountRequest struct {
	DiscountCode *string `json:"discountCode" validate:"required"`
}

// decodeJSONBody strictly decodes the body into dest and runs struct validation.
func decodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return common.BadRequest("invalid request body", err).WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *common.AppError {
	appErr := common.BadRequest("validation failed", err)
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		appErr.Details = details
	}
	return appErr
}

func validationMessage(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return "is required"
	}
	return "is invalid"
}
