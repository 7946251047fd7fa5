package basket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/resilience"
	"github.com/noah-isme/basket-api/internal/store"
)

type idResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type totalResponse struct {
	Data struct {
		Total       json.Number `json:"total"`
		IncludesVat bool        `json:"includesVat"`
	} `json:"data"`
}

type viewResponse struct {
	Data basket.View `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, discount.Seed(context.Background(), st, discount.DefaultCodes()))
	h := &basket.Handler{Svc: &basket.Service{Store: st}, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Mount("/api/basket", h.Routes())
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBasket(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/basket/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[idResponse](t, rec).Data.ID
	require.Equal(t, "/api/basket/"+id, rec.Header().Get("Location"))
	return id
}

func total(t *testing.T, h http.Handler, id string, withVat bool) string {
	t.Helper()
	path := "/api/basket/" + id + "/total"
	if !withVat {
		path += "-without-vat"
	}
	rec := do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[totalResponse](t, rec)
	require.Equal(t, withVat, resp.Data.IncludesVat)
	return resp.Data.Total.String()
}

func TestBasketFlow(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)

	rec := do(t, h, http.MethodPost, "/api/basket/"+id+"/items", `{"productName":"Widget","price":100.00,"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	itemID := decode[idResponse](t, rec).Data.ID
	_, err := uuid.Parse(itemID)
	require.NoError(t, err)

	require.Equal(t, "120.00", total(t, h, id, true))
	require.Equal(t, "100.00", total(t, h, id, false))

	rec = do(t, h, http.MethodPost, "/api/basket/"+id+"/discount-code", `{"discountCode":"SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "90.00", total(t, h, id, false))
	require.Equal(t, "108.00", total(t, h, id, true))

	rec = do(t, h, http.MethodGet, "/api/basket/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[viewResponse](t, rec).Data
	require.Equal(t, id, view.ID)
	require.Len(t, view.Items, 1)
	require.Equal(t, itemID, view.Items[0].ID)
	require.Equal(t, "SAVE10", *view.DiscountCode)
	require.EqualValues(t, "100.00", view.Subtotal)
	require.EqualValues(t, "10.00", view.DiscountAmount)
	require.EqualValues(t, "18.00", view.VatAmount)

	rec = do(t, h, http.MethodDelete, "/api/basket/"+id+"/discount-code", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "120.00", total(t, h, id, true))

	rec = do(t, h, http.MethodDelete, "/api/basket/"+id+"/items/"+itemID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "0.00", total(t, h, id, true))

	rec = do(t, h, http.MethodDelete, "/api/basket/"+id+"/items/"+itemID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItemMergesOverHTTP(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)

	body := `{"productName":"Widget","price":"10.333","quantity":1,"isDiscounted":false}`
	first := decode[idResponse](t, do(t, h, http.MethodPost, "/api/basket/"+id+"/items", body)).Data.ID
	body = `{"productName":"Widget","price":"10.333","quantity":2}`
	second := decode[idResponse](t, do(t, h, http.MethodPost, "/api/basket/"+id+"/items", body)).Data.ID
	require.Equal(t, first, second)

	view := decode[viewResponse](t, do(t, h, http.MethodGet, "/api/basket/"+id, "")).Data
	require.Len(t, view.Items, 1)
	require.Equal(t, 3, view.Items[0].Quantity)
	require.EqualValues(t, "10.333", view.Items[0].Price)
	require.EqualValues(t, "31.00", view.Items[0].TotalPrice)
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)
	path := "/api/basket/" + id + "/items"

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty name", `{"productName":"","price":1,"quantity":1}`, "Invalid product name"},
		{"zero price", `{"productName":"Widget","price":0,"quantity":1}`, "Price must be greater than zero"},
		{"zero quantity", `{"productName":"Widget","price":1,"quantity":0}`, "Quantity must be greater than zero"},
		{"percentage too high", `{"productName":"Widget","price":1,"quantity":1,"isDiscounted":true,"discountPercentage":101}`, "Discount percentage must be between 0 and 100"},
		{"missing price", `{"productName":"Widget","quantity":1}`, "validation failed"},
		{"unknown field", `{"productName":"Widget","price":1,"quantity":1,"colour":"red"}`, "invalid request body"},
		{"malformed json", `{"productName":`, "invalid request body"},
		{"fractional quantity", `{"productName":"Widget","price":1,"quantity":1.5}`, "invalid request body"},
		{"quantity over column limit", `{"productName":"Widget","price":1,"quantity":2147483648}`, "Quantity must not exceed 2147483647"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, path, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[errorResponse](t, rec)
			require.Equal(t, "BAD_REQUEST", resp.Error.Code)
			require.Equal(t, tc.message, resp.Error.Message)
		})
	}

	view := decode[viewResponse](t, do(t, h, http.MethodGet, "/api/basket/"+id, "")).Data
	require.Empty(t, view.Items)
}

func TestValidationDetailsNameField(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)

	rec := do(t, h, http.MethodPost, "/api/basket/"+id+"/items", `{"productName":"Widget","price":-5,"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "price", decode[errorResponse](t, rec).Error.Details["field"])

	rec = do(t, h, http.MethodPost, "/api/basket/"+id+"/items", `{"productName":"Widget"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode[errorResponse](t, rec).Error.Details
	require.Equal(t, "is required", details["price"])
	require.Equal(t, "is required", details["quantity"])
}

func TestUnknownBasket(t *testing.T) {
	h := newRouter(t)
	missing := uuid.NewString()

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/basket/" + missing, ""},
		{http.MethodGet, "/api/basket/" + missing + "/total", ""},
		{http.MethodGet, "/api/basket/" + missing + "/total-without-vat", ""},
		{http.MethodPost, "/api/basket/" + missing + "/items", `{"productName":"Widget","price":1,"quantity":1}`},
		{http.MethodDelete, "/api/basket/" + missing + "/items/" + uuid.NewString(), ""},
		{http.MethodPost, "/api/basket/" + missing + "/discount-code", `{"discountCode":"SAVE10"}`},
		{http.MethodDelete, "/api/basket/" + missing + "/discount-code", ""},
	} {
		rec := do(t, h, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		require.Equal(t, "NOT_FOUND", decode[errorResponse](t, rec).Error.Code)
	}
}

func TestInvalidIdentifiers(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)

	rec := do(t, h, http.MethodGet, "/api/basket/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid basket id", decode[errorResponse](t, rec).Error.Message)

	rec = do(t, h, http.MethodDelete, "/api/basket/"+id+"/items/42", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid item id", decode[errorResponse](t, rec).Error.Message)
}

func TestApplyDiscountCode(t *testing.T) {
	h := newRouter(t)
	id := createBasket(t, h)
	path := "/api/basket/" + id + "/discount-code"

	rec := do(t, h, http.MethodPost, path, `{"discountCode":"save10"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{"discountCode":""}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{"discountCode":"SAVE30"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"discountCode":"SAVE30"`)
}

func TestWriteMiddlewareWrapsOnlyMutations(t *testing.T) {
	st := store.NewMemory()
	h := &basket.Handler{Svc: &basket.Service{Store: st}, Logger: zerolog.Nop()}
	var wrapped []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = append(wrapped, r.Method)
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	r.Mount("/api/basket", h.Routes(mw))

	id := createBasket(t, r)
	_ = do(t, r, http.MethodGet, "/api/basket/"+id, "")
	_ = do(t, r, http.MethodGet, "/api/basket/"+id+"/total", "")
	_ = do(t, r, http.MethodDelete, "/api/basket/"+id+"/discount-code", "")
	require.Equal(t, []string{http.MethodPost, http.MethodDelete}, wrapped)
}

func TestStoreUnavailable(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "postgres", MinCalls: 1, Cooldown: time.Minute})
	breaker.Report(context.Background(), false)
	guarded := &store.Guarded{Next: store.NewMemory(), Breaker: breaker}
	h := &basket.Handler{Svc: &basket.Service{Store: guarded}, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Mount("/api/basket", h.Routes())

	rec := do(t, r, http.MethodGet, "/api/basket/"+uuid.NewString(), "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "5", rec.Header().Get("Retry-After"))
	require.Equal(t, "UNAVAILABLE", decode[errorResponse](t, rec).Error.Code)

	rec = do(t, r, http.MethodPost, "/api/basket/", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
