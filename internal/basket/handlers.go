package basket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/basket-api/internal/common"
)

// Handler wires basket services to HTTP.
type Handler struct {
	Svc      *Service
	Logger   zerolog.Logger
	BasePath string
}

// Routes returns the basket router. Middlewares passed in wrap only the mutating routes.
func (h *Handler) Routes(writes ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Get)
	r.Get("/{id}/total", h.Total)
	r.Get("/{id}/total-without-vat", h.TotalWithoutVat)
	r.Group(func(g chi.Router) {
		g.Use(writes...)
		g.Post("/", h.Create)
		g.Post("/{id}/items", h.AddItem)
		g.Delete("/{id}/items/{itemId}", h.RemoveItem)
		g.Post("/{id}/discount-code", h.ApplyDiscountCode)
		g.Delete("/{id}/discount-code", h.ClearDiscountCode)
	})
	return r
}

// Create creates an empty basket.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", h.basePath()+"/"+b.ID.String())
	common.Data(w, http.StatusCreated, map[string]any{"id": b.ID.String()})
}

// Get returns the priced basket.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	b, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(b))
}

// AddItem adds or merges a line item and returns its id.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	var payload addItemRequest
	if err := decodeJSONBody(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := h.Svc.AddItem(r.Context(), id, payload.toNewItem())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"id": itemID.String()})
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemId", "invalid item id")
	if !ok {
		return
	}
	removed, err := h.Svc.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "basket or item not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyDiscountCode applies an active discount code to the basket.
func (h *Handler) ApplyDiscountCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	var payload applyDiscountRequest
	if err := decodeJSONBody(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	applied, err := h.Svc.ApplyDiscountCode(r.Context(), id, *payload.DiscountCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !applied {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "basket or discount code not found", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"discountCode": *payload.DiscountCode})
}

// ClearDiscountCode removes the applied discount code.
func (h *Handler) ClearDiscountCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	cleared, err := h.Svc.ClearDiscountCode(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !cleared {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "basket not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Total returns the basket total including VAT.
func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, true)
}

// TotalWithoutVat returns the basket total excluding VAT.
func (h *Handler) TotalWithoutVat(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, false)
}

func (h *Handler) total(w http.ResponseWriter, r *http.Request, includeVat bool) {
	id, ok := pathID(w, r, "id", "invalid basket id")
	if !ok {
		return
	}
	total, err := h.Svc.Total(r.Context(), id, includeVat)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"total":       json.Number(total.StringFixed(2)),
		"includesVat": includeVat,
	})
}

func (h *Handler) basePath() string {
	if p := strings.TrimRight(h.BasePath, "/"); p != "" {
		return p
	}
	return "/api/basket"
}

func pathID(w http.ResponseWriter, r *http.Request, param, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, msg, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, vErr.Reason, map[string]any{"field": vErr.Field})
	case errors.Is(err, ErrInvalidArgument):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "basket not found", nil)
	case errors.Is(err, ErrUnavailable):
		h.Logger.Warn().Err(err).Str("path", r.URL.Path).Msg("basket store unavailable")
		w.Header().Set("Retry-After", "5")
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeUnavailable, "basket store temporarily unavailable", nil)
	default:
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("basket request failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unable to process basket request", nil)
	}
}
