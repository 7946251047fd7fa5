package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
)

// Redis stores each basket and discount code as a JSON document under its own key.
type Redis struct {
	R      *redis.Client
	Prefix string
	// BasketTTL expires idle baskets; zero keeps them forever.
	BasketTTL time.Duration
}

type itemRecord struct {
	ID                 uuid.UUID       `json:"id"`
	ProductName        string          `json:"productName"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
	IsDiscounted       bool            `json:"isDiscounted"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
}

type basketRecord struct {
	ID                 uuid.UUID       `json:"id"`
	Items              []itemRecord    `json:"items"`
	DiscountCode       *string         `json:"discountCode,omitempty"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type codeRecord struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
	IsActive   bool            `json:"isActive"`
}

func (s *Redis) basketKey(id uuid.UUID) string {
	return s.prefix() + "basket:" + id.String()
}

func (s *Redis) codeKey(code string) string {
	return s.prefix() + "discount:" + code
}

func (s *Redis) prefix() string {
	if s.Prefix == "" {
		return "basket-api:"
	}
	return s.Prefix
}

func (s *Redis) GetBasket(ctx context.Context, id uuid.UUID) (basket.Basket, error) {
	defer observe(DriverRedis, "get_basket", time.Now())
	raw, err := s.R.Get(ctx, s.basketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return basket.Basket{}, basket.ErrNotFound
		}
		return basket.Basket{}, fmt.Errorf("redis get basket: %w", err)
	}
	var rec basketRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return basket.Basket{}, fmt.Errorf("decode basket %s: %w", id, err)
	}
	b := basket.Basket{
		ID:                 rec.ID,
		Items:              make([]basket.Item, 0, len(rec.Items)),
		DiscountCode:       rec.DiscountCode,
		DiscountPercentage: rec.DiscountPercentage,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
	for _, it := range rec.Items {
		b.Items = append(b.Items, basket.Item{
			ID:                 it.ID,
			BasketID:           rec.ID,
			ProductName:        it.ProductName,
			Price:              it.Price,
			Quantity:           it.Quantity,
			IsDiscounted:       it.IsDiscounted,
			DiscountPercentage: it.DiscountPercentage,
		})
	}
	return b, nil
}

func (s *Redis) SaveBasket(ctx context.Context, b basket.Basket) error {
	defer observe(DriverRedis, "save_basket", time.Now())
	rec := basketRecord{
		ID:                 b.ID,
		Items:              make([]itemRecord, 0, len(b.Items)),
		DiscountCode:       b.DiscountCode,
		DiscountPercentage: b.DiscountPercentage,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	for _, it := range b.Items {
		rec.Items = append(rec.Items, itemRecord{
			ID:                 it.ID,
			ProductName:        it.ProductName,
			Price:              it.Price,
			Quantity:           it.Quantity,
			IsDiscounted:       it.IsDiscounted,
			DiscountPercentage: it.DiscountPercentage,
		})
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode basket %s: %w", b.ID, err)
	}
	if err := s.R.Set(ctx, s.basketKey(b.ID), payload, s.BasketTTL).Err(); err != nil {
		return fmt.Errorf("redis set basket: %w", err)
	}
	return nil
}

func (s *Redis) DeleteBasket(ctx context.Context, id uuid.UUID) error {
	if err := s.R.Del(ctx, s.basketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete basket: %w", err)
	}
	return nil
}

func (s *Redis) FindActiveDiscountCode(ctx context.Context, code string) (discount.Code, error) {
	defer observe(DriverRedis, "find_discount_code", time.Now())
	raw, err := s.R.Get(ctx, s.codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return discount.Code{}, discount.ErrNotFound
		}
		return discount.Code{}, fmt.Errorf("redis get discount code: %w", err)
	}
	var rec codeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return discount.Code{}, fmt.Errorf("decode discount code %q: %w", code, err)
	}
	if !rec.IsActive {
		return discount.Code{}, discount.ErrNotFound
	}
	return discount.Code{ID: rec.ID, Code: rec.Code, Percentage: rec.Percentage, IsActive: rec.IsActive}, nil
}

func (s *Redis) SaveDiscountCode(ctx context.Context, code discount.Code) error {
	payload, err := json.Marshal(codeRecord{ID: code.ID, Code: code.Code, Percentage: code.Percentage, IsActive: code.IsActive})
	if err != nil {
		return fmt.Errorf("encode discount code %q: %w", code.Code, err)
	}
	if err := s.R.Set(ctx, s.codeKey(code.Code), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set discount code: %w", err)
	}
	return nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.R.Ping(ctx).Err()
}
