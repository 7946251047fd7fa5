package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/obs"
)

// Postgres stores baskets in relational tables through a pgx pool.
// Numeric columns travel as text so decimals keep their exact value.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool connects a traced pgx pool and verifies it with a ping.
func NewPostgresPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const (
	selectBasketSQL = `SELECT id, discount_code, discount_percentage::text, created_at, updated_at
FROM baskets WHERE id = $1`
	selectItemsSQL = `SELECT id, product_name, price::text, quantity, is_discounted, discount_percentage::text
FROM basket_items WHERE basket_id = $1 ORDER BY position`
	upsertBasketSQL = `INSERT INTO baskets (id, discount_code, discount_percentage, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  discount_code = EXCLUDED.discount_code,
  discount_percentage = EXCLUDED.discount_percentage,
  updated_at = EXCLUDED.updated_at`
	deleteItemsSQL = `DELETE FROM basket_items WHERE basket_id = $1`
	insertItemSQL  = `INSERT INTO basket_items (id, basket_id, position, product_name, price, quantity, is_discounted, discount_percentage)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::numeric)`
	selectCodeSQL = `SELECT id, code, percentage::text, is_active
FROM discount_codes WHERE code = $1 AND is_active`
	upsertCodeSQL = `INSERT INTO discount_codes (id, code, percentage, is_active)
VALUES ($1, $2, $3::numeric, $4)
ON CONFLICT (code) DO UPDATE SET percentage = EXCLUDED.percentage, is_active = EXCLUDED.is_active`
)

func (p *Postgres) GetBasket(ctx context.Context, id uuid.UUID) (basket.Basket, error) {
	defer observe(DriverPostgres, "get_basket", time.Now())
	var (
		b   basket.Basket
		pct string
	)
	err := p.Pool.QueryRow(ctx, selectBasketSQL, id).Scan(&b.ID, &b.DiscountCode, &pct, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return basket.Basket{}, basket.ErrNotFound
		}
		return basket.Basket{}, fmt.Errorf("select basket: %w", err)
	}
	if b.DiscountPercentage, err = decimal.NewFromString(pct); err != nil {
		return basket.Basket{}, fmt.Errorf("parse discount percentage: %w", err)
	}

	rows, err := p.Pool.Query(ctx, selectItemsSQL, id)
	if err != nil {
		return basket.Basket{}, fmt.Errorf("select basket items: %w", err)
	}
	defer rows.Close()
	b.Items = []basket.Item{}
	for rows.Next() {
		var (
			it           basket.Item
			price, itPct string
		)
		if err := rows.Scan(&it.ID, &it.ProductName, &price, &it.Quantity, &it.IsDiscounted, &itPct); err != nil {
			return basket.Basket{}, fmt.Errorf("scan basket item: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return basket.Basket{}, fmt.Errorf("parse item price: %w", err)
		}
		if it.DiscountPercentage, err = decimal.NewFromString(itPct); err != nil {
			return basket.Basket{}, fmt.Errorf("parse item discount: %w", err)
		}
		it.BasketID = id
		b.Items = append(b.Items, it)
	}
	if err := rows.Err(); err != nil {
		return basket.Basket{}, fmt.Errorf("iterate basket items: %w", err)
	}
	return b, nil
}

// SaveBasket replaces the basket row and its items in one transaction.
func (p *Postgres) SaveBasket(ctx context.Context, b basket.Basket) error {
	defer observe(DriverPostgres, "save_basket", time.Now())
	return pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertBasketSQL, b.ID, b.DiscountCode, b.DiscountPercentage.String(), b.CreatedAt, b.UpdatedAt); err != nil {
			return fmt.Errorf("upsert basket: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteItemsSQL, b.ID); err != nil {
			return fmt.Errorf("clear basket items: %w", err)
		}
		if len(b.Items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, it := range b.Items {
			batch.Queue(insertItemSQL, it.ID, b.ID, i, it.ProductName, it.Price.String(), it.Quantity, it.IsDiscounted, it.DiscountPercentage.String())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert basket items: %w", err)
		}
		return nil
	})
}

func (p *Postgres) DeleteBasket(ctx context.Context, id uuid.UUID) error {
	if _, err := p.Pool.Exec(ctx, `DELETE FROM baskets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete basket: %w", err)
	}
	return nil
}

func (p *Postgres) FindActiveDiscountCode(ctx context.Context, code string) (discount.Code, error) {
	defer observe(DriverPostgres, "find_discount_code", time.Now())
	var (
		dc  discount.Code
		pct string
	)
	err := p.Pool.QueryRow(ctx, selectCodeSQL, code).Scan(&dc.ID, &dc.Code, &pct, &dc.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Code{}, discount.ErrNotFound
		}
		return discount.Code{}, fmt.Errorf("select discount code: %w", err)
	}
	if dc.Percentage, err = decimal.NewFromString(pct); err != nil {
		return discount.Code{}, fmt.Errorf("parse discount code percentage: %w", err)
	}
	return dc, nil
}

func (p *Postgres) SaveDiscountCode(ctx context.Context, code discount.Code) error {
	if _, err := p.Pool.Exec(ctx, upsertCodeSQL, code.ID, code.Code, code.Percentage.String(), code.IsActive); err != nil {
		return fmt.Errorf("upsert discount code: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
