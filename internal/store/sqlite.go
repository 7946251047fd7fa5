package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
)

type basketModel struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	DiscountCode       *string         `gorm:"size:50"`
	DiscountPercentage decimal.Decimal `gorm:"type:text;not null"`
	CreatedAt          time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime:false"`
}

func (basketModel) TableName() string { return "baskets" }

type itemModel struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	BasketID           string          `gorm:"size:36;not null;index:basket_items_basket_position_idx,priority:1"`
	Position           int             `gorm:"not null;index:basket_items_basket_position_idx,priority:2"`
	ProductName        string          `gorm:"size:200;not null"`
	Price              decimal.Decimal `gorm:"type:text;not null"`
	Quantity           int             `gorm:"not null"`
	IsDiscounted       bool            `gorm:"not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:text;not null"`
}

func (itemModel) TableName() string { return "basket_items" }

type discountCodeModel struct {
	ID         string          `gorm:"primaryKey;size:36"`
	Code       string          `gorm:"size:50;not null;uniqueIndex"`
	Percentage decimal.Decimal `gorm:"type:text;not null"`
	IsActive   bool            `gorm:"not null"`
}

func (discountCodeModel) TableName() string { return "discount_codes" }

// SQLite is an embedded relational store built on GORM.
type SQLite struct {
	DB *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		// every new connection to an unnamed memory database starts empty
		sqlDB.SetMaxOpenConns(1)
	}
	if err := conn.AutoMigrate(&basketModel{}, &itemModel{}, &discountCodeModel{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &SQLite{DB: conn}, nil
}

// Close releases the underlying connections.
func (s *SQLite) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) GetBasket(ctx context.Context, id uuid.UUID) (basket.Basket, error) {
	defer observe(DriverSQLite, "get_basket", time.Now())
	db := s.DB.WithContext(ctx)
	var m basketModel
	if err := db.First(&m, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return basket.Basket{}, basket.ErrNotFound
		}
		return basket.Basket{}, fmt.Errorf("select basket: %w", err)
	}
	var items []itemModel
	if err := db.Where("basket_id = ?", m.ID).Order("position").Find(&items).Error; err != nil {
		return basket.Basket{}, fmt.Errorf("select basket items: %w", err)
	}
	b := basket.Basket{
		ID:                 id,
		Items:              make([]basket.Item, 0, len(items)),
		DiscountCode:       m.DiscountCode,
		DiscountPercentage: m.DiscountPercentage,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, it := range items {
		itemID, err := uuid.Parse(it.ID)
		if err != nil {
			return basket.Basket{}, fmt.Errorf("parse item id: %w", err)
		}
		b.Items = append(b.Items, basket.Item{
			ID:                 itemID,
			BasketID:           id,
			ProductName:        it.ProductName,
			Price:              it.Price,
			Quantity:           it.Quantity,
			IsDiscounted:       it.IsDiscounted,
			DiscountPercentage: it.DiscountPercentage,
		})
	}
	return b, nil
}

// SaveBasket upserts the basket row and rewrites its items in one transaction.
func (s *SQLite) SaveBasket(ctx context.Context, b basket.Basket) error {
	defer observe(DriverSQLite, "save_basket", time.Now())
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := basketModel{
			ID:                 b.ID.String(),
			DiscountCode:       b.DiscountCode,
			DiscountPercentage: b.DiscountPercentage,
			CreatedAt:          b.CreatedAt,
			UpdatedAt:          b.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
			return fmt.Errorf("upsert basket: %w", err)
		}
		if err := tx.Where("basket_id = ?", m.ID).Delete(&itemModel{}).Error; err != nil {
			return fmt.Errorf("clear basket items: %w", err)
		}
		if len(b.Items) == 0 {
			return nil
		}
		items := make([]itemModel, 0, len(b.Items))
		for i, it := range b.Items {
			items = append(items, itemModel{
				ID:                 it.ID.String(),
				BasketID:           m.ID,
				Position:           i,
				ProductName:        it.ProductName,
				Price:              it.Price,
				Quantity:           it.Quantity,
				IsDiscounted:       it.IsDiscounted,
				DiscountPercentage: it.DiscountPercentage,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert basket items: %w", err)
		}
		return nil
	})
}

func (s *SQLite) DeleteBasket(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("basket_id = ?", id.String()).Delete(&itemModel{}).Error; err != nil {
			return fmt.Errorf("delete basket items: %w", err)
		}
		if err := tx.Where("id = ?", id.String()).Delete(&basketModel{}).Error; err != nil {
			return fmt.Errorf("delete basket: %w", err)
		}
		return nil
	})
}

func (s *SQLite) FindActiveDiscountCode(ctx context.Context, code string) (discount.Code, error) {
	defer observe(DriverSQLite, "find_discount_code", time.Now())
	var m discountCodeModel
	err := s.DB.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return discount.Code{}, discount.ErrNotFound
		}
		return discount.Code{}, fmt.Errorf("select discount code: %w", err)
	}
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return discount.Code{}, fmt.Errorf("parse discount code id: %w", err)
	}
	return discount.Code{ID: id, Code: m.Code, Percentage: m.Percentage, IsActive: m.IsActive}, nil
}

func (s *SQLite) SaveDiscountCode(ctx context.Context, code discount.Code) error {
	m := discountCodeModel{
		ID:         code.ID.String(),
		Code:       code.Code,
		Percentage: code.Percentage,
		IsActive:   code.IsActive,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"percentage", "is_active"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("upsert discount code: %w", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
