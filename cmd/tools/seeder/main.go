package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/discount"
)

func main() {
	extra := flag.String("codes", "", "additional discount codes as CODE=PERCENT, comma separated")
	deactivate := flag.String("deactivate", "", "discount codes to mark inactive, comma separated")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	codes := discount.DefaultCodes()
	parsed, err := parseCodes(*extra)
	if err != nil {
		log.Fatalf("Invalid -codes: %v", err)
	}
	codes = append(codes, parsed...)

	fmt.Println("Seeding discount codes...")
	if err := discount.Seed(ctx, sqlSaver{db: db}, codes); err != nil {
		log.Fatalf("Failed to seed discount codes: %v", err)
	}
	for _, c := range codes {
		log.Printf("  %s -> %s%%", c.Code, c.Percentage.String())
	}

	for _, code := range splitList(*deactivate) {
		res, err := db.ExecContext(ctx, `UPDATE discount_codes SET is_active = false WHERE code = $1`, code)
		if err != nil {
			log.Fatalf("Failed to deactivate %s: %v", code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("Discount code %s not found, nothing to deactivate", code)
			continue
		}
		log.Printf("Deactivated %s", code)
	}

	log.Println("Seeding completed successfully!")
}

// sqlSaver writes discount codes through database/sql so the seeder works without the API's pgx pool.
type sqlSaver struct {
	db *sql.DB
}

func (s sqlSaver) SaveDiscountCode(ctx context.Context, code discount.Code) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_codes (id, code, percentage, is_active)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (code) DO UPDATE SET
			percentage = EXCLUDED.percentage,
			is_active = EXCLUDED.is_active;
	`, code.ID.String(), code.Code, code.Percentage.String(), code.IsActive)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", code.Code, err)
	}
	return nil
}

func parseCodes(value string) ([]discount.Code, error) {
	var out []discount.Code
	for _, entry := range splitList(value) {
		name, pct, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected CODE=PERCENT", entry)
		}
		percentage, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", entry, err)
		}
		out = append(out, discount.Code{
			ID:         uuid.New(),
			Code:       strings.TrimSpace(name),
			Percentage: percentage,
			IsActive:   true,
		})
	}
	return out, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
