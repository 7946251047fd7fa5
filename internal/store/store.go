// Package store holds the record store backends for baskets and discount codes.
package store

import (
	"time"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/obs"
)

// Driver names accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

var (
	_ basket.Store = (*Memory)(nil)
	_ basket.Store = (*Redis)(nil)
	_ basket.Store = (*Postgres)(nil)
	_ basket.Store = (*SQLite)(nil)
	_ basket.Store = (*Guarded)(nil)
)

func observe(driver, op string, start time.Time) {
	if obs.StoreLatency != nil {
		obs.StoreLatency.WithLabelValues(driver, op).Observe(obs.DurationMillis(time.Since(start)))
	}
}
