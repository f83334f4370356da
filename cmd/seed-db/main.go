// Command seed-db loads a catalog JSON file, demo vouchers, and an admin
// API key into the database. Everything is upserted, so reruns are safe.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canastra/storefront/internal/postgres"
)

type catalogJSON struct {
	Products []struct {
		Name      string `json:"name"`
		Slug      string `json:"slug"`
		Thumbnail string `json:"thumbnail"`
		Category  string `json:"category"`
		Variants  []struct {
			SKU             string `json:"sku"`
			UnitPrice       int64  `json:"unitPrice"`
			DiscountPercent int    `json:"discountPercent"`
			StockQuantity   int    `json:"stockQuantity"`
		} `json:"variants"`
	} `json:"products"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		apiKey      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedVouchers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedAPIKey(ctx, pool, apiKey); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const (
	upsertProductSQL = `INSERT INTO products (name, slug, thumbnail, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, thumbnail = EXCLUDED.thumbnail,
			category = EXCLUDED.category, updated_at = now()
		RETURNING id`

	upsertVariantSQL = `INSERT INTO variants (product_id, sku, unit_price, discount_percent, stock_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, sku) DO UPDATE SET
			unit_price = EXCLUDED.unit_price, discount_percent = EXCLUDED.discount_percent,
			stock_quantity = EXCLUDED.stock_quantity, updated_at = now()`

	upsertVoucherSQL = `INSERT INTO vouchers (name, discount_type, discount_value, min_order_value, remaining_redemptions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			min_order_value = EXCLUDED.min_order_value,
			remaining_redemptions = EXCLUDED.remaining_redemptions, updated_at = now()`

	upsertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, scopes, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, active = TRUE`
)

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(catalog.Products)))

	for _, p := range catalog.Products {
		var productID string
		if err := pool.QueryRow(ctx, upsertProductSQL,
			p.Name, p.Slug, p.Thumbnail, p.Category,
		).Scan(&productID); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		for _, v := range p.Variants {
			if _, err := pool.Exec(ctx, upsertVariantSQL,
				productID, v.SKU, v.UnitPrice, v.DiscountPercent, v.StockQuantity,
			); err != nil {
				return errors.Wrapf(err, "upsert variant %s of %s", v.SKU, p.Slug)
			}
		}

		slog.Info("upserted product",
			slog.String("slug", p.Slug),
			slog.Int("variants", len(p.Variants)),
		)
	}

	return nil
}

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo vouchers")

	vouchers := []struct {
		name          string
		discountType  string
		discountValue int64
		minOrderValue int64
		redemptions   int
	}{
		{"WELCOME10", "percentage", 10, 0, 1000},
		{"SAVE500", "fixed", 500, 2500, 500},
		{"VIP25", "percentage", 25, 10000, 100},
		{"LASTCHANCE", "percentage", 10, 0, 1},
	}

	for _, v := range vouchers {
		if _, err := pool.Exec(ctx, upsertVoucherSQL,
			v.name, v.discountType, v.discountValue, v.minOrderValue, v.redemptions,
		); err != nil {
			return errors.Wrapf(err, "upsert voucher %s", v.name)
		}
		slog.Info("upserted voucher", slog.String("name", v.name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey string) error {
	slog.Info("seeding admin API key")

	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		keyHash, "Admin key", []string{"admin"},
	); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Admin key"))
	return nil
}
