// Command seed-db creates the schema, loads the menu catalog, and registers
// a staff API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/db"
	"github.com/canteenhq/canteen/internal/domain/member"
	"github.com/canteenhq/canteen/internal/domain/menu"
	"github.com/canteenhq/canteen/internal/handler"
	"github.com/canteenhq/canteen/internal/storage/postgres"
)

type menuItemJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		menuFile     string
		apiKey       string
		apiKeyPepper string
		demoMembers  bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "", "path to menu JSON file (defaults to the embedded catalog)")
	flag.StringVar(&apiKey, "api-key", "", "staff API key to seed (or CANTEEN_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CANTEEN_API_KEY_PEPPER env)")
	flag.BoolVar(&demoMembers, "demo-members", false, "seed a handful of demo roster members (dev/test only)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CANTEEN_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CANTEEN_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CANTEEN_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, apiKey, apiKeyPepper, demoMembers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile, apiKey, pepper string, demoMembers bool) error {
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

	if err := seedMenu(ctx, postgres.NewMenuRepository(pool), menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if demoMembers {
		if err := seedDemoMembers(ctx, postgres.NewMemberRepository(pool)); err != nil {
			return errors.Wrap(err, "seed demo members")
		}
	}

	return nil
}

// seedDemoMembers registers a few roster entries for local development and
// integration tests. Production rosters come from member-import.
func seedDemoMembers(ctx context.Context, repo *postgres.MemberRepository) error {
	demo := []*member.Member{
		{ID: "mem-asha", Name: "Asha Rao", Contact: "asha@example.com", ContactVerified: true, JoinedAt: time.Now()},
		{ID: "mem-vikram", Name: "Vikram Iyer", Contact: "vikram@example.com", ContactVerified: true, JoinedAt: time.Now()},
		{ID: "mem-priya", Name: "Priya Nair", Contact: "priya@example.com", ContactVerified: false, JoinedAt: time.Now()},
	}

	slog.Info("seeding demo members", slog.Int("count", len(demo)))

	for _, m := range demo {
		if err := repo.Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "upsert member %s", m.ID)
		}
	}

	return nil
}

func seedMenu(ctx context.Context, repo *postgres.MenuRepository, menuFile string) error {
	data := db.MenuSeed
	if menuFile != "" {
		slog.Info("reading menu file", slog.String("path", menuFile))
		var err error
		data, err = os.ReadFile(menuFile)
		if err != nil {
			return errors.Wrap(err, "read menu file")
		}
	}

	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting menu items", slog.Int("count", len(items)))

	for _, it := range items {
		if err := repo.Upsert(ctx, &menu.Item{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Category: it.Category,
			Active:   true,
		}); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", it.ID)
		}

		slog.Info("upserted menu item", slog.String("id", it.ID), slog.String("name", it.Name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding staff API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, keyHash, "Kitchen staff key", []string{handler.ScopeStaff}); err != nil {
		return errors.Wrap(err, "upsert staff API key")
	}

	slog.Info("upserted API key", slog.String("name", "Kitchen staff key"))
	return nil
}
