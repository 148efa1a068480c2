package test

import (
	"context"
	"os"
	"testing"

	"github.com/hrygo/recall/internal/profile"
	"github.com/hrygo/recall/store"
	"github.com/hrygo/recall/store/db"
)

// NewTestingStore opens a migrated store for the driver selected by DRIVER.
// SQLite runs in memory; PostgreSQL needs POSTGRES_TEST_DSN pointing at a pgvector-enabled database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, p)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if p.Driver == "postgres" {
			_, _ = dbDriver.GetDB().ExecContext(context.Background(), "TRUNCATE content CASCADE")
		}
		_ = s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()

	driver := getDriverFromEnv()
	p := &profile.Profile{Mode: "dev", Driver: driver}
	switch driver {
	case "postgres":
		p.DSN = os.Getenv("POSTGRES_TEST_DSN")
		if p.DSN == "" {
			t.Skip("POSTGRES_TEST_DSN not set")
		}
	default:
		p.DSN = ":memory:"
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}
