package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	// sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/tagsync/internal/profile"
	"github.com/hrygo/tagsync/internal/version"
	"github.com/hrygo/tagsync/store"
	"github.com/hrygo/tagsync/store/db"
)

// NewTestingStore opens a migrated store for tests. It uses a SQLite file in a
// temporary directory unless DRIVER=postgres, in which case the database named
// by POSTGRES_TEST_DSN is used.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver, error: %+v", err)
	}

	ts := store.New(dbDriver, profile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db, error: %+v", err)
	}
	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()
	mode := "dev"
	driver := getDriverFromEnv()
	dir := t.TempDir()

	dsn := filepath.Join(dir, "tagsync_"+mode+".db")
	if driver == "postgres" {
		dsn = GetPostgresDSN(t)
		resetPostgres(t, dsn)
	}

	return &profile.Profile{
		Mode:            mode,
		Port:            getUnusedPort(),
		Data:            dir,
		DSN:             dsn,
		Driver:          driver,
		Version:         version.GetCurrentVersion(mode),
		DefaultLanguage: "en",
	}
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
