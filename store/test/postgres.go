package test

import (
	"database/sql"
	"net"
	"os"
	"testing"

	// postgres driver.
	_ "github.com/lib/pq"
)

// GetPostgresDSN returns the DSN of the PostgreSQL database used for tests.
// Tests are skipped when POSTGRES_TEST_DSN is not set.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}
	return dsn
}

// resetPostgres drops the tagsync tables so every test starts from a fresh schema.
// Tests sharing one PostgreSQL database must therefore not run in parallel.
func resetPostgres(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	defer db.Close()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS tag_link",
		"DROP TABLE IF EXISTS tag",
		"DROP TABLE IF EXISTS system_setting",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to reset postgres: %v", err)
		}
	}
}

func getUnusedPort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}
