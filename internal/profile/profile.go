package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where tagsync stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the public url used to build tag links.
	InstanceURL string
	// DefaultLanguage is the working language used when a caller omits one.
	DefaultLanguage string

	// SweepInterval is the period of the background zero-count sweep. Zero disables it.
	SweepInterval time.Duration
	// RateLimitRPS limits API requests per client per second.
	RateLimitRPS float64

	// Search indexer configuration
	IndexerURL     string  // TAGSYNC_INDEXER_URL (default: "", indexing disabled)
	IndexerRPS     float64 // TAGSYNC_INDEXER_RPS (default: 20)
	IndexerRetries int     // TAGSYNC_INDEXER_RETRIES (default: 3)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsIndexerEnabled returns true if a search indexer endpoint is configured.
func (p *Profile) IsIndexerEnabled() bool {
	return p.IndexerURL != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads the search indexer configuration from environment variables.
func (p *Profile) FromEnv() {
	p.IndexerURL = strings.TrimRight(os.Getenv("TAGSYNC_INDEXER_URL"), "/")

	rps, err := strconv.ParseFloat(getEnvOrDefault("TAGSYNC_INDEXER_RPS", "20"), 64)
	if err != nil || rps <= 0 {
		rps = 20
	}
	p.IndexerRPS = rps

	retries, err := strconv.Atoi(getEnvOrDefault("TAGSYNC_INDEXER_RETRIES", "3"))
	if err != nil || retries < 0 {
		retries = 3
	}
	p.IndexerRetries = retries
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = "en"
	}
	if p.SweepInterval < 0 {
		p.SweepInterval = 0
	}
	if p.RateLimitRPS <= 0 {
		p.RateLimitRPS = 10
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "tagsync")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/tagsync"
		}
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("tagsync_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}
	if p.DSN == "" {
		return errors.New("dsn is required for postgres")
	}

	return nil
}
