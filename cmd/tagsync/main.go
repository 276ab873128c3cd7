package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/tagsync/internal/profile"
	"github.com/hrygo/tagsync/internal/version"
	"github.com/hrygo/tagsync/server"
	"github.com/hrygo/tagsync/store"
	"github.com/hrygo/tagsync/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "tagsync",
		Short: `A tag synchronization service keeping per-item tag sets and usage counts consistent.`,
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:            viper.GetString("mode"),
				Addr:            viper.GetString("addr"),
				Port:            viper.GetInt("port"),
				Data:            viper.GetString("data"),
				Driver:          viper.GetString("driver"),
				DSN:             viper.GetString("dsn"),
				InstanceURL:     viper.GetString("instance-url"),
				DefaultLanguage: viper.GetString("language"),
				SweepInterval:   viper.GetDuration("sweep-interval"),
				RateLimitRPS:    viper.GetFloat64("rate-limit"),
				Version:         version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				panic(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create db driver", "error", err)
				return
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				cancel()
				slog.Error("failed to migrate", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			<-c
			s.Shutdown(ctx)
			cancel()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your tagsync instance")
	rootCmd.PersistentFlags().String("language", "en", "working language used when a request omits one")
	rootCmd.PersistentFlags().Duration("sweep-interval", 10*time.Minute, "period of the zero-count tag sweep, 0 disables it")
	rootCmd.PersistentFlags().Float64("rate-limit", 10, "API requests per second per client")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url", "language", "sweep-interval", "rate-limit"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("tagsync")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("tagsync %s started successfully!\n", profile.Version)
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Listening on port %d\n", profile.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
