package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/internal/profile"
	"github.com/hrygo/manas/internal/version"
	"github.com/hrygo/manas/plugin/telegram"
	"github.com/hrygo/manas/server"
	"github.com/hrygo/manas/store"
	"github.com/hrygo/manas/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "manas",
		Short: `A voice and text personal assistant. Tasks, calendar, mail, memories and answers from one conversation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide the environment themselves.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		SilenceUsage: true,
		RunE:         serve,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.String())
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for a user (requires MANAS_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newProfile()
			p.FromEnv()

			userID, _ := cmd.Flags().GetString("user")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := server.IssueToken(p.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres, redis)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file, rotated")
	rootCmd.PersistentFlags().String("log-level", "", `log level: "debug", "info", "warn" or "error"`)

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-file", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("manas")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	tokenCmd.Flags().String("user", "", "user id the token is issued to")
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime, 0 for no expiry")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(versionCmd, tokenCmd)
}

func newProfile() *profile.Profile {
	return &profile.Profile{
		Mode:     viper.GetString("mode"),
		Addr:     viper.GetString("addr"),
		Port:     viper.GetInt("port"),
		Data:     viper.GetString("data"),
		Driver:   viper.GetString("driver"),
		DSN:      viper.GetString("dsn"),
		LogFile:  viper.GetString("log-file"),
		LogLevel: viper.GetString("log-level"),
		Version:  version.GetCurrentVersion(viper.GetString("mode")),
	}
}

func serve(_ *cobra.Command, _ []string) error {
	instanceProfile := newProfile()
	instanceProfile.FromEnv()

	closeLog := setupLogger(instanceProfile)
	defer closeLog()

	if err := instanceProfile.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		slog.Error("failed to create db driver", "driver", instanceProfile.Driver, "error", err)
		return err
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()

	if err := storeInstance.Migrate(ctx); err != nil {
		slog.Error("failed to migrate", "error", err)
		return err
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())
	assistant, err := server.NewAssistant(ctx, instanceProfile, storeInstance, exporter)
	if err != nil {
		return err
	}
	defer assistant.Close()

	// Best effort: a failed warmup only costs first-turn latency.
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer warmupCancel()
		assistant.LLM.Warmup(warmupCtx)
	}()

	s := server.NewServer(instanceProfile, assistant.Turns, exporter)
	if err := s.Start(ctx); err != nil {
		return err
	}

	if instanceProfile.TelegramBotToken != "" {
		bot, err := telegram.New(telegram.Config{BotToken: instanceProfile.TelegramBotToken}, assistant.Turns, assistant.Speech)
		if err != nil {
			slog.Warn("telegram bot disabled", "error", err)
		} else {
			go func() {
				if err := bot.Run(ctx); err != nil {
					slog.Error("telegram bot stopped", "error", err)
				}
			}()
		}
	}

	printGreetings(instanceProfile)

	<-ctx.Done()
	slog.Info("shutting down")
	s.Shutdown(context.Background())
	return nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Manas %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Speech: %t\n", profile.IsTTSEnabled())
	fmt.Printf("Calendar and mail: %t\n", profile.IsGoogleEnabled())

	host := profile.Addr
	if host == "" {
		host = "localhost"
	}
	fmt.Printf("API: http://%s:%d/api/v1/turn\n", host, profile.Port)
	fmt.Printf("Stream: ws://%s:%d/api/v1/turn/stream\n", host, profile.Port)
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
