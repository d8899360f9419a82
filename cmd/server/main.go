package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftsync/internal/server"
	"github.com/openmined/syftsync/internal/server/filestore"
	"github.com/openmined/syftsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "SYFTSYNC_SERVER"
	defaultConfigName = "syftsync-server"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syftsync-server",
		Short:         "syftsync lock coordinator",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	rootCmd.Flags().StringP("config", "f", "", "path to a yaml or json config file")
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "address to bind the server")
	rootCmd.Flags().StringP("cert", "c", "", "path to the certificate file")
	rootCmd.Flags().StringP("key", "k", "", "path to the key file")
	rootCmd.Flags().String("db", "", "sqlite database path (default: in-memory)")

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// flags win over env only when explicitly set
	bindings := map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"db_path":        "db",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syftsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Info("config loaded", "path", v.ConfigFileUsed())
	}

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// every key needs a default so AutomaticEnv picks it up during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("lease_ttl", server.DefaultLeaseTTL)
	v.SetDefault("sweep_interval", server.DefaultSweepInterval)
	v.SetDefault("db_path", "")
	v.SetDefault("max_file_bytes", server.DefaultMaxFileBytes)
	v.SetDefault("tracked_files", server.DefaultTrackedFiles)
	v.SetDefault("rate_limit", server.DefaultRateLimit)
	v.SetDefault("storage.backend", filestore.BackendDB)
	v.SetDefault("storage.s3.bucket_name", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.prefix", "")
}

func setupLogger() {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	setupLogger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
