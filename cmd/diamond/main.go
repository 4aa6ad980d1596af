package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/totegamma/diamond-portal/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "diamond",
	Short:   "Collection registry service and portal",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(viper.GetBool("debug"))
		return loadConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("registry-url", "", "registry service base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the registry and transfer APIs")
	rootCmd.PersistentFlags().String("user", "", "current user id")
	rootCmd.PersistentFlags().String("mode", "", "portal mode: manage or search")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("registry-url", rootCmd.PersistentFlags().Lookup("registry-url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))

	viper.SetEnvPrefix("DIAMOND")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, searchCmd, browseCmd, createCmd, deleteCmd, lsCmd)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads the YAML file, then lets flags and DIAMOND_* variables override it.
func loadConfig() error {
	path := cfgFile
	if path == "" {
		path = viper.GetString("config")
	}

	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"listen", &loaded.Server.Listen},
		{"store-type", &loaded.Store.Type},
		{"store-path", &loaded.Store.Path},
		{"registry-url", &loaded.Portal.RegistryURL},
		{"token", &loaded.Auth.Token},
		{"mode", &loaded.Portal.Mode},
		{"redis-addr", &loaded.Redis.Addr},
	}
	for _, o := range overrides {
		if viper.IsSet(o.key) && viper.GetString(o.key) != "" {
			*o.target = viper.GetString(o.key)
		}
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
