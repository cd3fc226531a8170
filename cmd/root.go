package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/internal/config"
	"github.com/adopt-ai/zapi-go/internal/observability"
)

var (
	cfgFile string
	// cfg is the configuration resolved in PersistentPreRunE, shared by all
	// subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "zapi",
	Short:   "zapi records authenticated browser traffic and uploads it for API discovery.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := initializeViper()
		if err != nil {
			return err
		}

		resolved, err := config.NewConfigFromViper(v)
		if err != nil {
			// A fallback logger so the failure is still visible somewhere.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "zapi"})
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = resolved

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting zapi", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeViper reads the optional config file and binds ZAPI_ environment
// variables.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ZAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env cover everything.
	}
	return v, nil
}
