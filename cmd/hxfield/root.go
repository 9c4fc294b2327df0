package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config is the merged result of flags, HXFIELD_* environment variables and
// the config file.
type config struct {
	Addr            string            `mapstructure:"addr"`
	Key             string            `mapstructure:"key"`
	Blueprint       string            `mapstructure:"blueprint"`
	Watch           bool              `mapstructure:"watch"`
	PreloadCacheTTL time.Duration     `mapstructure:"preload_cache_ttl"`
	SensitiveRefs   bool              `mapstructure:"sensitive_refs"`
	LogLevel        string            `mapstructure:"log_level"`
	Items           map[string]string `mapstructure:"items"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("key", "")
	v.SetDefault("blueprint", "")
	v.SetDefault("watch", false)
	v.SetDefault("sensitive_refs", false)
	v.SetDefault("preload_cache_ttl", 30*time.Second)
	v.SetDefault("log_level", "info")
}

func newRootCmd(version string) *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "hxfield",
		Short:         "Fieldtype forms for HTMX",
		Long:          `Serve blueprint forms built from the built-in fieldtypes and check fieldtype registrations.`,
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./hxfield.yaml if present)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newServeCmd(v), newVetCmd(), newVersionCmd(version))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	defaults(v)
	v.SetEnvPrefix("HXFIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("hxfield")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the console logger the commands write to.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	if w != os.Stderr {
		out.NoColor = true
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "hxfield", version)
		},
	}
}
