package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/datarep/internal/config"
	"github.com/zjrosen/datarep/internal/presentation"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	jsonOut bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "datarep",
	Short: "Inspect and drive multi-representation data objects",
	Long: `datarep manages data objects that live in several backend encodings at
once (in memory, on an emulated device, in a SQLite blob store) and converts
between them on demand along registered conversion rules.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .datarep/config.yaml, then ~/.config/datarep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"write a debug log (see log.path)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false,
		"print results as JSON")
	rootCmd.PersistentFlags().String("store", "",
		"path to the SQLite blob store")
}

func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", config.DefaultTracesFilePath())
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("path_cache.enabled", d.PathCache.Enabled)
	v.SetDefault("path_cache.ttl", d.PathCache.TTL)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("device.max_textures", d.Device.MaxTextures)
}

func initConfig() {
	setDefaults(viper.GetViper(), config.Defaults())
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// First existing file wins; see config.SearchPaths.
		for _, p := range config.SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				viper.SetConfigFile(p)
				break
			}
		}
		if viper.ConfigFileUsed() == "" {
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
			viper.AddConfigPath(".datarep")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .datarep/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			defaultPath := config.SearchPaths()[0]
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults.
		}
	}

	cfg = config.Defaults()
	_ = viper.Unmarshal(&cfg)
	if debug {
		cfg.Log.Enabled = true
		cfg.Log.Level = "debug"
	}
}

// formatter picks JSON or text output for cmd.
func formatter(cmd *cobra.Command) *presentation.Formatter {
	if jsonOut {
		return presentation.NewFormatter(cmd.OutOrStdout())
	}
	return presentation.NewTextFormatter(cmd.OutOrStdout())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
