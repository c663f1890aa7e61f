package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/edgeflare/supactl/pkg/util"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X ...config.Version=v1.2.3".
var Version = "dev"

// Credential variables, most specific first.
var (
	URLEnvVars = []string{"NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"}
	KeyEnvVars = []string{"NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"}

	// EnvFiles are loaded in order; earlier files and the process
	// environment take precedence.
	EnvFiles = []string{".env.local", ".env"}
)

// Config holds application-wide configuration
type Config struct {
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Export   ExportConfig   `mapstructure:"export"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type SupabaseConfig struct {
	Schema         string        `mapstructure:"schema"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	RPC            string        `mapstructure:"rpc"`
	FallbackTables []string      `mapstructure:"fallbackTables"`
}

// CatalogConfig enables table discovery straight from Postgres when DSN is set.
type CatalogConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	SummaryFile string `mapstructure:"summaryFile"`
}

// StorageConfig lists what `supactl check` probes.
type StorageConfig struct {
	Buckets     []string `mapstructure:"buckets"`
	CheckTables []string `mapstructure:"checkTables"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supabase.schema", supabase.DefaultSchema)
	v.SetDefault("supabase.timeout", supabase.DefaultTimeout)
	v.SetDefault("supabase.retries", 0)
	v.SetDefault("supabase.rpc", supabase.DefaultTablesRPC)
	v.SetDefault("supabase.fallbackTables", supabase.DefaultFallbackTables)
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.summaryFile", supabase.SummaryFile)
	v.SetDefault("storage.buckets", []string{"loan-images"})
	v.SetDefault("storage.checkTables", []string{"loans", "transactions", "partners", "customers", "guarantors", "installments"})
	v.SetDefault("metrics.textfile", "")
}

// Load reads config from file or environment. Flags named after config keys
// (e.g. --supabase.schema) override both when set.
func Load(cfgFile string, flags ...*pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for _, fs := range flags {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("supactl")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SUPACTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

// LoadEnvFiles loads the files that exist into the process environment
// without overriding variables already set, and returns the ones loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// ResolveCredentials reads the project URL and key from the environment.
func ResolveCredentials() (supabase.Credentials, error) {
	url, _ := util.FirstEnv(URLEnvVars...)
	key, _ := util.FirstEnv(KeyEnvVars...)

	if url == "" || key == "" {
		return supabase.Credentials{}, &supabase.ConfigurationError{Message: fmt.Sprintf(
			"missing supabase credentials, please set:\n%s\n%s\nin your %s file",
			strings.Join(URLEnvVars, " or "),
			strings.Join(KeyEnvVars, " or "),
			strings.Join(EnvFiles, " or "),
		)}
	}
	return supabase.Credentials{URL: url, Key: key}, nil
}
