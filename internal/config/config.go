// Package config loads application configuration from environment variables
// and an optional .env file. Defaults come from struct tags; any key can be
// overridden by its upper-snake-case environment variable (e.g. STORE_DSN,
// OBJECT_ENDPOINT, LOG_LEVEL).
package config

import (
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"datamove/internal/logger"
)

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Kind is the registered backend name: postgres or sqlite.
	Kind string `mapstructure:"kind" default:"postgres"`
	// DSN is the backend connection string.
	DSN string `mapstructure:"dsn" default:""`
}

// ObjectConfig configures the S3-compatible dataset origin.
type ObjectConfig struct {
	Endpoint  string `mapstructure:"endpoint" default:""`
	AccessKey string `mapstructure:"access_key" default:""`
	SecretKey string `mapstructure:"secret_key" default:""`
	Region    string `mapstructure:"region" default:""`
	UseSSL    bool   `mapstructure:"use_ssl" default:"true"`
}

// MoveConfig holds engine tuning defaults a request can override.
type MoveConfig struct {
	BatchSize  int `mapstructure:"batch_size" default:"1000"`
	SampleSize int `mapstructure:"sample_size" default:"1000"`
}

// Config is the full application configuration.
type Config struct {
	Store  StoreConfig   `mapstructure:"store"`
	Object ObjectConfig  `mapstructure:"object"`
	Move   MoveConfig    `mapstructure:"move"`
	Log    logger.Config `mapstructure:"log"`
}

// Load reads configuration from the environment, overlaying a .env file in
// dir when one exists.
func Load(dir string) (*Config, error) {
	envPath := dir + "/.env"
	if dir == "." || dir == "" {
		envPath = ".env"
	}
	// Missing .env is fine (e.g. production).
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (STORE_DSN -> store.dsn).
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindValues walks the struct tags and registers every key with its default
// so AutomaticEnv picks it up.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}
