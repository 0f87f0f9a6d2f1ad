// Package config loads settingsctl configuration from settings.yaml and the
// SETTINGS_ environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "settings"
	configFileType = "yaml"

	// EnvPrefix is prepended to every environment override, e.g.
	// SETTINGS_STORE_DSN.
	EnvPrefix = "SETTINGS"

	keySchema           = "schema"
	keyStoreDriver      = "store.driver"
	keyStoreDSN         = "store.dsn"
	keyScopeNetwork     = "scope.network"
	keyScopeTenant      = "scope.tenant_id"
	keyRecordName       = "record.option_name"
	keyRecordParent     = "record.parent"
	keyRecordStandalone = "record.standalone"
	keyCSRFSecret       = "csrf.secret"
	keyCSRFTTL          = "csrf.ttl"
	keyHTTPAddr         = "http.addr"
	keyNATSURL          = "nats.url"
	keyNATSSubject      = "nats.subject_prefix"
	keyActivityEnabled  = "activity.enabled"
	keyActivityChannel  = "activity.channel"
	keyRulesEngine      = "rules.engine"
	keyVerbose          = "verbose"
)

// Defaults.
const (
	DefaultSchema      = "settings.schema.yaml"
	DefaultStoreDriver = "memory"
	DefaultCSRFTTL     = 24 * time.Hour
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultRulesEngine = "expr"
)

// Config is the resolved configuration.
type Config struct {
	SchemaPath string   `mapstructure:"schema"`
	Store      Store    `mapstructure:"store"`
	Scope      Scope    `mapstructure:"scope"`
	Record     Record   `mapstructure:"record"`
	CSRF       CSRF     `mapstructure:"csrf"`
	HTTP       HTTP     `mapstructure:"http"`
	NATS       NATS     `mapstructure:"nats"`
	Activity   Activity `mapstructure:"activity"`
	Rules      Rules    `mapstructure:"rules"`
	Verbose    bool     `mapstructure:"verbose"`
}

// Store selects the persistence backend. Driver is memory, sqlite or
// postgres.
type Store struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Scope picks the storage scope. Network writes to the site scope shared by
// every tenant; otherwise TenantID, when set, selects a tenant scope.
type Scope struct {
	Network  bool   `mapstructure:"network"`
	TenantID string `mapstructure:"tenant_id"`
}

// Record overrides where the module's values live. Standalone ignores Parent
// and stores the module under its own key.
type Record struct {
	OptionName string `mapstructure:"option_name"`
	Parent     string `mapstructure:"parent"`
	Standalone bool   `mapstructure:"standalone"`
}

// CSRF configures request tokens for the admin server.
type CSRF struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// HTTP configures the admin listener.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// NATS enables publishing activity. An empty URL disables it.
type NATS struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// Activity controls the event emitter.
type Activity struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// Rules selects the expression engine: expr, cel or js.
type Rules struct {
	Engine string `mapstructure:"engine"`
}

// Load reads configuration. With an empty path settings.yaml is looked up
// in dirs and a missing file is not an error. An explicit path must exist.
func Load(path string, dirs ...string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path == "" && errors.As(err, &notFound):
		case errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		default:
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keySchema, DefaultSchema)
	v.SetDefault(keyStoreDriver, DefaultStoreDriver)
	v.SetDefault(keyStoreDSN, "")
	v.SetDefault(keyScopeNetwork, false)
	v.SetDefault(keyScopeTenant, "")
	v.SetDefault(keyRecordName, "")
	v.SetDefault(keyRecordParent, "")
	v.SetDefault(keyRecordStandalone, false)
	v.SetDefault(keyCSRFSecret, "")
	v.SetDefault(keyCSRFTTL, DefaultCSRFTTL)
	v.SetDefault(keyHTTPAddr, DefaultHTTPAddr)
	v.SetDefault(keyNATSURL, "")
	v.SetDefault(keyNATSSubject, "")
	v.SetDefault(keyActivityEnabled, true)
	v.SetDefault(keyActivityChannel, "")
	v.SetDefault(keyRulesEngine, DefaultRulesEngine)
	v.SetDefault(keyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Rules.Engine = strings.ToLower(strings.TrimSpace(cfg.Rules.Engine))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("config: store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unsupported store.driver %q", c.Store.Driver)
	}
	switch c.Rules.Engine {
	case "expr", "cel", "js":
	default:
		return fmt.Errorf("config: unsupported rules.engine %q", c.Rules.Engine)
	}
	if c.CSRF.TTL <= 0 {
		return fmt.Errorf("config: csrf.ttl must be positive")
	}
	return nil
}

// Persistent reports whether the store survives the process.
func (s Store) Persistent() bool {
	return s.Driver != "" && s.Driver != "memory"
}
