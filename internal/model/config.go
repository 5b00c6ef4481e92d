package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MAILAGENT_MAILBOX_HOST.
const EnvPrefix = "MAILAGENT"

// Storage backends.
const (
	BackendFilesystem = "filesystem"
	BackendObject     = "object"
)

// MailboxConfig holds the IMAP account to scan.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Secret may be left empty and stored in the system keyring under
	// "mailbox-<username>" instead.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Security is one of tls, starttls, none.
	Security    string        `mapstructure:"security" yaml:"security"`
	Folder      string        `mapstructure:"folder" yaml:"folder"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// IngestConfig controls the invoice ingestion pipeline.
type IngestConfig struct {
	DaysBack int    `mapstructure:"days_back" yaml:"days_back"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// AlertsConfig controls the alert digest pipeline.
type AlertsConfig struct {
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
	Schedule string   `mapstructure:"schedule" yaml:"schedule"`
}

// StorageConfig selects where attachments are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`

	// Root is the base directory of the filesystem backend.
	Root string `mapstructure:"root" yaml:"root"`

	// Object backend settings. SecretKey may live in the keyring under
	// "storage-<access_key>".
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// LedgerConfig points at the ingestion ledger API.
type LedgerConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// JournalConfig enables the local run journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Ingest  IngestConfig  `mapstructure:"ingest" yaml:"ingest"`
	Alerts  AlertsConfig  `mapstructure:"alerts" yaml:"alerts"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailagent/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailagent", "config.yaml")
}

// defaults lists every key with its default. Every key must appear here so
// that environment overrides are seen by Unmarshal.
var defaults = map[string]interface{}{
	"mailbox.host":         "",
	"mailbox.port":         993,
	"mailbox.username":     "",
	"mailbox.secret":       "",
	"mailbox.security":     "tls",
	"mailbox.folder":       "INBOX",
	"mailbox.dial_timeout": "30s",

	"ingest.days_back": 1,
	"ingest.schedule":  "0 */30 * * * *",

	"alerts.keywords": []string{"alert", "notification", "important", "critical", "warning"},
	"alerts.schedule": "0 0 8 * * *",

	"storage.backend":    BackendFilesystem,
	"storage.namespace":  "",
	"storage.bucket":     "",
	"storage.root":       filepath.Join(".", "data", "objects"),
	"storage.endpoint":   "",
	"storage.region":     "",
	"storage.access_key": "",
	"storage.secret_key": "",
	"storage.use_ssl":    true,

	"ledger.url":     "",
	"ledger.timeout": "30s",

	"journal.path": "",

	"log.level":  "info",
	"log.format": "json",
}

// newViper returns a viper instance with defaults and environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies MAILAGENT_* environment overrides. If path is empty or the
// file does not exist, defaults and the environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Ingest.DaysBack < 0 {
		cfg.Ingest.DaysBack = 0
	}

	return cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require(c.Mailbox.Host, "mailbox.host")
	require(c.Mailbox.Username, "mailbox.username")
	require(c.Storage.Namespace, "storage.namespace")
	require(c.Storage.Bucket, "storage.bucket")
	require(c.Ledger.URL, "ledger.url")

	switch strings.ToLower(c.Mailbox.Security) {
	case "tls", "starttls", "none":
	default:
		errs = append(errs, fmt.Errorf("mailbox.security must be tls, starttls or none, got %q", c.Mailbox.Security))
	}

	if c.Mailbox.Port < 0 || c.Mailbox.Port > 65535 {
		errs = append(errs, fmt.Errorf("mailbox.port %d is out of range", c.Mailbox.Port))
	}

	switch c.Storage.Backend {
	case BackendFilesystem:
		require(c.Storage.Root, "storage.root")
	case BackendObject:
		if c.Storage.Endpoint == "" {
			require(c.Storage.Region, "storage.region")
		}
		require(c.Storage.AccessKey, "storage.access_key")
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %s or %s, got %q",
			BackendFilesystem, BackendObject, c.Storage.Backend))
	}

	return errors.Join(errs...)
}
