// Package config loads the lampctl configuration: a YAML file merged over
// built-in defaults, with secrets supplied through the environment (or an
// env file) so they never land in the YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lampctl/lampctl/pkg/engine"
)

// DefaultPath is the configuration file consulted when none is given.
const DefaultPath = "/etc/lampctl/config.yml"

// DefaultEnvPath is the optional env file loaded before reading overrides.
const DefaultEnvPath = "/etc/lampctl/lampctl.env"

// EnvDBRootPassword carries the database root password. Environment only.
const EnvDBRootPassword = "LAMPCTL_MYSQL_ROOT_PASSWORD"

// Config is the full lampctl configuration.
type Config struct {
	Apache    ApacheConfig    `yaml:"apache"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	PHP       PHPConfig       `yaml:"php"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ApacheConfig holds web-server paths and service naming.
type ApacheConfig struct {
	// SitesDir is the base directory for site document roots.
	SitesDir string `yaml:"sites_dir" validate:"required"`

	// VhostsDir is where virtual-host files are written.
	VhostsDir string `yaml:"vhosts_dir" validate:"required"`

	// DocRootSubdir is served inside each site directory.
	DocRootSubdir string `yaml:"doc_root_subdir"`

	// Service is the systemd unit name.
	Service string `yaml:"service" validate:"required"`
}

// MySQLConfig holds database-server settings. The root password is never
// read from YAML; it comes from the environment.
type MySQLConfig struct {
	Service   string `yaml:"service" validate:"required"`
	Charset   string `yaml:"default_charset" validate:"required"`
	Collation string `yaml:"default_collation" validate:"required"`

	rootPassword string
}

// RootPassword returns the environment-sourced root password, if any.
func (m MySQLConfig) RootPassword() string {
	return m.rootPassword
}

// PHPConfig holds interpreter settings.
type PHPConfig struct {
	// SupportedVersions lists installable interpreter versions.
	SupportedVersions []string `yaml:"supported_versions" validate:"required,min=1,dive,required"`

	// Packages are package name templates expanded with the version.
	Packages []string `yaml:"packages" validate:"required,min=1"`
}

// SecurityConfig holds execution-safety settings.
type SecurityConfig struct {
	// DryRunByDefault makes every command a dry-run unless overridden.
	DryRunByDefault bool `yaml:"dry_run_by_default"`

	// MinFreeDiskMiB is the preflight free-space floor.
	MinFreeDiskMiB uint64 `yaml:"min_free_disk_mib" validate:"required,gt=0"`

	// MirrorHost is the package mirror probed for reachability, host:port.
	MirrorHost string `yaml:"mirror_host" validate:"required,hostname_port"`

	// OperationTimeout bounds each forward and inverse effect.
	OperationTimeout time.Duration `yaml:"operation_timeout" validate:"required,gt=0"`

	// LockPath is the run lock file.
	LockPath string `yaml:"lock_path" validate:"required"`

	// StackPackages are the non-PHP packages the stack requires.
	StackPackages []string `yaml:"stack_packages" validate:"required,min=1"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`

	// Format is console or json.
	Format string `yaml:"format" validate:"oneof=console json"`
}

// StoreConfig configures journal and audit persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
}

// TelemetryConfig configures optional metrics exposition.
type TelemetryConfig struct {
	// MetricsAddr exposes Prometheus metrics on this address for the
	// duration of a run. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration, mirroring a stock
// Debian/Ubuntu Apache + MariaDB layout.
func Default() Config {
	return Config{
		Apache: ApacheConfig{
			SitesDir:      "/var/www",
			VhostsDir:     "/etc/apache2/sites-available",
			DocRootSubdir: "web",
			Service:       "apache2",
		},
		MySQL: MySQLConfig{
			Service:   "mariadb",
			Charset:   "utf8mb4",
			Collation: "utf8mb4_unicode_ci",
		},
		PHP: PHPConfig{
			SupportedVersions: []string{"7.4", "8.1", "8.2", "8.3"},
			Packages:          []string{"php%s", "php%s-fpm", "php%s-mysql", "php%s-xml", "php%s-mbstring"},
		},
		Security: SecurityConfig{
			MinFreeDiskMiB:   2048,
			MirrorHost:       "deb.debian.org:80",
			OperationTimeout: 10 * time.Minute,
			LockPath:         "/run/lampctl.lock",
			StackPackages:    []string{"apache2", "mariadb-server", "mariadb-client"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Path: "/var/lib/lampctl/lampctl.db",
		},
	}
}

// Load reads the configuration file at path (DefaultPath when empty),
// merges it over the defaults, applies environment overrides, and
// validates the result. A missing file is not an error: the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	// The env file is optional; a missing one is fine.
	_ = godotenv.Load(DefaultEnvPath)
	cfg.MySQL.rootPassword = os.Getenv(EnvDBRootPassword)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's struct constraints.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	return nil
}

// EngineSettings maps the configuration into the engine's read-only
// settings view, consulted at plan-build and validation time.
func (c Config) EngineSettings() engine.Settings {
	return engine.Settings{
		SitesDir:             c.Apache.SitesDir,
		VhostsDir:            c.Apache.VhostsDir,
		DocRootSubdir:        c.Apache.DocRootSubdir,
		SupportedPHPVersions: c.PHP.SupportedVersions,
		WebServerService:     c.Apache.Service,
		DatabaseService:      c.MySQL.Service,
		StackPackages:        c.Security.StackPackages,
		PHPPackages:          c.PHP.Packages,
		DatabaseCharset:      c.MySQL.Charset,
		DatabaseCollation:    c.MySQL.Collation,
		DatabaseRootPassword: c.MySQL.rootPassword,
		MirrorHost:           c.Security.MirrorHost,
		MinFreeDiskBytes:     c.Security.MinFreeDiskMiB << 20,
		OperationTimeout:     c.Security.OperationTimeout,
	}
}
