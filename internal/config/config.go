package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration. It is passed explicitly into the
// workflow entry point; the engine keeps no process-wide mutable state.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Records    RecordsConfig    `yaml:"records"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Audit      AuditConfig      `yaml:"audit"`
	Business   BusinessConfig   `yaml:"business"`
	Technician TechnicianConfig `yaml:"technician"`
}

type DeviceConfig struct {
	Controller string `yaml:"controller"`
	Namespace  string `yaml:"namespace"`
}

type RecordsConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// AuditConfig controls the optional Postgres compliance archive. An empty
// DSN disables it.
type AuditConfig struct {
	DSN          string        `yaml:"dsn"`
	BufferSize   int           `yaml:"buffer_size"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// BusinessConfig is operator/business metadata embedded in every record.
// It replaces the ambient environment variables the engine used to read.
type BusinessConfig struct {
	Name         string `yaml:"name"`
	Address      string `yaml:"address"`
	ContactName  string `yaml:"contact_name"`
	ContactPhone string `yaml:"contact_phone"`
	Email        string `yaml:"email"`
	Website      string `yaml:"website"`
}

type TechnicianConfig struct {
	Name string `yaml:"name"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Controller: "/dev/nvme0",
			Namespace:  "/dev/nvme0n1",
		},
		Records: RecordsConfig{
			Dir: "build",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9115",
			Path:    "/metrics",
		},
		Audit: AuditConfig{
			DSN:          "",
			BufferSize:   1000,
			FlushTimeout: 10 * time.Second,
		},
		Business: BusinessConfig{
			Name:         "Not Applicable",
			Address:      "Not Applicable",
			ContactName:  "Not Applicable",
			ContactPhone: "Not Applicable",
		},
		Technician: TechnicianConfig{
			Name: "Not Provided",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Device.Controller == "" {
		return fmt.Errorf("device.controller must not be empty")
	}
	if c.Device.Namespace == "" {
		return fmt.Errorf("device.namespace must not be empty")
	}
	if !strings.HasPrefix(c.Device.Controller, "/dev/") {
		return fmt.Errorf("device.controller %q must be a /dev path", c.Device.Controller)
	}
	if !strings.HasPrefix(c.Device.Namespace, "/dev/") {
		return fmt.Errorf("device.namespace %q must be a /dev path", c.Device.Namespace)
	}
	if c.Records.Dir == "" {
		return fmt.Errorf("records.dir must not be empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("audit.buffer_size must be >= 1")
	}
	if c.Audit.DSN != "" && strings.Contains(c.Audit.DSN, "sslmode=disable") {
		log.Warn().Msg("audit DSN has sslmode=disable, connections to Postgres are unencrypted")
	}
	return nil
}

// BusinessDetails renders the business metadata for the record.
func (c *Config) BusinessDetails() map[string]string {
	return map[string]string{
		"name":          c.Business.Name,
		"address":       c.Business.Address,
		"contact_name":  c.Business.ContactName,
		"contact_phone": c.Business.ContactPhone,
		"email":         c.Business.Email,
		"website":       c.Business.Website,
	}
}

// TechnicianDetails renders the technician metadata for the record.
func (c *Config) TechnicianDetails() map[string]string {
	return map[string]string{
		"name": c.Technician.Name,
	}
}
