// Package config provides the typed configuration for tidemark pipelines.
// Configuration is loaded once at startup (file, environment, flags) and
// passed by value into constructors; nothing reads ambient settings later.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Config is the root configuration for one pipeline application.
type Config struct {
	// AppName identifies the pipeline application (lineage namespace suffix).
	AppName string `koanf:"app_name"`
	// ProjectRoot is the directory holding the app's tool projects.
	ProjectRoot string `koanf:"project_root"`
	// GovernanceFile is the path to governance.yaml, relative to ProjectRoot
	// unless absolute.
	GovernanceFile string `koanf:"governance_file"`

	Ingest    IngestConfig    `koanf:"ingest"`
	Transform TransformConfig `koanf:"transform"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Lineage   LineageConfig   `koanf:"lineage"`
	Executor  ExecutorConfig  `koanf:"executor"`

	Verbose bool `koanf:"verbose"`
}

// IngestConfig configures the external ingestion runner.
type IngestConfig struct {
	// Binary is the ingestion tool executable.
	Binary string `koanf:"binary"`
	// ProjectDir is the ingestion project directory.
	ProjectDir string `koanf:"project_dir"`
	// DefaultJob is the job run when none is named on the command line.
	DefaultJob string `koanf:"default_job"`
	// RunDir is where the tool leaves per-job stream metadata, used to
	// discover input datasets dynamically.
	RunDir string `koanf:"run_dir"`
}

// TransformConfig configures the external transformation runner.
type TransformConfig struct {
	// Binary is the transformation tool executable.
	Binary string `koanf:"binary"`
	// ProjectDir is the transformation project directory.
	ProjectDir string `koanf:"project_dir"`
	// ProfilesDir holds the tool's connection profiles (defaults to
	// ProjectDir).
	ProfilesDir string `koanf:"profiles_dir"`
	// Layers are the transformation layers run in order.
	Layers []LayerConfig `koanf:"layers"`
}

// LayerConfig is one transformation layer and the datasets it produces.
type LayerConfig struct {
	Name     string   `koanf:"name"`
	Datasets []string `koanf:"datasets"`
}

// WarehouseConfig points at the warehouse holding ingested raw data.
type WarehouseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	// Schema is the schema raw tables land in.
	Schema string `koanf:"schema"`
	// Tables are the raw tables checked after ingestion.
	Tables []string `koanf:"tables"`
}

// DSN returns the warehouse connection string.
func (w WarehouseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		w.User, w.Password, w.Host, w.Port, w.Database)
}

// LineageConfig configures the lineage sink.
type LineageConfig struct {
	// URL is the sink base URL.
	URL string `koanf:"url"`
	// Namespace overrides the derived lineage namespace.
	Namespace string `koanf:"namespace"`
	// Disabled turns off lineage emission entirely; steps still run and
	// report status.
	Disabled bool `koanf:"disabled"`
}

// ExecutorConfig configures subprocess supervision.
type ExecutorConfig struct {
	// Timeout bounds each step's external command (0 for no limit).
	Timeout time.Duration `koanf:"timeout"`
	// GracePeriod is how long a terminated child may linger before it is
	// force-killed.
	GracePeriod time.Duration `koanf:"grace_period"`
	// TailLines bounds the captured per-stream output tail.
	TailLines int `koanf:"tail_lines"`
}

// Namespace returns the lineage namespace: the configured override, or
// "tidemark.<app>", with a random identifier when no app name is set.
func (c *Config) Namespace() string {
	if c.Lineage.Namespace != "" {
		return c.Lineage.Namespace
	}
	app := c.AppName
	if app == "" {
		app = uuid.NewString()
	}
	return "tidemark." + app
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	if !c.Lineage.Disabled && c.Lineage.URL == "" {
		return fmt.Errorf("lineage.url is required unless lineage is disabled")
	}
	if c.Executor.Timeout < 0 {
		return fmt.Errorf("executor.timeout must not be negative")
	}
	seen := make(map[string]bool)
	for _, layer := range c.Transform.Layers {
		if layer.Name == "" {
			return fmt.Errorf("transform layer with empty name")
		}
		if seen[layer.Name] {
			return fmt.Errorf("duplicate transform layer %q", layer.Name)
		}
		seen[layer.Name] = true
	}
	return nil
}

// GovernancePath resolves the governance file path against ProjectRoot.
func (c *Config) GovernancePath() string {
	if filepath.IsAbs(c.GovernanceFile) {
		return c.GovernanceFile
	}
	return filepath.Join(c.ProjectRoot, c.GovernanceFile)
}

// Layer returns the named transformation layer.
func (c *Config) Layer(name string) (LayerConfig, bool) {
	for _, layer := range c.Transform.Layers {
		if layer.Name == name {
			return layer, true
		}
	}
	return LayerConfig{}, false
}
