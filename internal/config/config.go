package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/wiggum/internal/executor"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/packet"
)

// Config represents the complete Wiggum configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Packet  PacketConfig  `mapstructure:"packet"`
	Branch  BranchConfig  `mapstructure:"branch"`
	Store   StoreConfig   `mapstructure:"store"`
	Backend BackendConfig `mapstructure:"backend"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// AgentConfig controls the agent controller's queue behavior
type AgentConfig struct {
	// DefaultPriority is assigned to projects enqueued without an explicit
	// priority. Lower values are served first. (default: 10)
	DefaultPriority int `mapstructure:"default_priority"`
}

// PacketConfig controls the packet convergence loop
type PacketConfig struct {
	// MaxIterations limits the generate-critique cycles per packet (default: 15)
	MaxIterations int `mapstructure:"max_iterations"`
	// PassThreshold is the confidence required to accept a packet's output,
	// as the fraction of acceptance criteria met (0..1, default: 0.75)
	PassThreshold float64 `mapstructure:"pass_threshold"`
}

// BranchConfig controls branch naming for applied changes
type BranchConfig struct {
	// Prefix is the branch name prefix (default: "wiggum")
	// Branches are named <prefix>/<project-slug>-<timestamp>
	Prefix string `mapstructure:"prefix"`
}

// StoreConfig controls how agent state is persisted
type StoreConfig struct {
	// Backend selects the persistence layer: "file" or "sqlite" (default: "file")
	Backend string `mapstructure:"backend"`
}

// BackendConfig holds the shell commands the executor ports run.
// Each command receives a JSON request on stdin and must answer with a
// JSON response on stdout.
type BackendConfig struct {
	// GenerateCommand produces file changes for a packet iteration.
	// Required to run projects.
	GenerateCommand string `mapstructure:"generate_command"`
	// CritiqueCommand evaluates accumulated files against acceptance
	// criteria. Required to run projects with criteria.
	CritiqueCommand string `mapstructure:"critique_command"`
	// ApplyCommand commits changes and opens a change request.
	// Optional; when empty, changes are reported as applied without a
	// change request.
	ApplyCommand string `mapstructure:"apply_command"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// PathsConfig controls where Wiggum stores data
type PathsConfig struct {
	// DataDir is the directory for the state file, lock file, and logs.
	// If empty, defaults to ".wiggum" relative to the working directory.
	// Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir returns the resolved data directory path.
// If DataDir is empty, it returns the default path relative to baseDir.
// If DataDir starts with ~, it expands to the user's home directory.
// If DataDir is a relative path, it's resolved relative to baseDir.
func (p *PathsConfig) ResolveDataDir(baseDir string) string {
	if p.DataDir == "" {
		return filepath.Join(baseDir, ".wiggum")
	}

	path := p.DataDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	packetDefaults := executor.DefaultPacketConfig()

	return &Config{
		Agent: AgentConfig{
			DefaultPriority: packet.DefaultPriority,
		},
		Packet: PacketConfig{
			MaxIterations: packetDefaults.MaxIterations,
			PassThreshold: packetDefaults.PassThreshold,
		},
		Branch: BranchConfig{
			Prefix: executor.DefaultBranchPrefix,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Backend: BackendConfig{
			GenerateCommand: "",
			CritiqueCommand: "",
			ApplyCommand:    "",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Paths: PathsConfig{
			DataDir: "", // Empty means use default: .wiggum
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Agent defaults
	viper.SetDefault("agent.default_priority", defaults.Agent.DefaultPriority)

	// Packet defaults
	viper.SetDefault("packet.max_iterations", defaults.Packet.MaxIterations)
	viper.SetDefault("packet.pass_threshold", defaults.Packet.PassThreshold)

	// Branch defaults
	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)

	// Backend defaults
	viper.SetDefault("backend.generate_command", defaults.Backend.GenerateCommand)
	viper.SetDefault("backend.critique_command", defaults.Backend.CritiqueCommand)
	viper.SetDefault("backend.apply_command", defaults.Backend.ApplyCommand)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// PacketExecutorConfig converts to the executor's packet loop settings.
func (c *Config) PacketExecutorConfig() executor.PacketConfig {
	return executor.PacketConfig{
		MaxIterations: c.Packet.MaxIterations,
		PassThreshold: c.Packet.PassThreshold,
	}
}

// ProjectExecutorConfig converts to the executor's project settings.
func (c *Config) ProjectExecutorConfig() executor.ProjectConfig {
	return executor.ProjectConfig{
		Packet:       c.PacketExecutorConfig(),
		BranchPrefix: c.Branch.Prefix,
	}
}

// RotationConfig converts to the log writer's rotation settings.
func (c *Config) RotationConfig() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		Compress:   c.Logging.Compress,
	}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wiggum")
	}
	// Fall back to ~/.config/wiggum
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wiggum"
	}
	return filepath.Join(home, ".config", "wiggum")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidStoreBackends returns the list of valid store backend values
func ValidStoreBackends() []string {
	return []string{"file", "sqlite"}
}

// IsValidStoreBackend checks if the given backend is valid
func IsValidStoreBackend(backend string) bool {
	for _, valid := range ValidStoreBackends() {
		if backend == valid {
			return true
		}
	}
	return false
}
