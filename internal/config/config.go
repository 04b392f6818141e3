package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/shlex"
)

// Config holds all application configuration.
type Config struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"-"`
	SpoolDir  string `json:"spool_dir"`
	Tolerance int    `json:"tolerance"`
	// TotalPolicy controls what happens to sessions whose
	// reported total disagrees with the category sum beyond
	// Tolerance: "recompute" (default) or "reject".
	TotalPolicy string `json:"total_policy"`
	// ExportCommand is an optional shell-style command run
	// after each CSV export, with the output path appended.
	ExportCommand string        `json:"export_command,omitempty"`
	WriteTimeout  time.Duration `json:"-"`

	// Multi-directory support (from config.json). When set,
	// these take precedence over SpoolDir. Env vars override
	// with a single-element slice.
	SpoolDirs []string `json:"spool_dirs,omitempty"`
}

const (
	envSpoolDir      = "TRACKVIEW_SPOOL_DIR"
	envDataDir       = "TRACKVIEW_DATA_DIR"
	envTolerance     = "TRACKVIEW_TOLERANCE"
	envTotalPolicy   = "TRACKVIEW_TOTAL_POLICY"
	envExportCommand = "TRACKVIEW_EXPORT_COMMAND"
)

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".trackview")
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "snapshots.db"),
		SpoolDir:     filepath.Join(dataDir, "spool"),
		TotalPolicy:  "recompute",
		WriteTimeout: 30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file <
// env < flags. The provided FlagSet must already be parsed by
// the caller. Only flags that were explicitly set override the
// lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, env, and config
// file, without parsing CLI flags. Use this for subcommands
// that manage their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	cfg.loadEnv()

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "snapshots.db")
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		SpoolDirs     []string `json:"spool_dirs"`
		Tolerance     *int     `json:"tolerance"`
		TotalPolicy   string   `json:"total_policy"`
		ExportCommand string   `json:"export_command"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	// loadEnv runs before loadFile; a file value applies only
	// when its env var is unset, keeping env above the file.
	if len(file.SpoolDirs) > 0 && c.SpoolDirs == nil {
		c.SpoolDirs = file.SpoolDirs
	}
	if file.Tolerance != nil && os.Getenv(envTolerance) == "" {
		c.Tolerance = *file.Tolerance
	}
	if file.TotalPolicy != "" &&
		os.Getenv(envTotalPolicy) == "" {
		c.TotalPolicy = file.TotalPolicy
	}
	if file.ExportCommand != "" &&
		os.Getenv(envExportCommand) == "" {
		c.ExportCommand = file.ExportCommand
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv(envSpoolDir); v != "" {
		c.SpoolDir = v
		c.SpoolDirs = []string{v}
	}
	if v := os.Getenv(envDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(envTolerance); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tolerance = n
		}
	}
	if v := os.Getenv(envTotalPolicy); v != "" {
		c.TotalPolicy = v
	}
	if v := os.Getenv(envExportCommand); v != "" {
		c.ExportCommand = v
	}
}

// ResolveSpoolDirs returns the effective list of spool
// directories. Precedence: env var (single) > config file
// array > default (single).
func (c *Config) ResolveSpoolDirs() []string {
	if len(c.SpoolDirs) > 0 {
		return c.SpoolDirs
	}
	if c.SpoolDir != "" {
		return []string{c.SpoolDir}
	}
	return nil
}

// ExportCommandArgs splits ExportCommand using shell-style
// quoting rules. Returns nil when no command is configured.
func (c *Config) ExportCommandArgs() ([]string, error) {
	if c.ExportCommand == "" {
		return nil, nil
	}
	args, err := shlex.Split(c.ExportCommand)
	if err != nil {
		return nil, fmt.Errorf(
			"parsing export command: %w", err,
		)
	}
	return args, nil
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	fs.String("spool", "", "Spool directory to ingest")
	fs.Int(
		"tolerance", 0,
		"Allowed drift between reported and computed totals (seconds)",
	)
	fs.String(
		"total-policy", "recompute",
		"Handling of total mismatches: recompute or reject",
	)
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "spool":
			cfg.SpoolDir = f.Value.String()
			cfg.SpoolDirs = []string{f.Value.String()}
		case "tolerance":
			cfg.Tolerance, _ = strconv.Atoi(f.Value.String())
		case "total-policy":
			cfg.TotalPolicy = f.Value.String()
		}
	})
}
