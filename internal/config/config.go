package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// Run modes.
const (
	ModeCapture  = "capture"
	ModeAnalyze  = "analyze"
	ModeSimulate = "simulate"
)

// Config holds all application configuration.
type Config struct {
	Mode           string        `default:"capture"`
	Interface      string        `default:"any"`
	PcapPath       string        // offline capture file, replaces Interface when set
	Addr           string        `default:":8080"`
	GRPCPort       int           `default:"9000"`
	DBPath         string        // empty selects ~/.voipmon/voipmon.db
	Debug          bool          `default:"false"`
	Trace          bool          `default:"false"`
	QueueSize      int           `default:"10000"`
	ReportInterval time.Duration `default:"1m"`
	ConfigFile     string
	DataFile       string // JSON export read by analyze mode
	OutputDir      string `default:"."`
	APIUser        string
	APIPassword    string // bcrypt hash

	Capture  Capture
	Simulate Simulation
	Analysis Analysis
}

// Capture bounds a live capture or simulation run in wall-clock time.
type Capture struct {
	Duration time.Duration `default:"0s"` // 0 captures until interrupted
}

// Simulation tunes the synthetic traffic generator.
type Simulation struct {
	Duration       time.Duration `default:"5m"`
	SuspiciousRate float64       `default:"0.2"`
	Seed           int64         `default:"1"`
	PcapOut        string        // optional pcap copy of the generated frames
	Speed          float64       `default:"1"`
}

// Analysis holds the detector tunables. It is the part of the config the
// YAML file is meant for.
type Analysis struct {
	Blacklist      []string `yaml:"blacklist" default:"[\"192.168.1.100\",\"10.0.0.50\",\"172.16.1.200\"]"`
	FloodWindow    int      `yaml:"flood_window" default:"50"`
	FloodThreshold int      `yaml:"flood_threshold" default:"10"`

	Trees         int     `yaml:"trees" default:"100"`
	SampleSize    int     `yaml:"sample_size" default:"256"`
	Contamination float64 `yaml:"contamination" default:"0.1"`
	Seed          int64   `yaml:"seed" default:"42"`
	Eps           float64 `yaml:"eps" default:"0.5"`
	MinSamples    int     `yaml:"min_samples" default:"5"`

	RapidGap        time.Duration `yaml:"rapid_gap" default:"5s"`
	RapidMinCount   int           `yaml:"rapid_min_count" default:"5"`
	NightShare      float64       `yaml:"night_share" default:"0.7"`
	NightHours      []int         `yaml:"night_hours" default:"[22,23,0,1,2,3,4,5,6]"`
	FanOutThreshold int           `yaml:"fan_out_threshold" default:"20"`

	MaxObservations int           `yaml:"max_observations" default:"0"`
	SessionTTL      time.Duration `yaml:"session_ttl" default:"0s"`
	StreamTTL       time.Duration `yaml:"stream_ttl" default:"0s"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
}

// Load reads the configuration from os.Args and the environment.
func Load() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse builds a Config from struct defaults, VOIPMON_* environment
// variables, the given command line flags and, last, the optional YAML file.
// Flags take precedence over environment variables.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	// Environment
	cfg.Mode = getEnv("VOIPMON_MODE", cfg.Mode)
	cfg.Interface = getEnv("VOIPMON_INTERFACE", cfg.Interface)
	cfg.PcapPath = getEnv("VOIPMON_PCAP", cfg.PcapPath)
	cfg.Addr = getEnv("VOIPMON_ADDR", cfg.Addr)
	cfg.GRPCPort = getEnvInt("VOIPMON_GRPC", cfg.GRPCPort)
	cfg.DBPath = getEnv("VOIPMON_DB", cfg.DBPath)
	cfg.Debug = getEnvBool("VOIPMON_DEBUG", cfg.Debug)
	cfg.Trace = getEnvBool("VOIPMON_TRACE", cfg.Trace)
	cfg.QueueSize = getEnvInt("VOIPMON_QUEUE", cfg.QueueSize)
	cfg.ReportInterval = getEnvDuration("VOIPMON_REPORT_INTERVAL", cfg.ReportInterval)
	cfg.ConfigFile = getEnv("VOIPMON_CONFIG", cfg.ConfigFile)
	cfg.OutputDir = getEnv("VOIPMON_OUTPUT", cfg.OutputDir)
	cfg.APIUser = getEnv("VOIPMON_API_USER", cfg.APIUser)
	cfg.APIPassword = getEnv("VOIPMON_API_PASSWORD_HASH", cfg.APIPassword)
	cfg.Capture.Duration = getEnvDuration("VOIPMON_DURATION", cfg.Capture.Duration)

	// Command Line Flags (Override Env)
	fs := flag.NewFlagSet("voipmon", flag.ContinueOnError)
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Run mode: capture, analyze or simulate")
	fs.StringVar(&cfg.Interface, "i", cfg.Interface, "Network interface to capture on")
	fs.StringVar(&cfg.PcapPath, "pcap", cfg.PcapPath, "Read frames from a pcap file instead of an interface")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address (empty to disable)")
	fs.IntVar(&cfg.GRPCPort, "grpc", cfg.GRPCPort, "gRPC health server port (0 to disable)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Print OpenTelemetry spans to stdout")
	fs.IntVar(&cfg.QueueSize, "queue", cfg.QueueSize, "Capture queue size in frames")
	fs.DurationVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "Period between reports while capturing")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML file with analysis tunables")
	fs.StringVar(&cfg.DataFile, "data", cfg.DataFile, "JSON export to analyze")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory for report JSON and PDF files")
	fs.StringVar(&cfg.APIUser, "api-user", cfg.APIUser, "Basic auth user for the HTTP API (empty disables auth)")
	fs.StringVar(&cfg.APIPassword, "api-password-hash", cfg.APIPassword, "bcrypt hash of the API password")
	fs.DurationVar(&cfg.Capture.Duration, "duration", cfg.Capture.Duration, "Stop a capture or simulation after this long (0 runs until interrupted)")
	fs.DurationVar(&cfg.Simulate.Duration, "sim-duration", cfg.Simulate.Duration, "Simulation length")
	fs.Float64Var(&cfg.Simulate.SuspiciousRate, "sim-suspicious", cfg.Simulate.SuspiciousRate, "Share of simulated activities that are suspicious")
	fs.Int64Var(&cfg.Simulate.Seed, "sim-seed", cfg.Simulate.Seed, "Simulation random seed")
	fs.StringVar(&cfg.Simulate.PcapOut, "sim-pcap", cfg.Simulate.PcapOut, "Write simulated frames to this pcap file")
	fs.Float64Var(&cfg.Simulate.Speed, "sim-speed", cfg.Simulate.Speed, "Simulation clock multiplier (0 runs as fast as possible)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	if bl, ok := os.LookupEnv("VOIPMON_BLACKLIST"); ok {
		cfg.Analysis.Blacklist = splitList(bl)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = getDefaultDBPath()
	}

	return cfg, cfg.Validate()
}

// fileConfig is the YAML document layout.
type fileConfig struct {
	Analysis *Analysis `yaml:"analysis"`
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Keys missing from the file keep their current values.
	doc := fileConfig{Analysis: &c.Analysis}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeCapture, ModeAnalyze, ModeSimulate:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Mode == ModeCapture && c.Interface == "" && c.PcapPath == "" {
		errs = append(errs, errors.New("capture mode needs an interface or a pcap file"))
	}
	if c.Mode == ModeCapture && c.PcapPath == "" && c.Interface != "" && !domain.IsValidInterface(c.Interface) {
		errs = append(errs, fmt.Errorf("invalid interface name %q", c.Interface))
	}
	if c.Mode == ModeAnalyze && c.DataFile == "" {
		errs = append(errs, errors.New("analyze mode needs a data file"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("report interval must be positive, got %s", c.ReportInterval))
	}
	if c.Capture.Duration < 0 {
		errs = append(errs, fmt.Errorf("capture duration must not be negative, got %s", c.Capture.Duration))
	}
	if c.APIUser != "" && c.APIPassword == "" {
		errs = append(errs, errors.New("api user set without a password hash"))
	}
	if c.Simulate.SuspiciousRate < 0 || c.Simulate.SuspiciousRate > 1 {
		errs = append(errs, fmt.Errorf("sim-suspicious must be within [0,1], got %g", c.Simulate.SuspiciousRate))
	}

	a := c.Analysis
	for _, addr := range a.Blacklist {
		if !domain.IsValidAddr(addr) {
			errs = append(errs, fmt.Errorf("blacklist entry %q is not an IP address", addr))
		}
	}
	if a.Contamination <= 0 || a.Contamination > 0.5 {
		errs = append(errs, fmt.Errorf("contamination must be within (0,0.5], got %g", a.Contamination))
	}
	if a.NightShare <= 0 || a.NightShare > 1 {
		errs = append(errs, fmt.Errorf("night_share must be within (0,1], got %g", a.NightShare))
	}
	for _, h := range a.NightHours {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Errorf("night hour %d out of range", h))
		}
	}
	if a.MaxObservations < 0 {
		errs = append(errs, errors.New("max_observations must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in the user's home
// directory, creating the directory if needed.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not get user home directory, using current dir", "error", err)
		return "voipmon.db"
	}

	dir := filepath.Join(home, ".voipmon")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("could not create .voipmon directory, using current dir", "error", err)
		return "voipmon.db"
	}

	return filepath.Join(dir, "voipmon.db")
}
