package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	db := filepath.Join(t.TempDir(), "v.db")
	cfg, err := Parse([]string{"-db", db})
	require.NoError(t, err)

	assert.Equal(t, ModeCapture, cfg.Mode)
	assert.Equal(t, "any", cfg.Interface)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 9000, cfg.GRPCPort)
	assert.Equal(t, 10000, cfg.QueueSize)
	assert.Equal(t, time.Minute, cfg.ReportInterval)
	assert.Equal(t, db, cfg.DBPath)

	a := cfg.Analysis
	assert.Equal(t, []string{"192.168.1.100", "10.0.0.50", "172.16.1.200"}, a.Blacklist)
	assert.Equal(t, 50, a.FloodWindow)
	assert.Equal(t, 10, a.FloodThreshold)
	assert.Equal(t, 100, a.Trees)
	assert.Equal(t, 256, a.SampleSize)
	assert.InDelta(t, 0.1, a.Contamination, 1e-9)
	assert.Equal(t, int64(42), a.Seed)
	assert.InDelta(t, 0.5, a.Eps, 1e-9)
	assert.Equal(t, 5, a.MinSamples)
	assert.Equal(t, 5*time.Second, a.RapidGap)
	assert.Equal(t, []int{22, 23, 0, 1, 2, 3, 4, 5, 6}, a.NightHours)
	assert.Equal(t, 20, a.FanOutThreshold)
	assert.Zero(t, a.MaxObservations)
	assert.Zero(t, a.SessionTTL)

	assert.Zero(t, cfg.Capture.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Simulate.Duration)
	assert.InDelta(t, 0.2, cfg.Simulate.SuspiciousRate, 1e-9)
}

func TestParse_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("VOIPMON_ADDR", ":9999")
	t.Setenv("VOIPMON_QUEUE", "50")
	t.Setenv("VOIPMON_DEBUG", "true")
	t.Setenv("VOIPMON_REPORT_INTERVAL", "30s")
	t.Setenv("VOIPMON_DURATION", "10m")

	cfg, err := Parse([]string{"-db", filepath.Join(t.TempDir(), "v.db"), "-addr", ":7000", "-duration", "90s"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "flag wins over env")
	assert.Equal(t, 50, cfg.QueueSize)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.ReportInterval)
	assert.Equal(t, 90*time.Second, cfg.Capture.Duration)
}

func TestParse_BadEnvKeepsDefault(t *testing.T) {
	t.Setenv("VOIPMON_QUEUE", "lots")
	cfg, err := Parse([]string{"-db", filepath.Join(t.TempDir(), "v.db")})
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.QueueSize)
}

func TestParse_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voipmon.yaml")
	doc := `
analysis:
  blacklist: ["203.0.113.15"]
  flood_threshold: 4
  contamination: 0.05
  rapid_gap: 2s
  night_hours: [0, 1, 2]
  session_ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Parse([]string{"-db", filepath.Join(dir, "v.db"), "-config", path})
	require.NoError(t, err)

	a := cfg.Analysis
	assert.Equal(t, []string{"203.0.113.15"}, a.Blacklist)
	assert.Equal(t, 4, a.FloodThreshold)
	assert.InDelta(t, 0.05, a.Contamination, 1e-9)
	assert.Equal(t, 2*time.Second, a.RapidGap)
	assert.Equal(t, []int{0, 1, 2}, a.NightHours)
	assert.Equal(t, 10*time.Minute, a.SessionTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 50, a.FloodWindow)
	assert.Equal(t, 100, a.Trees)
}

func TestParse_BlacklistEnvAfterFile(t *testing.T) {
	t.Setenv("VOIPMON_BLACKLIST", " 10.9.9.9 , ,10.8.8.8")
	cfg, err := Parse([]string{"-db", filepath.Join(t.TempDir(), "v.db")})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.9.9.9", "10.8.8.8"}, cfg.Analysis.Blacklist)
}

func TestParse_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "v.db")

	_, err := Parse([]string{"-db", db, "-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("analysis: [unclosed"), 0o644))
	_, err = Parse([]string{"-db", db, "-config", bad})
	assert.Error(t, err)

	_, err = Parse([]string{"-db", db, "-no-such-flag"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Parse([]string{"-db", filepath.Join(t.TempDir(), "v.db")})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "replay" }},
		{"capture without source", func(c *Config) { c.Interface = ""; c.PcapPath = "" }},
		{"bad interface", func(c *Config) { c.Interface = "eth0; rm -rf /" }},
		{"bad blacklist entry", func(c *Config) { c.Analysis.Blacklist = []string{"10.0.0.1", "example.com"} }},
		{"analyze without data", func(c *Config) { c.Mode = ModeAnalyze }},
		{"negative duration", func(c *Config) { c.Capture.Duration = -time.Second }},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }},
		{"zero interval", func(c *Config) { c.ReportInterval = 0 }},
		{"user without hash", func(c *Config) { c.APIUser = "admin" }},
		{"suspicious rate", func(c *Config) { c.Simulate.SuspiciousRate = 1.5 }},
		{"contamination", func(c *Config) { c.Analysis.Contamination = 0.9 }},
		{"night share", func(c *Config) { c.Analysis.NightShare = 0 }},
		{"night hour", func(c *Config) { c.Analysis.NightHours = []int{24} }},
		{"negative cap", func(c *Config) { c.Analysis.MaxObservations = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Mode = ModeAnalyze
	cfg.Interface = ""
	cfg.DataFile = "export.json"
	assert.NoError(t, cfg.Validate(), "analyze mode needs no capture source")
}
