package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ========================================
// Helpers
// ========================================

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("RTSP_URL", "rtsp://camera.local/stream")
	t.Setenv("MODEL_PATH", "models/possum.onnx")
	cfg, err := Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return cfg
}

// ========================================
// Load Tests
// ========================================

func TestRead_Defaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.Port != 8080 || cfg.Capture.SkipFrames != 5 || cfg.Capture.DefaultFPS != 25 {
		t.Errorf("Unexpected capture defaults: port %d, %+v", cfg.Port, cfg.Capture)
	}
	s := cfg.Session
	if s.WindowSize != 5 || s.WindowThreshold != 3 || s.NoMotionCloseMax != 1 || s.FrameSaveInterval != 3 {
		t.Errorf("Unexpected window defaults: %+v", s)
	}
	if s.VisitTimeout != 120*time.Second || s.StaticSaveInterval != 10*time.Second || s.TrailingSeconds != 3 {
		t.Errorf("Unexpected interval defaults: %+v", s)
	}
	if cfg.Zones.SplitX != 700 || cfg.Zones.LeftImage[1] != [2]float64{700, 340} || cfg.Zones.RightReal[2] != [2]float64{360, 192} {
		t.Errorf("Unexpected zone defaults: %+v", cfg.Zones)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Storage.Backend != "local" || cfg.Upload.Workers != 2 {
		t.Errorf("Unexpected backend defaults: %+v %+v %+v", cfg.Database, cfg.Storage, cfg.Upload)
	}
	if cfg.Dashboard.TTL != 120*time.Second || cfg.Dashboard.Workers != 6 {
		t.Errorf("Unexpected dashboard defaults: %+v", cfg.Dashboard)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestRead_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SKIP_FRAMES", "2")
	t.Setenv("VISIT_TIMEOUT", "90s")
	t.Setenv("ZONE_LEFT_IMAGE", "0,0;10,0;10,10;0,10")
	cfg := validConfig(t)

	if cfg.Capture.SkipFrames != 2 || cfg.Session.VisitTimeout != 90*time.Second {
		t.Errorf("Overrides not applied: %+v %+v", cfg.Capture, cfg.Session)
	}
	if cfg.Zones.LeftImage != (Quad{{0, 0}, {10, 0}, {10, 10}, {0, 10}}) {
		t.Errorf("Unexpected quad %v", cfg.Zones.LeftImage)
	}
}

func TestRead_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := "port: 9090\nsession:\n  window_size: 7\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg := validConfig(t)
	if cfg.Port != 9090 || cfg.Session.WindowSize != 7 {
		t.Errorf("Config file not applied: port %d, window %d", cfg.Port, cfg.Session.WindowSize)
	}
}

// ========================================
// Validate Tests
// ========================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing stream", func(c *Config) { c.Capture.RTSPURL = "" }},
		{"missing model", func(c *Config) { c.Capture.ModelPath = "" }},
		{"threshold above window", func(c *Config) { c.Session.WindowThreshold = 6 }},
		{"empty window", func(c *Config) { c.Session.WindowSize = 0 }},
		{"close max at threshold", func(c *Config) { c.Session.NoMotionCloseMax = 3 }},
		{"zero timeout", func(c *Config) { c.Session.VisitTimeout = 0 }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestQuad_SetValue(t *testing.T) {
	var q Quad
	for _, bad := range []string{"1,2;3,4", "1,2;3,4;5,6;7", "a,b;1,2;3,4;5,6"} {
		if err := q.SetValue(bad); err == nil {
			t.Errorf("Expected %q to fail", bad)
		}
	}
	if err := q.SetValue(" 1.5,2 ; 3,4;5,6;7,8 "); err != nil || q[0] != [2]float64{1.5, 2} {
		t.Errorf("Unexpected parse: %v %v", q, err)
	}
}
