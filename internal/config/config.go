package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ErrInvalid marks configuration that cannot be used to start the tracker.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port           int    `yaml:"port" env:"PORT" env-default:"8080"`
	Password       string `yaml:"password" env:"PASSWORD" env-default:"possum"`
	LogDirectory   string `yaml:"log_dir" env:"LOG_DIR" env-default:"./logs"`
	MediaDirectory string `yaml:"media_dir" env:"MEDIA_DIR" env-default:"./possum_detected"`

	Capture   CaptureConfig   `yaml:"capture"`
	Session   SessionConfig   `yaml:"session"`
	Motion    MotionConfig    `yaml:"motion"`
	Zones     ZonesConfig     `yaml:"zones"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Upload    UploadConfig    `yaml:"upload"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Events    EventsConfig    `yaml:"events"`
}

type CaptureConfig struct {
	RTSPURL        string        `yaml:"rtsp_url" env:"RTSP_URL"`
	ModelPath      string        `yaml:"model_path" env:"MODEL_PATH"`
	SkipFrames     int           `yaml:"skip_frames" env:"SKIP_FRAMES" env-default:"5"` // process every Nth captured frame
	DefaultFPS     float64       `yaml:"default_fps" env:"DEFAULT_FPS" env-default:"25"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY" env-default:"2s"`
}

type SessionConfig struct {
	WindowSize         int           `yaml:"window_size" env:"WINDOW_SIZE" env-default:"5"`
	WindowThreshold    int           `yaml:"window_threshold" env:"WINDOW_THRESHOLD" env-default:"3"`
	NoMotionCloseMax   int           `yaml:"no_motion_close_max" env:"NO_MOTION_CLOSE_MAX" env-default:"1"`
	VisitTimeout       time.Duration `yaml:"visit_timeout" env:"VISIT_TIMEOUT" env-default:"120s"`
	FrameSaveInterval  int           `yaml:"frame_save_interval" env:"FRAME_SAVE_INTERVAL" env-default:"3"`
	StaticSaveInterval time.Duration `yaml:"static_save_interval" env:"STATIC_SAVE_INTERVAL" env-default:"10s"`
	TrailingSeconds    float64       `yaml:"trailing_seconds" env:"TRAILING_SECONDS" env-default:"3"`
}

type MotionConfig struct {
	MinArea          float64 `yaml:"min_area" env:"MOTION_MIN_AREA" env-default:"400"`
	PaddingRatio     float64 `yaml:"padding_ratio" env:"MOTION_PADDING" env-default:"0.3"`
	History          int     `yaml:"history" env:"MOG2_HISTORY" env-default:"500"`
	VarThreshold     float64 `yaml:"var_threshold" env:"MOG2_VAR_THRESHOLD" env-default:"25"`
	KernelSize       int     `yaml:"kernel_size" env:"MORPH_KERNEL" env-default:"9"`
	DilateIterations int     `yaml:"dilate_iterations" env:"MORPH_DILATE_ITERATIONS" env-default:"2"`
}

type ZonesConfig struct {
	SplitX       float64 `yaml:"split_x" env:"ZONE_SPLIT_X" env-default:"700"`
	NoiseFloorPx float64 `yaml:"noise_floor_px" env:"NOISE_FLOOR_PX" env-default:"10"`

	LeftImage      Quad    `yaml:"left_image" env:"ZONE_LEFT_IMAGE" env-default:"110,397;700,340;711,680;128,740"`
	LeftReal       Quad    `yaml:"left_real" env:"ZONE_LEFT_REAL" env-default:"0,0;365,0;365,195;0,195"`
	LeftPixelToCM  float64 `yaml:"left_pixel_to_cm" env:"ZONE_LEFT_PX_TO_CM" env-default:"0.6053068"`
	RightImage     Quad    `yaml:"right_image" env:"ZONE_RIGHT_IMAGE" env-default:"700,340;1065,380;1067,818;711,680"`
	RightReal      Quad    `yaml:"right_real" env:"ZONE_RIGHT_REAL" env-default:"0,0;360,0;360,192;0,192"`
	RightPixelToCM float64 `yaml:"right_pixel_to_cm" env:"ZONE_RIGHT_PX_TO_CM" env-default:"0.9836066"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	Path     string `yaml:"path" env:"DB_PATH" env-default:"data/visits.db"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int    `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"4"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	Directory   string `yaml:"directory" env:"STORAGE_DIR" env-default:"./uploads"`
	Bucket      string `yaml:"bucket" env:"GCS_BUCKET"`
	Credentials string `yaml:"credentials" env:"GCS_CREDENTIALS"`
}

type UploadConfig struct {
	Workers   int `yaml:"workers" env:"UPLOAD_WORKERS" env-default:"2"`
	QueueSize int `yaml:"queue_size" env:"UPLOAD_QUEUE" env-default:"16"`
}

type DashboardConfig struct {
	TTL     time.Duration `yaml:"ttl" env:"DASHBOARD_TTL" env-default:"120s"`
	Workers int           `yaml:"workers" env:"DASHBOARD_WORKERS" env-default:"6"`
}

type EventsConfig struct {
	MQTTBroker   string `yaml:"mqtt_broker" env:"MQTT_BROKER"`
	MQTTTopic    string `yaml:"mqtt_topic" env:"MQTT_TOPIC" env-default:"possum/visits"`
	MQTTClientID string `yaml:"mqtt_client_id" env:"MQTT_CLIENT_ID" env-default:"possum-tracker"`
	FeederURL    string `yaml:"feeder_url" env:"FEEDER_URL"`
}

// Load reads the configuration and validates it for running the tracker.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads an optional .env file, then the environment (or the YAML file
// named by CONFIG_FILE, with environment overrides). It does not validate.
func Read() (*Config, error) {
	// A missing .env file is fine; exported variables still apply.
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required resources and parameter ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.Capture.RTSPURL == "" {
		problems = append(problems, "RTSP_URL is required")
	}
	if c.Capture.ModelPath == "" {
		problems = append(problems, "MODEL_PATH is required")
	}
	if c.Capture.SkipFrames < 1 {
		problems = append(problems, "SKIP_FRAMES must be at least 1")
	}
	if c.Session.WindowSize < 1 {
		problems = append(problems, "WINDOW_SIZE must be at least 1")
	}
	if c.Session.WindowThreshold < 1 || c.Session.WindowThreshold > c.Session.WindowSize {
		problems = append(problems, "WINDOW_THRESHOLD must be between 1 and WINDOW_SIZE")
	}
	if c.Session.NoMotionCloseMax < 0 || c.Session.NoMotionCloseMax >= c.Session.WindowThreshold {
		problems = append(problems, "NO_MOTION_CLOSE_MAX must be below WINDOW_THRESHOLD")
	}
	if c.Session.FrameSaveInterval < 1 {
		problems = append(problems, "FRAME_SAVE_INTERVAL must be at least 1")
	}
	if c.Session.VisitTimeout <= 0 || c.Session.StaticSaveInterval <= 0 {
		problems = append(problems, "VISIT_TIMEOUT and STATIC_SAVE_INTERVAL must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			problems = append(problems, "GCS_BUCKET is required for gcs storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Quad is four calibration points, written as "x,y;x,y;x,y;x,y" in the environment.
type Quad [4][2]float64

// SetValue parses the environment form of a Quad.
func (q *Quad) SetValue(s string) error {
	pairs := strings.Split(s, ";")
	if len(pairs) != 4 {
		return fmt.Errorf("expected 4 points, got %d", len(pairs))
	}
	for i, pair := range pairs {
		xy := strings.Split(strings.TrimSpace(pair), ",")
		if len(xy) != 2 {
			return fmt.Errorf("point %d: expected x,y", i)
		}
		for j, raw := range xy {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("point %d: %w", i, err)
			}
			q[i][j] = v
		}
	}
	return nil
}
