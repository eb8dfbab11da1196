package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Camera sources
const (
	SourceWebcam = "webcam"
	SourceFile   = "file"
	SourceImage  = "image"
)

type Config struct {
	Port     string
	APIKey   string
	LogLevel string
	LogFile  string

	BackendURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	HistorySize    int
	BackendRPS     float64

	CameraSource string
	CameraDevice string
	VideoPath    string
	ImagePath    string
	FrameWidth   int
	FrameHeight  int
	CaptureFPS   int
	JPEGQuality  int

	MaxFileSizeMB int64
	ExportDir     string
	RateLimit     int
}

func LoadConfig(logger *zap.Logger) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		APIKey:       getEnvOrDefault("API_KEY", ""),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:      getEnvOrDefault("LOG_FILE", ""),
		BackendURL:   strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://localhost:5000"), "/"),
		CameraSource: strings.ToLower(getEnvOrDefault("CAMERA_SOURCE", SourceWebcam)),
		CameraDevice: getEnvOrDefault("CAMERA_DEVICE", "/dev/video0"),
		VideoPath:    getEnvOrDefault("VIDEO_PATH", ""),
		ImagePath:    getEnvOrDefault("IMAGE_PATH", ""),
		ExportDir:    getEnvOrDefault("EXPORT_DIR", "."),
	}

	var err error

	if cfg.PollInterval, err = time.ParseDuration(getEnvOrDefault("POLL_INTERVAL", "1200ms")); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %v", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnvOrDefault("REQUEST_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid request timeout: %v", err)
	}
	if cfg.HistorySize, err = strconv.Atoi(getEnvOrDefault("HISTORY_SIZE", "10")); err != nil {
		return nil, fmt.Errorf("invalid history size: %v", err)
	}
	if cfg.BackendRPS, err = strconv.ParseFloat(getEnvOrDefault("BACKEND_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("invalid backend rps: %v", err)
	}
	if cfg.FrameWidth, err = strconv.Atoi(getEnvOrDefault("FRAME_WIDTH", "960")); err != nil {
		return nil, fmt.Errorf("invalid frame width: %v", err)
	}
	if cfg.FrameHeight, err = strconv.Atoi(getEnvOrDefault("FRAME_HEIGHT", "540")); err != nil {
		return nil, fmt.Errorf("invalid frame height: %v", err)
	}
	if cfg.CaptureFPS, err = strconv.Atoi(getEnvOrDefault("CAPTURE_FPS", "10")); err != nil {
		return nil, fmt.Errorf("invalid capture fps: %v", err)
	}
	if cfg.JPEGQuality, err = strconv.Atoi(getEnvOrDefault("JPEG_QUALITY", "80")); err != nil {
		return nil, fmt.Errorf("invalid jpeg quality: %v", err)
	}
	if cfg.MaxFileSizeMB, err = strconv.ParseInt(getEnvOrDefault("MAX_FILE_SIZE_MB", "10"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid max file size: %v", err)
	}
	if cfg.RateLimit, err = strconv.Atoi(getEnvOrDefault("RATE_LIMIT", "100")); err != nil {
		return nil, fmt.Errorf("invalid rate limit: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot catch.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid backend url %q: %v", c.BackendURL, err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1, got %d", c.HistorySize)
	}
	if c.BackendRPS <= 0 {
		return fmt.Errorf("backend rps must be positive, got %v", c.BackendRPS)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.CaptureFPS <= 0 {
		return fmt.Errorf("capture fps must be positive, got %d", c.CaptureFPS)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within 1..100, got %d", c.JPEGQuality)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSizeMB)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1, got %d", c.RateLimit)
	}
	switch c.CameraSource {
	case SourceWebcam:
	case SourceFile:
		if c.VideoPath == "" {
			return fmt.Errorf("VIDEO_PATH is required for camera source %q", c.CameraSource)
		}
	case SourceImage:
		if c.ImagePath == "" {
			return fmt.Errorf("IMAGE_PATH is required for camera source %q", c.CameraSource)
		}
	default:
		return fmt.Errorf("unknown camera source %q", c.CameraSource)
	}
	return nil
}

// MaxFileSizeBytes returns the upload size limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
