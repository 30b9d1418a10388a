package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"barcodescan/internal/ports"
)

const (
	DecoderZXing  = "zxing"
	DecoderRemote = "remote"
)

// Config stores runtime configuration for the scanner backend.
type Config struct {
	Camera  CameraConfig
	Decoder DecoderConfig
	Session SessionConfig
	Encode  EncodeConfig
	Log     LogConfig
}

type CameraConfig struct {
	FFMPEGCommand string
	InputFormat   string
	Quality       ports.QualityPreset
	DeviceRoot    string
	FrontDevices  []string
	FrameRate     int
}

type DecoderConfig struct {
	Kind          string
	TryHarder     bool
	RemoteURL     string
	RemoteToken   string
	RemoteTimeout time.Duration
}

type SessionConfig struct {
	FrameErrorBackoff time.Duration
	AwaitPreviewReady bool
}

type EncodeConfig struct {
	Dir         string
	DefaultSize int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Camera: CameraConfig{
			FFMPEGCommand: envOrDefault("SCANNER_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:   envOrDefault("SCANNER_CAMERA_INPUT_FORMAT", "v4l2"),
			Quality:       ports.QualityPreset(strings.ToLower(envOrDefault("SCANNER_CAMERA_QUALITY", string(ports.QualityMedium)))),
			DeviceRoot:    envOrDefault("SCANNER_DEVICE_ROOT", "/sys/class/video4linux"),
			FrontDevices:  envList("SCANNER_FRONT_DEVICES"),
			FrameRate:     envOrDefaultInt("SCANNER_FRAME_RATE", 15),
		},
		Decoder: DecoderConfig{
			Kind:          strings.ToLower(envOrDefault("SCANNER_DECODER", DecoderZXing)),
			TryHarder:     envOrDefaultBool("SCANNER_TRY_HARDER", true),
			RemoteURL:     strings.TrimSpace(os.Getenv("SCANNER_REMOTE_DECODER_URL")),
			RemoteToken:   strings.TrimSpace(os.Getenv("SCANNER_REMOTE_DECODER_TOKEN")),
			RemoteTimeout: time.Duration(firstNonNegativeInt("SCANNER_REMOTE_DECODER_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
		Session: SessionConfig{
			FrameErrorBackoff: time.Duration(firstNonNegativeInt("SCANNER_FRAME_ERROR_BACKOFF_MS", 50)) * time.Millisecond,
			AwaitPreviewReady: envOrDefaultBool("SCANNER_AWAIT_PREVIEW_READY", false),
		},
		Encode: EncodeConfig{
			Dir:         firstNonEmpty(os.Getenv("SCANNER_ENCODE_DIR"), os.TempDir()),
			DefaultSize: envOrDefaultInt("SCANNER_ENCODE_DEFAULT_SIZE", 256),
		},
		Log: LogConfig{
			Level:  envOrDefault("SCANNER_LOG_LEVEL", "info"),
			Format: strings.ToLower(envOrDefault("SCANNER_LOG_FORMAT", "text")),
		},
	}

	if !lo.Contains([]ports.QualityPreset{ports.QualityLow, ports.QualityMedium, ports.QualityHigh}, cfg.Camera.Quality) {
		cfg.Camera.Quality = ports.QualityMedium
	}
	if cfg.Camera.FrameRate <= 0 {
		cfg.Camera.FrameRate = 15
	}
	if cfg.Session.FrameErrorBackoff <= 0 {
		cfg.Session.FrameErrorBackoff = 50 * time.Millisecond
	}
	if cfg.Decoder.RemoteTimeout <= 0 {
		cfg.Decoder.RemoteTimeout = 2 * time.Second
	}
	if cfg.Encode.DefaultSize <= 0 {
		cfg.Encode.DefaultSize = 256
	}

	switch cfg.Decoder.Kind {
	case DecoderZXing:
	case DecoderRemote:
		if cfg.Decoder.RemoteURL == "" {
			return Config{}, errors.New("SCANNER_REMOTE_DECODER_URL is required when SCANNER_DECODER=remote")
		}
	default:
		return Config{}, errors.New("SCANNER_DECODER must be zxing or remote")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envList(key string) []string {
	parts := strings.Split(os.Getenv(key), ",")
	return lo.Compact(lo.Map(parts, func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

func firstNonNegativeInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
