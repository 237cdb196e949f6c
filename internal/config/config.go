package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Device  DeviceConfig  `mapstructure:"device"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type InputConfig struct {
	Path           string `mapstructure:"path"`
	Codec          string `mapstructure:"codec"`           // forced codec hint: h264, hevc, av1, or "" to autodetect
	EnableDemuxing bool   `mapstructure:"enable_demuxing"` // unwrap MP4/IVF container framing
	Width          int    `mapstructure:"width"`           // advisory, used when the stream does not self-describe
	Height         int    `mapstructure:"height"`
	BitDepth       int    `mapstructure:"bit_depth"`
}

type OutputConfig struct {
	Path        string   `mapstructure:"path"`          // empty means decode-and-discard
	Y4M         bool     `mapstructure:"y4m"`           // wrap frames in a YUV4MPEG2 streaming container
	CRCPerFrame bool     `mapstructure:"crc_per_frame"` // append per-frame CRC records to a side file
	CRCPath     string   `mapstructure:"crc_path"`
	CRCSeed     []uint32 `mapstructure:"crc_seed"` // initial CRC values, one record per seed per frame
}

type DeviceConfig struct {
	Index                  int    `mapstructure:"index"` // -1 selects the first matching device
	UUID                   string `mapstructure:"uuid"`  // explicit device UUID, overrides index
	QueueID                int    `mapstructure:"queue_id"`
	HWLoadBalancing        bool   `mapstructure:"hw_load_balancing"` // select all decode-capable queues
	SelectWithComputeQueue bool   `mapstructure:"select_with_compute_queue"`
	EnablePostFilter       bool   `mapstructure:"enable_post_filter"` // requests a compute queue for filtering
}

type DecoderConfig struct {
	QueueSize      int     `mapstructure:"queue_size"` // in-flight decode depth
	MaxFrames      int     `mapstructure:"max_frames"` // 0 means decode the whole stream
	FrameRateLimit float64 `mapstructure:"frame_rate_limit"` // frames/sec pump pacing, 0 disables
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(configPath)

	// Environment variable override
	viper.SetEnvPrefix("HWDEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Input defaults
	viper.SetDefault("input.codec", "")
	viper.SetDefault("input.enable_demuxing", true)
	viper.SetDefault("input.width", 0)
	viper.SetDefault("input.height", 0)
	viper.SetDefault("input.bit_depth", 8)

	// Output defaults
	viper.SetDefault("output.path", "")
	viper.SetDefault("output.y4m", false)
	viper.SetDefault("output.crc_per_frame", false)
	viper.SetDefault("output.crc_path", "")
	viper.SetDefault("output.crc_seed", []uint32{0})

	// Device defaults
	viper.SetDefault("device.index", -1)
	viper.SetDefault("device.uuid", "")
	viper.SetDefault("device.queue_id", 0)
	viper.SetDefault("device.hw_load_balancing", false)
	viper.SetDefault("device.select_with_compute_queue", false)
	viper.SetDefault("device.enable_post_filter", false)

	// Decoder defaults
	viper.SetDefault("decoder.queue_size", 4)
	viper.SetDefault("decoder.max_frames", 0)
	viper.SetDefault("decoder.frame_rate_limit", 0.0)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age", 30)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)
}
