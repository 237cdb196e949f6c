package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Input: InputConfig{
			Path:     "/tmp/in.h264",
			BitDepth: 8,
		},
		Device: DeviceConfig{
			Index: -1,
		},
		Decoder: DecoderConfig{
			QueueSize: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing input path",
			mutate:  func(c *Config) { c.Input.Path = "" },
			wantErr: "input path is required",
		},
		{
			name:    "bad codec hint",
			mutate:  func(c *Config) { c.Input.Codec = "mpeg2" },
			wantErr: "unknown codec hint",
		},
		{
			name:    "bad bit depth",
			mutate:  func(c *Config) { c.Input.BitDepth = 9 },
			wantErr: "unsupported bit depth",
		},
		{
			name: "crc without path",
			mutate: func(c *Config) {
				c.Output.CRCPerFrame = true
				c.Output.CRCSeed = []uint32{0}
			},
			wantErr: "crc_path is required",
		},
		{
			name: "crc without seed",
			mutate: func(c *Config) {
				c.Output.CRCPerFrame = true
				c.Output.CRCPath = "/tmp/out.crc"
				c.Output.CRCSeed = nil
			},
			wantErr: "crc_seed must have at least one value",
		},
		{
			name:    "y4m without output path",
			mutate:  func(c *Config) { c.Output.Y4M = true },
			wantErr: "y4m output requires an output path",
		},
		{
			name:    "bad device index",
			mutate:  func(c *Config) { c.Device.Index = -2 },
			wantErr: "invalid device index",
		},
		{
			name:    "bad device uuid",
			mutate:  func(c *Config) { c.Device.UUID = "not-a-uuid" },
			wantErr: "invalid device UUID",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Decoder.QueueSize = 0 },
			wantErr: "queue_size must be positive",
		},
		{
			name:    "negative max frames",
			mutate:  func(c *Config) { c.Decoder.MaxFrames = -1 },
			wantErr: "max_frames must not be negative",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name: "metrics enabled without port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 0
				c.Metrics.Path = "/metrics"
			},
			wantErr: "invalid metrics port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
