package config

import (
	"fmt"

	"github.com/google/uuid"
)

func (c *Config) Validate() error {
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

func (i *InputConfig) Validate() error {
	if i.Path == "" {
		return fmt.Errorf("input path is required")
	}

	switch i.Codec {
	case "", "h264", "avc", "hevc", "h265", "av1":
	default:
		return fmt.Errorf("unknown codec hint: %s", i.Codec)
	}

	if i.Width < 0 || i.Height < 0 {
		return fmt.Errorf("negative geometry hint: %dx%d", i.Width, i.Height)
	}

	switch i.BitDepth {
	case 0, 8, 10, 12:
	default:
		return fmt.Errorf("unsupported bit depth hint: %d", i.BitDepth)
	}

	return nil
}

func (o *OutputConfig) Validate() error {
	if o.CRCPerFrame {
		if o.CRCPath == "" {
			return fmt.Errorf("crc_path is required when crc_per_frame is enabled")
		}
		if len(o.CRCSeed) == 0 {
			return fmt.Errorf("crc_seed must have at least one value")
		}
	}

	if o.Y4M && o.Path == "" {
		return fmt.Errorf("y4m output requires an output path")
	}

	return nil
}

func (d *DeviceConfig) Validate() error {
	if d.Index < -1 {
		return fmt.Errorf("invalid device index: %d", d.Index)
	}

	if d.UUID != "" {
		if _, err := uuid.Parse(d.UUID); err != nil {
			return fmt.Errorf("invalid device UUID %q: %w", d.UUID, err)
		}
	}

	if d.QueueID < 0 {
		return fmt.Errorf("invalid queue id: %d", d.QueueID)
	}

	return nil
}

func (d *DecoderConfig) Validate() error {
	if d.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive")
	}

	if d.MaxFrames < 0 {
		return fmt.Errorf("max_frames must not be negative")
	}

	if d.FrameRateLimit < 0 {
		return fmt.Errorf("frame_rate_limit must not be negative")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" {
		return fmt.Errorf("metrics path is required")
	}

	return nil
}
