package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
input:
  path: /tmp/stream.h264
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/stream.h264", cfg.Input.Path)
	assert.True(t, cfg.Input.EnableDemuxing)
	assert.Equal(t, 8, cfg.Input.BitDepth)
	assert.Equal(t, -1, cfg.Device.Index)
	assert.Equal(t, 4, cfg.Decoder.QueueSize)
	assert.Equal(t, 0, cfg.Decoder.MaxFrames)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
input:
  path: /data/clip.mp4
  codec: hevc
  enable_demuxing: true
  width: 1920
  height: 1080
  bit_depth: 10
output:
  path: /data/out.yuv
  y4m: true
  crc_per_frame: true
  crc_path: /data/out.crc
  crc_seed: [4294967295]
device:
  index: 0
  queue_id: 1
  hw_load_balancing: true
decoder:
  queue_size: 8
  max_frames: 300
  frame_rate_limit: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hevc", cfg.Input.Codec)
	assert.Equal(t, 1920, cfg.Input.Width)
	assert.Equal(t, 10, cfg.Input.BitDepth)
	assert.True(t, cfg.Output.CRCPerFrame)
	assert.Equal(t, []uint32{4294967295}, cfg.Output.CRCSeed)
	assert.Equal(t, 1, cfg.Device.QueueID)
	assert.True(t, cfg.Device.HWLoadBalancing)
	assert.Equal(t, 8, cfg.Decoder.QueueSize)
	assert.Equal(t, 300, cfg.Decoder.MaxFrames)
	assert.Equal(t, 60.0, cfg.Decoder.FrameRateLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
input:
  path: /tmp/stream.h264
  codec: vp9
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown codec hint")
}
