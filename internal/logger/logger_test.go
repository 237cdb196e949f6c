package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hwdec/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{
			name: "text to stderr",
			cfg: config.LoggingConfig{
				Level:  "info",
				Format: "text",
				Output: "stderr",
			},
		},
		{
			name: "json to stdout",
			cfg: config.LoggingConfig{
				Level:  "debug",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "invalid level",
			cfg: config.LoggingConfig{
				Level:  "nope",
				Format: "text",
				Output: "stderr",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestLogrusAdapterFields(t *testing.T) {
	base := logrus.New()
	var buf bytes.Buffer
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetLevel(logrus.DebugLevel)

	log := NewLogrusAdapter(logrus.NewEntry(base))
	log.WithField("queue_index", 0).WithFields(map[string]interface{}{
		"codec": "h264",
	}).Info("frame decoded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "frame decoded", entry["msg"])
	assert.Equal(t, "h264", entry["codec"])
	assert.EqualValues(t, 0, entry["queue_index"])
}

func TestNullLogger(t *testing.T) {
	log := NewNullLogger()

	// Must not panic and must keep returning a usable logger
	log.WithField("k", "v").WithError(assert.AnError).Info("ignored")
	log.Fatal("must not exit")
}

func TestSampledLoggerAlwaysLogsUnknownCategory(t *testing.T) {
	s := NewSampledLogger(NewNullLogger())
	assert.True(t, s.shouldLog("unconfigured"))
}

func TestSampledLoggerBurstThenDrop(t *testing.T) {
	s := NewSampledLogger(NewNullLogger()).
		WithSampler("frame_decode", time.Hour, 2, 0) // long window, burst 2, no sampling after

	// First call opens the window, second rides the burst allowance,
	// everything after that is dropped until the window expires.
	assert.True(t, s.shouldLog("frame_decode"))
	assert.True(t, s.shouldLog("frame_decode"))
	assert.False(t, s.shouldLog("frame_decode"))
	assert.False(t, s.shouldLog("frame_decode"))

	stats := s.GetSamplerStats()["frame_decode"]
	assert.EqualValues(t, 2, stats.SampledMessages)
	assert.EqualValues(t, 2, stats.DroppedMessages)
}
