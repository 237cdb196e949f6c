package device

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hwdec/internal/codec"
	apperrors "github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/logger"
)

type fixtureEnumerator struct {
	devices []Device
	err     error
}

func (f fixtureEnumerator) Devices() ([]Device, error) {
	return f.devices, f.err
}

func decodeDevice(id int, name string) Device {
	return Device{
		ID:   id,
		UUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name: name,
		Families: []QueueFamily{
			{Index: 0, Flags: QueueVideoDecode | QueueTransfer, Count: 4},
			{Index: 1, Flags: QueueCompute, Count: 1},
		},
		Codecs: []codec.Type{codec.TypeH264, codec.TypeHEVC},
	}
}

func TestNegotiateFirstMatch(t *testing.T) {
	enum := fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0"), decodeDevice(1, "gpu1")}}

	ctx, err := Negotiate(enum, Options{DeviceIndex: -1}, logger.NewNullLogger())
	require.NoError(t, err)

	assert.Equal(t, "gpu0", ctx.Device.Name)
	assert.Len(t, ctx.DecodeQueues, 1)
	assert.Nil(t, ctx.TransferQueue)
	assert.Nil(t, ctx.ComputeQueue)
}

func TestNegotiateByIndexAndUUID(t *testing.T) {
	devices := []Device{decodeDevice(0, "gpu0"), decodeDevice(1, "gpu1")}
	enum := fixtureEnumerator{devices: devices}

	ctx, err := Negotiate(enum, Options{DeviceIndex: 1}, logger.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, "gpu1", ctx.Device.Name)

	ctx, err = Negotiate(enum, Options{DeviceIndex: -1, UUID: devices[1].UUID}, logger.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, "gpu1", ctx.Device.Name)
}

func TestNegotiateQueueCountPolicy(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected int
	}{
		{name: "default selects one queue", opts: Options{DeviceIndex: -1}, expected: 1},
		{name: "load balancing selects all", opts: Options{DeviceIndex: -1, HWLoadBalancing: true}, expected: 4},
		{name: "non-default queue id selects all", opts: Options{DeviceIndex: -1, QueueID: 2}, expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enum := fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0")}}
			ctx, err := Negotiate(enum, tt.opts, logger.NewNullLogger())
			require.NoError(t, err)
			assert.Len(t, ctx.DecodeQueues, tt.expected)
		})
	}
}

func TestNegotiateTransferQueueOnlyWhenDecodeCannotCopy(t *testing.T) {
	dev := Device{
		ID:   0,
		Name: "split-families",
		Families: []QueueFamily{
			{Index: 0, Flags: QueueVideoDecode, Count: 2},
			{Index: 1, Flags: QueueTransfer, Count: 1},
		},
		Codecs: []codec.Type{codec.TypeH264},
	}

	ctx, err := Negotiate(fixtureEnumerator{devices: []Device{dev}}, Options{DeviceIndex: -1}, logger.NewNullLogger())
	require.NoError(t, err)

	require.NotNil(t, ctx.TransferQueue)
	assert.Equal(t, 1, ctx.TransferQueue.Family)
}

func TestNegotiateComputeQueue(t *testing.T) {
	enum := fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0")}}

	ctx, err := Negotiate(enum, Options{DeviceIndex: -1, RequireCompute: true}, logger.NewNullLogger())
	require.NoError(t, err)

	require.NotNil(t, ctx.ComputeQueue)
	assert.Equal(t, 1, ctx.ComputeQueue.Family)
}

func TestNegotiateFailures(t *testing.T) {
	noDecode := Device{
		ID:       0,
		Name:     "display-only",
		Families: []QueueFamily{{Index: 0, Flags: QueueGraphics, Count: 1}},
	}
	noCompute := Device{
		ID:       0,
		Name:     "no-compute",
		Families: []QueueFamily{{Index: 0, Flags: QueueVideoDecode | QueueTransfer, Count: 2}},
		Codecs:   []codec.Type{codec.TypeH264},
	}
	emptyFamily := Device{
		ID:       0,
		Name:     "empty-family",
		Families: []QueueFamily{{Index: 0, Flags: QueueVideoDecode | QueueTransfer, Count: 0}},
		Codecs:   []codec.Type{codec.TypeH264},
	}
	noTransfer := Device{
		ID:       0,
		Name:     "no-transfer",
		Families: []QueueFamily{{Index: 0, Flags: QueueVideoDecode, Count: 1}},
		Codecs:   []codec.Type{codec.TypeH264},
	}

	tests := []struct {
		name      string
		enum      Enumerator
		opts      Options
		errorType apperrors.ErrorType
	}{
		{
			name:      "enumeration failure",
			enum:      fixtureEnumerator{err: fmt.Errorf("driver unavailable")},
			opts:      Options{DeviceIndex: -1},
			errorType: apperrors.ErrorTypeDeviceInit,
		},
		{
			name:      "no devices",
			enum:      fixtureEnumerator{},
			opts:      Options{DeviceIndex: -1},
			errorType: apperrors.ErrorTypeDeviceInit,
		},
		{
			name:      "no decode capability",
			enum:      fixtureEnumerator{devices: []Device{noDecode}},
			opts:      Options{DeviceIndex: -1},
			errorType: apperrors.ErrorTypeDeviceInit,
		},
		{
			name:      "unsupported codec",
			enum:      fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0")}},
			opts:      Options{DeviceIndex: -1, Codec: codec.TypeAV1},
			errorType: apperrors.ErrorTypeDeviceInit,
		},
		{
			name:      "index not present",
			enum:      fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0")}},
			opts:      Options{DeviceIndex: 7},
			errorType: apperrors.ErrorTypeDeviceInit,
		},
		{
			name:      "queue id out of range",
			enum:      fixtureEnumerator{devices: []Device{decodeDevice(0, "gpu0")}},
			opts:      Options{DeviceIndex: -1, QueueID: 9},
			errorType: apperrors.ErrorTypeQueueCreation,
		},
		{
			name:      "decode family without queues",
			enum:      fixtureEnumerator{devices: []Device{emptyFamily}},
			opts:      Options{DeviceIndex: -1},
			errorType: apperrors.ErrorTypeQueueCreation,
		},
		{
			name:      "no transfer family",
			enum:      fixtureEnumerator{devices: []Device{noTransfer}},
			opts:      Options{DeviceIndex: -1},
			errorType: apperrors.ErrorTypeQueueCreation,
		},
		{
			name:      "compute required but absent",
			enum:      fixtureEnumerator{devices: []Device{noCompute}},
			opts:      Options{DeviceIndex: -1, RequireCompute: true},
			errorType: apperrors.ErrorTypeQueueCreation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Negotiate(tt.enum, tt.opts, logger.NewNullLogger())
			require.Error(t, err)

			appErr, ok := apperrors.GetAppError(err)
			require.True(t, ok, "expected an AppError, got %v", err)
			assert.Equal(t, tt.errorType, appErr.Type)
		})
	}
}

func TestSoftwareEnumerator(t *testing.T) {
	devices, err := NewSoftwareEnumerator().Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)

	dev := devices[0]
	assert.True(t, dev.SupportsCodec(codec.TypeH264))
	assert.True(t, dev.SupportsCodec(codec.TypeHEVC))
	assert.True(t, dev.SupportsCodec(codec.TypeAV1))

	fam, ok := dev.FindFamily(QueueVideoDecode)
	require.True(t, ok)
	assert.True(t, fam.Flags.Has(QueueTransfer))

	// Deterministic identity across enumerations
	again, err := NewSoftwareEnumerator().Devices()
	require.NoError(t, err)
	assert.Equal(t, dev.UUID, again[0].UUID)
}

func TestQueueFlagsString(t *testing.T) {
	assert.Equal(t, "decode+transfer", (QueueVideoDecode | QueueTransfer).String())
	assert.Equal(t, "none", QueueFlags(0).String())
}
