package device

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/logger"
)

// Options steer device and queue selection
type Options struct {
	// DeviceIndex selects a device by ID; -1 takes the first match
	DeviceIndex int
	// UUID selects a device by its unique identifier when not uuid.Nil
	UUID uuid.UUID
	// QueueID is the preferred decode queue within the family. A non-zero
	// value implies selecting every decode queue in the family.
	QueueID int
	// HWLoadBalancing spreads submission across all decode queues
	HWLoadBalancing bool
	// RequireCompute additionally negotiates a compute queue for the
	// post-process filter stage
	RequireCompute bool
	// Codec the device must be able to decode; TypeUnknown skips the check
	Codec codec.Type
}

// Context is the negotiated execution context: one device plus the resolved
// decode, transfer and compute queues.
type Context struct {
	Device       Device
	DecodeFamily QueueFamily
	DecodeQueues []Queue
	// TransferQueue is set only when the decode family itself cannot
	// transfer; nil means copies run on the decode queue
	TransferQueue *Queue
	// ComputeQueue is set when Options.RequireCompute was negotiated
	ComputeQueue *Queue
}

// Negotiate selects exactly one device exposing a decode-capable queue
// family and constructs its queue set.
func Negotiate(enum Enumerator, opts Options, log logger.Logger) (*Context, error) {
	devices, err := enum.Devices()
	if err != nil {
		return nil, errors.WrapDeviceInitError(err, "device enumeration failed")
	}
	if len(devices) == 0 {
		return nil, errors.NewDeviceInitError("no devices available")
	}

	dev, err := selectDevice(devices, opts)
	if err != nil {
		return nil, err
	}

	decodeFamily, ok := dev.FindFamily(QueueVideoDecode)
	if !ok {
		// selectDevice already requires a decode family; kept for fixture
		// enumerators handing back inconsistent capability sets
		return nil, errors.NewDeviceInitError(fmt.Sprintf(
			"device %s has no decode-capable queue family", dev.Name))
	}
	if decodeFamily.Count == 0 {
		return nil, errors.NewQueueCreationError(fmt.Sprintf(
			"decode queue family %d of device %s has no queues", decodeFamily.Index, dev.Name))
	}
	if opts.QueueID < 0 || opts.QueueID >= decodeFamily.Count {
		return nil, errors.NewQueueCreationError(fmt.Sprintf(
			"queue id %d out of range for decode family with %d queues",
			opts.QueueID, decodeFamily.Count))
	}

	ctx := &Context{
		Device:       *dev,
		DecodeFamily: decodeFamily,
	}

	// A non-default queue id or load balancing selects every decode queue;
	// the plain path creates exactly one
	queueCount := 1
	if opts.QueueID != 0 || opts.HWLoadBalancing {
		queueCount = decodeFamily.Count
	}
	for i := 0; i < queueCount; i++ {
		ctx.DecodeQueues = append(ctx.DecodeQueues, Queue{Family: decodeFamily.Index, Index: i})
	}

	// A dedicated transfer queue is only worth creating when the decode
	// family cannot copy out itself
	if !decodeFamily.Flags.Has(QueueTransfer) {
		fam, ok := dev.FindFamily(QueueTransfer)
		if !ok {
			return nil, errors.NewQueueCreationError(fmt.Sprintf(
				"device %s has no transfer-capable queue family", dev.Name))
		}
		ctx.TransferQueue = &Queue{Family: fam.Index, Index: 0}
	}

	if opts.RequireCompute {
		fam, ok := dev.FindFamily(QueueCompute)
		if !ok {
			return nil, errors.NewQueueCreationError(fmt.Sprintf(
				"device %s has no compute-capable queue family", dev.Name))
		}
		ctx.ComputeQueue = &Queue{Family: fam.Index, Index: 0}
	}

	log.WithFields(map[string]interface{}{
		"device":        dev.Name,
		"device_id":     dev.ID,
		"device_uuid":   dev.UUID.String(),
		"driver":        dev.Driver,
		"decode_family": decodeFamily.Index,
		"decode_queues": len(ctx.DecodeQueues),
		"transfer":      ctx.TransferQueue != nil,
		"compute":       ctx.ComputeQueue != nil,
	}).Info("Negotiated decode execution context")

	return ctx, nil
}

func selectDevice(devices []Device, opts Options) (*Device, error) {
	for i := range devices {
		dev := &devices[i]

		if _, ok := dev.FindFamily(QueueVideoDecode); !ok {
			continue
		}
		if opts.Codec.IsValid() && !dev.SupportsCodec(opts.Codec) {
			continue
		}
		if opts.UUID != uuid.Nil && dev.UUID != opts.UUID {
			continue
		}
		if opts.DeviceIndex >= 0 && dev.ID != opts.DeviceIndex {
			continue
		}

		return dev, nil
	}

	// Selection failures exit with their own code so conformance scripts can
	// tell them from enumeration failures
	return nil, errors.New(errors.ErrorTypeDeviceInit, describeSelection(opts), errors.ExitDeviceSelect)
}

func describeSelection(opts Options) string {
	msg := "no device with decode capability"
	if opts.Codec.IsValid() {
		msg = fmt.Sprintf("%s for codec %s", msg, opts.Codec)
	}
	if opts.UUID != uuid.Nil {
		msg = fmt.Sprintf("%s matching uuid %s", msg, opts.UUID)
	}
	if opts.DeviceIndex >= 0 {
		msg = fmt.Sprintf("%s at index %d", msg, opts.DeviceIndex)
	}
	return msg
}
