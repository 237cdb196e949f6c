// Package device enumerates decode hardware and negotiates the execution
// context (device plus queues) a decode session runs on.
package device

import (
	"strings"

	"github.com/google/uuid"

	"github.com/zsiec/hwdec/internal/codec"
)

// QueueFlags is the capability bitmask of a queue family
type QueueFlags uint8

const (
	QueueVideoDecode QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
	QueueGraphics
)

// Has reports whether all capabilities in mask are present
func (f QueueFlags) Has(mask QueueFlags) bool {
	return f&mask == mask
}

// String returns a + separated list of capability names
func (f QueueFlags) String() string {
	var parts []string
	if f.Has(QueueVideoDecode) {
		parts = append(parts, "decode")
	}
	if f.Has(QueueCompute) {
		parts = append(parts, "compute")
	}
	if f.Has(QueueTransfer) {
		parts = append(parts, "transfer")
	}
	if f.Has(QueueGraphics) {
		parts = append(parts, "graphics")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// QueueFamily groups queues with identical capabilities
type QueueFamily struct {
	Index int
	Flags QueueFlags
	Count int
}

// Device describes one physical device's capability set. Queried once at
// startup and immutable afterwards.
type Device struct {
	ID       int
	UUID     uuid.UUID
	Name     string
	Driver   string
	Families []QueueFamily
	Codecs   []codec.Type
}

// SupportsCodec reports whether the device advertises the decode operation
func (d *Device) SupportsCodec(c codec.Type) bool {
	for _, supported := range d.Codecs {
		if supported == c {
			return true
		}
	}
	return false
}

// FindFamily returns the first queue family carrying all flags in mask
func (d *Device) FindFamily(mask QueueFlags) (QueueFamily, bool) {
	for _, fam := range d.Families {
		if fam.Flags.Has(mask) {
			return fam, true
		}
	}
	return QueueFamily{}, false
}

// Enumerator lists the devices visible to this process
type Enumerator interface {
	Devices() ([]Device, error)
}

// Queue identifies one execution queue on the negotiated device
type Queue struct {
	Family int
	Index  int
}
