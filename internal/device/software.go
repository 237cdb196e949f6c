package device

import (
	"github.com/google/uuid"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/pkg/version"
)

// Software reference device. Exposing the reference engine through the same
// enumerator contract keeps the binary runnable on machines without a
// hardware decode driver; real drivers plug in behind Enumerator.

var softwareDeviceUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("hwdec-software-reference"))

type softwareEnumerator struct{}

// NewSoftwareEnumerator returns an enumerator exposing one virtual device
// with a combined decode+transfer family and a separate compute family.
func NewSoftwareEnumerator() Enumerator {
	return softwareEnumerator{}
}

func (softwareEnumerator) Devices() ([]Device, error) {
	return []Device{
		{
			ID:     0,
			UUID:   softwareDeviceUUID,
			Name:   "software-reference",
			Driver: "hwdec " + version.Version,
			Families: []QueueFamily{
				{Index: 0, Flags: QueueVideoDecode | QueueTransfer, Count: 4},
				{Index: 1, Flags: QueueCompute | QueueGraphics, Count: 1},
			},
			Codecs: []codec.Type{codec.TypeH264, codec.TypeHEVC, codec.TypeAV1},
		},
	}, nil
}
