// Package devices defines memory/device locations for tensor storage.
//
// A Location identifies where a tensor's storage lives: the kind of memory
// (host, pinned host or device memory) plus the device ordinal for device
// memory. Locations are resolved once, when an execution plan is built, and
// compared to decide whether a value can be handed over by reference or must
// be explicitly copied.
package devices

import "fmt"

// MemoryKind is the kind of memory a tensor's storage lives in.
type MemoryKind int

//go:generate go tool enumer -type=MemoryKind -output=gen_memorykind_enumer.go devices.go

const (
	// Host is plain CPU-addressable memory.
	Host MemoryKind = iota

	// Pinned is page-locked host memory, addressable by both CPU and devices.
	Pinned

	// Device is accelerator memory, addressable only by the owning device.
	Device
)

// Location is a memory space a tensor lives in or must land in.
// The zero value is host memory.
type Location struct {
	Kind MemoryKind

	// Ordinal of the device, for Kind==Device. Always 0 otherwise.
	Ordinal int
}

// HostLocation returns the default host memory location.
func HostLocation() Location { return Location{Kind: Host} }

// OnDevice returns the location for the given device ordinal.
func OnDevice(ordinal int) Location {
	return Location{Kind: Device, Ordinal: ordinal}
}

// Equal reports whether two locations refer to the same memory space.
func (l Location) Equal(other Location) bool {
	if l.Kind != other.Kind {
		return false
	}
	return l.Kind != Device || l.Ordinal == other.Ordinal
}

// CanAlias reports whether a value at location l can be handed over by
// reference to a consumer expecting location `other`, without a copy.
// Pinned memory is visible to both host and devices.
func (l Location) CanAlias(other Location) bool {
	if l.Equal(other) {
		return true
	}
	if l.Kind == Pinned && other.Kind == Host {
		return true
	}
	if l.Kind == Host && other.Kind == Pinned {
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (l Location) String() string {
	if l.Kind == Device {
		return fmt.Sprintf("%s(%d)", l.Kind, l.Ordinal)
	}
	return l.Kind.String()
}
