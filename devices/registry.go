// Package devices enumerates the host's compute devices once at startup and
// translates them into the resource tags the monitor accounts against. It
// is queried exactly once, when the host process builds its Monitor;
// nothing here is consulted again afterwards.
package devices

import "github.com/salus-sched/salus/resources"

// Device describes one enumerated device: its identity, total memory in
// bytes, and (for accelerators) its concurrent-stream capacity.
type Device struct {
	Spec        resources.DeviceSpec
	Name        string
	TotalMemory int64
	// Streams is the configured GPU_STREAM concurrency for accelerators; it
	// is zero (and unused) for CPU devices.
	Streams int64
	// ComputeSlots overrides ComputeSlotsPerDevice when nonzero, e.g. a CPU
	// device publishing one slot per core rather than a flat single slot.
	ComputeSlots int64
}

// DefaultGPUStreamCapacity is the concurrency published for each
// accelerator's GPU_STREAM tag when the enumerator does not otherwise learn
// a device-specific value.
const DefaultGPUStreamCapacity = 128

// ComputeSlotsPerDevice is the COMPUTE capacity published per enumerated
// device, representing one scheduling slot per core/SM group.
const ComputeSlotsPerDevice = 1

// Enumerator yields the devices visible to this process.
type Enumerator interface {
	Enumerate() ([]Device, error)
}

// Limits converts an enumerated device list into the initial Resources
// limits map: a MEMORY tag per device with nonzero TotalMemory, a
// GPU_STREAM tag per accelerator, and a COMPUTE tag per device.
func Limits(devs []Device) resources.Resources {
	limits := make(resources.Resources, len(devs)*2)
	for _, d := range devs {
		if d.TotalMemory > 0 {
			limits[resources.Tag{Type: resources.Memory, Device: d.Spec}] = d.TotalMemory
		}
		slots := d.ComputeSlots
		if slots <= 0 {
			slots = ComputeSlotsPerDevice
		}
		limits[resources.Tag{Type: resources.Compute, Device: d.Spec}] = slots
		if d.Spec.Kind == resources.GPU {
			streams := d.Streams
			if streams <= 0 {
				streams = DefaultGPUStreamCapacity
			}
			limits[resources.Tag{Type: resources.GPUStream, Device: d.Spec}] = streams
		}
	}
	return resources.RemoveInvalid(limits)
}
