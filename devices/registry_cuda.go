//go:build cuda

package devices

import (
	"fmt"

	"gorgonia.org/cu"

	"github.com/salus-sched/salus/resources"
)

// CUDAEnumerator enumerates CUDA-visible accelerators through gorgonia's cu
// binding, in the same shape as the teacher's server/gpu.get and
// metadata/gpu.Generate: NumDevices, then per-device Name/TotalMem.
type CUDAEnumerator struct{}

func (CUDAEnumerator) Enumerate() ([]Device, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return nil, fmt.Errorf("devices: cuda enumeration failed: %w", err)
	}

	devs := make([]Device, 0, n)
	for i := 0; i < n; i++ {
		dev := cu.Device(i)
		name, _ := dev.Name()
		mem, err := dev.TotalMem()
		if err != nil {
			return nil, fmt.Errorf("devices: querying device %d memory: %w", i, err)
		}
		devs = append(devs, Device{
			Spec:        resources.DeviceSpec{Kind: resources.GPU, Index: i},
			Name:        name,
			TotalMemory: int64(mem),
			Streams:     DefaultGPUStreamCapacity,
		})
	}
	return devs, nil
}

// New returns the CUDA-backed enumerator for this build.
func New() Enumerator { return CUDAEnumerator{} }
