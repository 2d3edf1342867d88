//go:build !cuda

package devices

import (
	"runtime"

	"github.com/salus-sched/salus/resources"
)

// StubEnumerator reports zero GPUs and one CPU device sized by
// runtime.NumCPU. It is the default build's enumerator, used on hosts
// without the CUDA driver and in CI, where no example-pack dependency
// offers portable CPU-core counting.
type StubEnumerator struct{}

func (StubEnumerator) Enumerate() ([]Device, error) {
	return []Device{
		{
			Spec:         resources.DeviceSpec{Kind: resources.CPU, Index: 0},
			Name:         "host-cpu",
			TotalMemory:  0,
			ComputeSlots: int64(runtime.NumCPU()),
		},
	}, nil
}

// New returns the default, non-CUDA enumerator for this build.
func New() Enumerator { return StubEnumerator{} }

// NumCPU is exposed so callers constructing a custom Resources cap can
// scale COMPUTE capacity to the visible core count without importing
// "runtime" themselves.
func NumCPU() int { return runtime.NumCPU() }
