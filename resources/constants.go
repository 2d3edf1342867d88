package resources

// Handy constants mirroring the common single-host tags used throughout
// tests and examples.
var (
	CPU0Memory = Tag{Type: Memory, Device: DeviceSpec{Kind: CPU, Index: 0}}
	GPU0Memory = Tag{Type: Memory, Device: DeviceSpec{Kind: GPU, Index: 0}}
	GPU1Memory = Tag{Type: Memory, Device: DeviceSpec{Kind: GPU, Index: 1}}
)
