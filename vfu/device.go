package vfu

import "fmt"

// BarFlags describes how a BAR is decoded by the VMM.
type BarFlags uint32

// BAR flag bits.
const (
	BarFlagMem64       BarFlags = 1 << iota // 64-bit memory BAR
	BarFlagPrefetchable                     // prefetchable memory BAR
)

// BarInfo describes one PCI Base Address Register as reported to the
// vfio-user server framing through Device.Bar.
type BarInfo struct {
	Index uint32
	Size  uint64
	Flags BarFlags
}

// Device is the incoming boundary the vfio-user server framing drives: PCI
// configuration-space access, memory/IO region access, and BAR discovery.
// Region 0 is the controller's MMIO BAR. The core does not model MSI-X table
// contents: ControllerDevice serves no region other than 0 through
// ReadIO/WriteIO and reports no BAR other than 0 through Bar.
type Device interface {
	ReadConfig(offset, size uint32) (uint64, error)
	WriteConfig(offset, size uint32, value uint64) error
	ReadIO(region int, offset uint64, size int) (uint64, error)
	WriteIO(region int, offset uint64, size int, value uint64) error
	Bar(n int) (BarInfo, error)
}

// MMIO is the subset of *xhci.Controller the Device adapter needs: raw
// register access by byte offset within the single MMIO BAR.
type MMIO interface {
	ReadMMIO(offset uint64, size int) uint64
	WriteMMIO(offset uint64, size int, value uint64)
}

// ControllerDevice adapts an MMIO-addressable controller and a PCI
// configuration space into the Device the vfio-user server framing expects.
// It is the minimal reference wiring cmd/vxhcid hands to that framing; the
// framing itself is an external collaborator and is not implemented here.
type ControllerDevice struct {
	mmio   MMIO
	config *ConfigSpace
}

// NewControllerDevice builds a Device that serves region 0 (the controller's
// MMIO BAR) from mmio and configuration-space accesses from config.
func NewControllerDevice(mmio MMIO, config *ConfigSpace) *ControllerDevice {
	return &ControllerDevice{mmio: mmio, config: config}
}

func (d *ControllerDevice) ReadConfig(offset, size uint32) (uint64, error) {
	return d.config.Read(offset, size), nil
}

func (d *ControllerDevice) WriteConfig(offset, size uint32, value uint64) error {
	d.config.Write(offset, size, value)
	return nil
}

func (d *ControllerDevice) ReadIO(region int, offset uint64, size int) (uint64, error) {
	if region != 0 {
		return 0, fmt.Errorf("vfu: unsupported region %d", region)
	}
	return d.mmio.ReadMMIO(offset, size), nil
}

func (d *ControllerDevice) WriteIO(region int, offset uint64, size int, value uint64) error {
	if region != 0 {
		return fmt.Errorf("vfu: unsupported region %d", region)
	}
	d.mmio.WriteMMIO(offset, size, value)
	return nil
}

func (d *ControllerDevice) Bar(n int) (BarInfo, error) {
	if n != 0 {
		return BarInfo{}, fmt.Errorf("vfu: unsupported bar %d", n)
	}
	return BarInfo{Index: 0, Size: d.config.bar0Size, Flags: BarFlagMem64}, nil
}
