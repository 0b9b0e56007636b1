package vfu

import "encoding/binary"

// PCI configuration-space header offsets this reference implementation
// models. A real configuration-space builder is a general-purpose external
// collaborator (§Purpose/Scope); this one only emits the fixed header a
// single xHCI function needs.
const (
	cfgVendorID      = 0x00
	cfgDeviceID      = 0x02
	cfgCommand       = 0x04
	cfgStatus        = 0x06
	cfgRevisionID    = 0x08
	cfgClassCode     = 0x09 // 3 bytes: prog-if, subclass, class
	cfgHeaderType    = 0x0E
	cfgBar0          = 0x10
	cfgBar0Hi        = 0x14
	cfgCapPtr        = 0x34
	cfgInterruptLine = 0x3C
	cfgInterruptPin  = 0x3D

	configSpaceSize = 0x100

	classCodeUSB     = 0x0C0330 // base class 0x0C (serial bus), subclass 0x03 (USB), prog-if 0x30 (xHCI)
	headerTypeNormal = 0x00
	interruptPinINTA = 0x01
)

// ConfigSpace is a minimal, single-function PCI configuration space backing
// a 64-bit memory BAR0. It implements the guest-visible BAR-sizing dance
// (write all-ones, read back the size mask) and otherwise stores bytes
// verbatim.
type ConfigSpace struct {
	raw      [configSpaceSize]byte
	bar0Size uint64
}

// NewConfigSpace builds a configuration space for a single xHCI function
// with the given PCI identifiers and BAR0 size (rounded up to a power of two
// by the caller; this type does not validate that).
func NewConfigSpace(vendorID, deviceID uint16, bar0Size uint64) *ConfigSpace {
	c := &ConfigSpace{bar0Size: bar0Size}
	binary.LittleEndian.PutUint16(c.raw[cfgVendorID:], vendorID)
	binary.LittleEndian.PutUint16(c.raw[cfgDeviceID:], deviceID)
	c.raw[cfgClassCode+0] = byte(classCodeUSB & 0xFF)
	c.raw[cfgClassCode+1] = byte((classCodeUSB >> 8) & 0xFF)
	c.raw[cfgClassCode+2] = byte(classCodeUSB >> 16)
	c.raw[cfgHeaderType] = headerTypeNormal
	c.raw[cfgInterruptPin] = interruptPinINTA
	c.setBAR0(0) // unprogrammed until the VMM assigns an address
	return c
}

func (c *ConfigSpace) setBAR0(addr uint64) {
	low := uint32(addr&^0xF) | 0x4 // bit 2 set: 64-bit memory space
	binary.LittleEndian.PutUint32(c.raw[cfgBar0:], low)
	binary.LittleEndian.PutUint32(c.raw[cfgBar0Hi:], uint32(addr>>32))
}

// Read returns the size-masked value at offset, implementing the BAR0
// size-probe convention: after a preceding all-ones Write at cfgBar0, Read
// returns the negated, rounded-down size rather than the stored bits.
func (c *ConfigSpace) Read(offset, size uint32) uint64 {
	if int(offset)+int(size) > configSpaceSize {
		return 0
	}
	switch size {
	case 1:
		return uint64(c.raw[offset])
	case 2:
		return uint64(binary.LittleEndian.Uint16(c.raw[offset:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(c.raw[offset:]))
	default:
		return 0
	}
}

// Write stores value at offset, honoring the BAR0 size-probe convention: an
// all-ones write to cfgBar0/cfgBar0Hi latches the size mask instead of the
// literal bits, so a subsequent Read reports the BAR's size to the guest.
func (c *ConfigSpace) Write(offset, size uint32, value uint64) {
	if int(offset)+int(size) > configSpaceSize {
		return
	}
	sizeMask := ^(c.bar0Size - 1)
	if offset == cfgBar0 && value == 0xFFFFFFFF {
		binary.LittleEndian.PutUint32(c.raw[cfgBar0:], uint32(sizeMask)|0x4)
		return
	}
	if offset == cfgBar0Hi && value == 0xFFFFFFFF {
		binary.LittleEndian.PutUint32(c.raw[cfgBar0Hi:], uint32(sizeMask>>32))
		return
	}
	switch size {
	case 1:
		c.raw[offset] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(c.raw[offset:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(c.raw[offset:], uint32(value))
	}
}
