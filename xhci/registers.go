package xhci

import (
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/slot"
)

// Region base addresses within the controller's single MMIO BAR.
const (
	OpBase       = 0x20
	RunBase      = 0x1000
	ir0Base      = RunBase + 0x20
	DoorbellBase = 0x2000
	PortscBase   = OpBase + 0x400
	XecpBase     = 0x3000
)

// Extended Capability List layout: one Supported Protocol Capability block
// per USB generation, chained by each block's Next Capability Pointer. The
// USB3 block comes first so xECP finds the SuperSpeed-capable ports before
// the USB2-only ones, matching how real xHCI controllers order them.
const (
	xecpCapLen        = 0x10 // bytes per Supported Protocol Capability block
	xecpCapIDProtocol = 2
	// nameStringUSB is the packed ASCII "USB " Name String field (xHCI
	// 7.2.2), byte 0 in the low byte.
	nameStringUSB = 0x20425355
)

// Capability register offsets, absolute within the BAR.
const (
	capLengthOffset  = 0x00 // 1 byte
	hciVersionOffset = 0x02 // 2 bytes
	hcsParams1Offset = 0x04
	hcsParams2Offset = 0x08
	hcsParams3Offset = 0x0C
	hccParams1Offset = 0x10
	dbOffOffset      = 0x14
	rtsOffOffset     = 0x18
	hccParams2Offset = 0x1C
)

// Operational register offsets, relative to OpBase.
const (
	usbCmdOffset   = 0x00
	usbStsOffset   = 0x04
	pageSizeOffset = 0x08
	dnCtrlOffset   = 0x14
	crcrOffset     = 0x18 // 8 bytes
	dcbaapOffset   = 0x30 // 8 bytes
	configOffset   = 0x38
)

// Interrupter Register Set 0 offsets, relative to ir0Base. Only one
// interrupter is modeled.
const (
	imanOffset   = 0x00
	imodOffset   = 0x04
	erstszOffset = 0x08
	erstbaOffset = 0x10 // 8 bytes
	erdpOffset   = 0x18 // 8 bytes
)

const (
	bitRunStop  = 1 << 0 // USBCMD
	bitHCHalted = 1 << 0 // USBSTS
)

// capLength is the CAPLENGTH register's value: the byte offset of the
// operational register space, by definition equal to OpBase.
const capLength = OpBase

// hciVersion reports xHCI revision 1.0.
const hciVersion = 0x0100

// hcsParams1 packs MaxSlots (bits 0..7), MaxIntrs (bits 8..18), and
// MaxPorts (bits 24..31).
func hcsParams1() uint32 {
	return uint32(slot.MaxSlots) | 1<<8 | uint32(port.MaxPorts)<<24
}

// hccParams1 advertises 64-bit addressing capability (AC64, bit 0) and
// points xECP (bits 16..31, a DWord offset from the start of the MMIO BAR)
// at the Supported Protocol Capability list; every other capability bit
// this controller does not implement is left clear.
func hccParams1() uint32 { return 1 | uint32(XecpBase/4)<<16 }

// pageSizeValue reports support for 4 KiB pages only (bit 0).
const pageSizeValue = 1

// supportedProtocolWords packs one Supported Protocol Capability block
// (xHCI 7.2.2): capability ID + next-capability DWord offset + major/minor
// revision in word 0, the "USB " name string in word 1, compatible port
// offset/count in word 2, and protocol slot type in word 3.
func supportedProtocolWords(major, minor, next, portOffset, portCount, slotType uint8) [4]uint32 {
	return [4]uint32{
		uint32(xecpCapIDProtocol) | uint32(next)<<8 | uint32(major)<<16 | uint32(minor)<<24,
		nameStringUSB,
		uint32(portOffset) | uint32(portCount)<<8,
		uint32(slotType),
	}
}

// usb3ProtocolWords describes the SuperSpeed-capable ports (1..NumUSB3Ports)
// as USB 3.0, chained to the USB2 block that follows it.
func usb3ProtocolWords() [4]uint32 {
	return supportedProtocolWords(3, 0, xecpCapLen/4, 1, port.NumUSB3Ports, 0)
}

// usb2ProtocolWords describes the remaining ports as USB 2.0; it is the
// last capability in the list (next = 0).
func usb2ProtocolWords() [4]uint32 {
	return supportedProtocolWords(2, 0, 0, port.NumUSB3Ports+1, port.MaxPorts-port.NumUSB3Ports, 0)
}
