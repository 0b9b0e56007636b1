package xhci

import (
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/trb"
)

// ReadMMIO returns the value at the given offset within the controller's
// single MMIO BAR. Reserved and unmodeled regions return 0, matching real
// hardware's behavior for implementation-defined-as-zero regions.
func (c *Controller) ReadMMIO(offset uint64, size int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case offset < OpBase:
		return c.readCapability(offset, size)
	case offset >= PortscBase && offset < PortscBase+16*port.MaxPorts:
		if id, ok := port.DecodeOffset(offset - PortscBase); ok {
			return uint64(c.ports.Get(id))
		}
		return 0
	case offset >= OpBase && offset < PortscBase:
		return c.readOperational(offset - OpBase)
	case offset >= ir0Base && offset < ir0Base+0x20:
		return c.readInterrupter(offset - ir0Base)
	case offset >= XecpBase && offset < XecpBase+2*xecpCapLen:
		return c.readExtendedCapability(offset - XecpBase)
	default:
		return 0
	}
}

// readExtendedCapability reads from the Supported Protocol Capability list
// xECP points at: the USB3 block first, then the USB2 block.
func (c *Controller) readExtendedCapability(offset uint64) uint64 {
	switch {
	case offset < xecpCapLen:
		return uint64(usb3ProtocolWords()[offset/4])
	case offset < 2*xecpCapLen:
		return uint64(usb2ProtocolWords()[(offset-xecpCapLen)/4])
	default:
		return 0
	}
}

func (c *Controller) readCapability(offset uint64, size int) uint64 {
	switch offset {
	case capLengthOffset:
		return capLength
	case hciVersionOffset:
		return hciVersion
	case hcsParams1Offset:
		return uint64(hcsParams1())
	case hcsParams2Offset:
		return 0
	case hcsParams3Offset:
		return 0
	case hccParams1Offset:
		return uint64(hccParams1())
	case dbOffOffset:
		return DoorbellBase
	case rtsOffOffset:
		return RunBase
	case hccParams2Offset:
		return 0
	default:
		return 0
	}
}

func (c *Controller) readOperational(offset uint64) uint64 {
	switch offset {
	case usbCmdOffset:
		if c.running {
			return bitRunStop
		}
		return 0
	case usbStsOffset:
		if c.running {
			return 0
		}
		return bitHCHalted
	case pageSizeOffset:
		return pageSizeValue
	case dnCtrlOffset:
		return 0
	case crcrOffset:
		v := c.cmdRing.DequeuePointer()
		if c.cmdRing.CycleState() {
			v |= 1
		}
		if c.cmdRing.Status() {
			v |= 1 << 3
		}
		return v
	case crcrOffset + 4:
		return 0
	case dcbaapOffset:
		return c.dcbaap
	case dcbaapOffset + 4:
		return 0
	case configOffset:
		return uint64(c.config)
	default:
		return 0
	}
}

func (c *Controller) readInterrupter(offset uint64) uint64 {
	switch offset {
	case imanOffset:
		return uint64(c.iman)
	case imodOffset:
		return uint64(c.imod)
	case erstszOffset:
		return uint64(c.erstsz)
	case erstbaOffset:
		return c.eventRing.ReadBaseAddress()
	case erstbaOffset + 4:
		return 0
	case erdpOffset:
		return c.eventRing.ReadDequeuePointer()
	case erdpOffset + 4:
		return 0
	default:
		return 0
	}
}

// WriteMMIO applies a guest write at the given offset, dispatching to the
// owning component. Writes to the read-only capability and extended
// capability registers are logged and otherwise ignored; writes to other
// unmodeled offsets are ignored without logging.
func (c *Controller) WriteMMIO(offset uint64, size int, value uint64) {
	c.mu.Lock()

	switch {
	case offset < OpBase:
		pkg.LogWarn(pkg.ComponentXHCI, "write to read-only capability register", "offset", offset)
		c.mu.Unlock()
		return
	case offset >= PortscBase && offset < PortscBase+16*port.MaxPorts:
		id, ok := port.DecodeOffset(offset - PortscBase)
		c.mu.Unlock()
		if ok {
			c.ports.Write(id, uint32(value))
		}
		return
	case offset >= OpBase && offset < PortscBase:
		c.writeOperational(offset-OpBase, value)
		return
	case offset >= ir0Base && offset < ir0Base+0x20:
		c.writeInterrupter(offset-ir0Base, value)
		return
	case offset >= XecpBase && offset < XecpBase+2*xecpCapLen:
		pkg.LogWarn(pkg.ComponentXHCI, "write to read-only extended capability register", "offset", offset)
		c.mu.Unlock()
		return
	case offset >= DoorbellBase:
		slotID := uint8((offset - DoorbellBase) / 4)
		c.mu.Unlock()
		c.doorbell(slotID, uint32(value))
		return
	default:
		c.mu.Unlock()
	}
}

// writeOperational handles an Operational-register write. Caller holds
// c.mu; this method releases it before returning in every branch so that
// side effects requiring the lock (enqueueing events, draining rings) don't
// self-deadlock.
func (c *Controller) writeOperational(offset uint64, value uint64) {
	switch offset {
	case usbCmdOffset:
		wasRunning := c.running
		nowRunning := value&bitRunStop != 0
		c.running = nowRunning
		c.mu.Unlock()
		if !wasRunning && nowRunning {
			c.onStart()
		}
		return
	case usbStsOffset:
		// Writes ignored (current simplification; a full implementation
		// would RW1C the change bits).
		c.mu.Unlock()
	case pageSizeOffset:
		c.mu.Unlock()
	case dnCtrlOffset:
		c.mu.Unlock()
	case crcrOffset:
		c.cmdRing.Control(value)
		c.mu.Unlock()
	case crcrOffset + 4:
		if value != 0 {
			pkg.LogWarn(pkg.ComponentXHCI, "CRCR_HI nonzero, addresses above 4GiB unsupported")
		}
		c.mu.Unlock()
	case dcbaapOffset:
		c.dcbaap = value
		c.slots.SetDCBAAP(value)
		c.mu.Unlock()
	case dcbaapOffset + 4:
		if value != 0 {
			pkg.LogWarn(pkg.ComponentXHCI, "DCBAAP_HI nonzero, addresses above 4GiB unsupported")
		}
		c.mu.Unlock()
	case configOffset:
		c.config = uint32(value)
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) writeInterrupter(offset uint64, value uint64) {
	switch offset {
	case imanOffset:
		c.iman = uint32(value)
		c.mu.Unlock()
	case imodOffset:
		c.imod = uint32(value)
		c.mu.Unlock()
	case erstszOffset:
		c.erstsz = uint32(value)
		c.mu.Unlock()
	case erstbaOffset:
		c.mu.Unlock()
		c.eventRing.Configure(value)
	case erstbaOffset + 4:
		if value != 0 {
			pkg.LogWarn(pkg.ComponentXHCI, "ERSTBA_HI nonzero, addresses above 4GiB unsupported")
		}
		c.mu.Unlock()
	case erdpOffset:
		c.mu.Unlock()
		c.eventRing.UpdateDequeuePointer(value)
	case erdpOffset + 4:
		if value != 0 {
			pkg.LogWarn(pkg.ComponentXHCI, "ERDP_HI nonzero, addresses above 4GiB unsupported")
		}
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

// onStart runs the USBCMD 0->1 transition side effect: announce every
// already-populated port so the guest driver discovers devices attached
// before the controller was started.
func (c *Controller) onStart() {
	for id := uint8(1); id <= port.MaxPorts; id++ {
		if c.ports.Connected(id) {
			c.eventRing.Enqueue(trb.PortStatusChangeEvent{PortID: id})
		}
	}
}
