package xhci

import "fmt"

// maxEndpointIndex is the highest valid endpoint index a doorbell write may
// name (xHCI endpoint contexts 1..31).
const maxEndpointIndex = 31

// doorbell handles a guest write to the doorbell array. slotID 0 is the
// command-ring doorbell; slotID 1..MaxSlots kicks the endpoint named in the
// low byte of value.
//
// An invalid slot ID or an out-of-range endpoint index is a guest protocol
// violation and panics, per the Fatal-conditions list.
func (c *Controller) doorbell(slotID uint8, value uint32) {
	if slotID == 0 {
		c.drainCommandRing()
		return
	}

	if !c.slots.IsReserved(slotID) {
		panic(fmt.Sprintf("xhci: invalid slot id %d in doorbell", slotID))
	}

	endpointID := uint8(value & 0xFF)
	if endpointID == 0 || endpointID > maxEndpointIndex {
		panic(fmt.Sprintf("xhci: invalid doorbell endpoint index %d", endpointID))
	}

	n := c.notifyFor(slotID, endpointID)
	if n == nil {
		return
	}
	n.Signal()
}
