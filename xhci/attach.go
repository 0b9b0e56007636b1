package xhci

import (
	"github.com/google/uuid"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/trb"
)

// AttachDevice implements the attach policy: find the lowest-index free
// port matching the device's speed, mark it connected/enabled, and (if the
// controller is running) enqueue a Port Status Change Event. It returns
// the UUID tagging this attach session, used in logs and introspection.
func (c *Controller) AttachDevice(bus, device uint8, dev realdevice.Device) (uuid.UUID, error) {
	speed, ok := dev.Speed()
	if !ok {
		return uuid.Nil, pkg.ErrCouldNotDetermineSpeed
	}

	bd := busDevice{bus: bus, device: device}

	c.mu.Lock()
	if _, exists := c.byBusDev[bd]; exists {
		c.mu.Unlock()
		return uuid.Nil, pkg.ErrAlreadyAttached
	}

	portID, ok := c.ports.FindFreePort(speed)
	if !ok {
		c.mu.Unlock()
		return uuid.Nil, pkg.ErrNoFreePort
	}

	id := uuid.New()
	ad := &attachedDevice{id: id, bd: bd, port: portID, device: dev, speed: speed}
	c.byBusDev[bd] = ad
	c.byPort[portID] = ad
	c.attachOrder = append(c.attachOrder, bd)
	running := c.running
	c.mu.Unlock()

	c.ports.Attach(portID, speed)

	pkg.LogInfo(pkg.ComponentXHCI, "device attached",
		"id", id, "bus", bus, "device", device, "port", portID, "speed", speed)

	if running {
		c.eventRing.Enqueue(trb.PortStatusChangeEvent{PortID: portID})
	}

	return id, nil
}

// DetachDevice implements the detach policy: locate the port by
// (bus, device), reset PORTSC, enqueue a Port Status Change Event, free any
// slot bound to the port, and cancel the device's endpoint workers.
func (c *Controller) DetachDevice(bus, device uint8) error {
	bd := busDevice{bus: bus, device: device}

	c.mu.Lock()
	ad, ok := c.byBusDev[bd]
	if !ok {
		c.mu.Unlock()
		return pkg.ErrNoSuchDevice
	}
	delete(c.byBusDev, bd)
	delete(c.byPort, ad.port)
	c.removeFromAttachOrder(bd)
	running := c.running
	c.mu.Unlock()

	c.ports.Detach(ad.port)

	if slotID, ok := c.slots.FindSlotByPort(ad.port); ok {
		c.slots.FreeSlot(slotID)
		c.mu.Lock()
		delete(c.bySlot, slotID)
		c.mu.Unlock()
	}

	if running {
		c.eventRing.Enqueue(trb.PortStatusChangeEvent{PortID: ad.port})
	}

	ad.device.Cancelled().Cancel()

	pkg.LogInfo(pkg.ComponentXHCI, "device detached",
		"id", ad.id, "bus", bus, "device", device, "port", ad.port)

	return nil
}

// removeFromAttachOrder drops bd from the attach-order list. Caller holds
// c.mu.
func (c *Controller) removeFromAttachOrder(bd busDevice) {
	for i, v := range c.attachOrder {
		if v == bd {
			c.attachOrder = append(c.attachOrder[:i], c.attachOrder[i+1:]...)
			return
		}
	}
}

// BusDevice identifies an attached device by the (bus, device) pair its
// attacher reported it under.
type BusDevice struct {
	Bus    uint8
	Device uint8
}

// ListAttached returns the (bus, device) pair of every currently attached
// device, in attach order, for the hot-plug List command.
func (c *Controller) ListAttached() []BusDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]BusDevice, 0, len(c.attachOrder))
	for _, bd := range c.attachOrder {
		out = append(out, BusDevice{Bus: bd.bus, Device: bd.device})
	}
	return out
}

// AttachedInfo is the introspection-visible record of one occupied port:
// everything the hot-plug protocol reports, plus the fields only logs and
// the management socket need.
type AttachedInfo struct {
	ID     uuid.UUID
	Bus    uint8
	Device uint8
	Port   uint8
	Speed  port.Speed
}

// ListAttachedInfo returns the full AttachedInfo record for every currently
// attached device, in attach order, for the introspection socket's
// ListAttachedDevices RPC.
func (c *Controller) ListAttachedInfo() []AttachedInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AttachedInfo, 0, len(c.attachOrder))
	for _, bd := range c.attachOrder {
		ad := c.byBusDev[bd]
		out = append(out, AttachedInfo{
			ID:     ad.id,
			Bus:    bd.bus,
			Device: bd.device,
			Port:   ad.port,
			Speed:  ad.speed,
		})
	}
	return out
}
