package xhci

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/ring"
	"github.com/ardnew/vxhci/slot"
	"github.com/ardnew/vxhci/worker"
)

// busDevice identifies a physical USB device by the numbers the hot-plug
// attacher reports it under, independent of which slot or port it ends up
// bound to.
type busDevice struct {
	bus    uint8
	device uint8
}

// attachedDevice is the bookkeeping record for one occupied port.
type attachedDevice struct {
	id     uuid.UUID
	bd     busDevice
	port   uint8
	device realdevice.Device
	speed  port.Speed
}

// slotWorkers tracks the per-endpoint wake-up handles started for a slot,
// so doorbell writes can route to the right endpoint worker.
type slotWorkers struct {
	device realdevice.Device
	notify map[uint8]*worker.Notify
}

// Controller is the top-level xHCI emulation: MMIO register dispatcher,
// Command Ring consumer, doorbell router, and attach/detach policy. One
// coarse mutex guards controller-level state; the Event Ring and Transfer
// Rings it wraps are independently synchronized so endpoint workers and
// the MMIO dispatcher can make progress concurrently.
type Controller struct {
	mu sync.Mutex

	bus       dma.Bus
	slots     *slot.Table
	ports     *port.Table
	cmdRing   *ring.Command
	eventRing *ring.Event
	interrupt ring.Interrupter

	running bool
	config  uint32 // MaxSlotsEn, from CONFIG
	iman    uint32
	imod    uint32
	erstsz  uint32
	dcbaap  uint64 // mirrored for register read-back only

	bySlot    map[uint8]*slotWorkers
	byPort    map[uint8]*attachedDevice
	byBusDev  map[busDevice]*attachedDevice
	// attachOrder records busDevice keys in the order AttachDevice inserted
	// them, since Go map iteration order is randomized and the hot-plug List
	// command and introspection's ListAttachedDevices must both report
	// devices in attach order.
	attachOrder []busDevice
}

// New constructs an unstarted controller. interrupt is the MSI-X (or
// equivalent) line the controller raises on every event enqueue; bus is
// the guest-memory handle shared by every DMA-capable component.
func New(bus dma.Bus, interrupt ring.Interrupter) *Controller {
	return &Controller{
		bus:       bus,
		slots:     slot.NewTable(bus),
		ports:     port.NewTable(),
		cmdRing:   ring.NewCommand(bus),
		eventRing: ring.NewEvent(bus, interrupt),
		interrupt: interrupt,
		bySlot:    make(map[uint8]*slotWorkers),
		byPort:    make(map[uint8]*attachedDevice),
		byBusDev:  make(map[busDevice]*attachedDevice),
	}
}

// Ports exposes the port table for callers (hot-plug, introspection) that
// need read-only visibility without going through MMIO offsets.
func (c *Controller) Ports() *port.Table { return c.ports }

// Status is a point-in-time snapshot of controller run state, for the
// introspection socket.
type Status struct {
	Running        bool
	SlotsInUse     int
	SlotsTotal     int
	PortsOccupied  int
	PortsTotal     int
	EventRingDepth int
}

// Status reports the controller's current run state and occupancy, without
// taking the Event Ring or per-endpoint locks any longer than needed to read
// each one.
func (c *Controller) Status() Status {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	return Status{
		Running:        running,
		SlotsInUse:     c.slots.ReservedCount(),
		SlotsTotal:     slot.MaxSlots,
		PortsOccupied:  c.ports.ConnectedCount(),
		PortsTotal:     port.MaxPorts,
		EventRingDepth: c.eventRing.Depth(),
	}
}

func (c *Controller) notifyFor(slotID, endpointID uint8) *worker.Notify {
	c.mu.Lock()
	defer c.mu.Unlock()
	sw, ok := c.bySlot[slotID]
	if !ok {
		return nil
	}
	return sw.notify[endpointID]
}

func (c *Controller) logf(msg string, args ...any) {
	pkg.LogDebug(pkg.ComponentXHCI, msg, args...)
}
