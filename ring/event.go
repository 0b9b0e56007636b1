package ring

import (
	"sync"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/trb"
)

// Interrupter raises the controller's interrupt line. Event enqueues always
// raise it, per Ordering Guarantee 4 / Invariant 4: every enqueue is
// followed by an interrupt assertion.
type Interrupter interface {
	Raise()
}

// erstEntrySize is the byte size of one Event Ring Segment Table entry:
// an 8-byte base address followed by a 4-byte TRB count and 4 reserved
// bytes.
const erstEntrySize = 16

// Event is a single-segment producer of event TRBs. All enqueue operations
// are serialized under one mutex so the MMIO dispatcher and any number of
// endpoint workers can enqueue concurrently without corrupting the ring.
type Event struct {
	mu sync.Mutex

	bus        dma.Bus
	interrupt  Interrupter

	base      uint64 // ring segment base address
	capacity  uint16 // total TRB slots in the segment
	enqueue   uint64 // internal producer pointer
	remaining uint16 // slots left before wrap
	cycle     bool   // producer cycle state

	erdp uint64 // last dequeue pointer reported by the guest
}

// NewEvent constructs an Event Ring that writes TRBs through bus and raises
// interrupts through interrupt. It is unconfigured until Configure is
// called.
func NewEvent(bus dma.Bus, interrupt Interrupter) *Event {
	return &Event{bus: bus, interrupt: interrupt, cycle: true}
}

// Configure reads the first Event Ring Segment Table entry at erstba and
// resets the producer state to (base, true).
func (e *Event) Configure(erstba uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.bus.Read(erstba, 8)
	size := uint16(e.bus.Read(erstba+8, 4))

	e.base = base &^ 0x3F
	e.capacity = size
	e.enqueue = e.base
	e.remaining = size
	e.cycle = true
	e.erdp = e.base

	pkg.LogDebug(pkg.ComponentRing, "event ring configured",
		"erstba", erstba, "base", e.base, "capacity", e.capacity)
}

// UpdateDequeuePointer records the guest driver's read progress.
func (e *Event) UpdateDequeuePointer(erdp uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.erdp = erdp &^ 0xF
}

// Enqueue writes variant as an event TRB at the current producer position,
// advances the pointer with wrap-around at the segment boundary (toggling
// cycle state on wrap), and raises the interrupt line.
//
// variant must be one of the event types [trb.EncodeEvent] accepts.
func (e *Event) Enqueue(variant any) {
	e.mu.Lock()
	raw := trb.EncodeEvent(variant, e.cycle)
	e.bus.WriteBulk(e.enqueue, raw[:])

	e.enqueue += trb.Size
	if e.remaining > 0 {
		e.remaining--
	}
	if e.remaining == 0 {
		e.enqueue = e.base
		e.remaining = e.capacity
		e.cycle = !e.cycle
	}
	e.mu.Unlock()

	e.interrupt.Raise()
}

// ReadBaseAddress returns the guest-observable Event Ring Segment Table
// base-address-derived segment base, as exposed via ERSTBA.
func (e *Event) ReadBaseAddress() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base
}

// ReadDequeuePointer returns the guest-observable ERDP value.
func (e *Event) ReadDequeuePointer() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.erdp
}

// EnqueuePointer returns the internal producer pointer. Exposed for tests
// verifying wrap-around; the guest never observes it directly.
func (e *Event) EnqueuePointer() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enqueue
}

// CycleState returns the current producer cycle state. Exposed for tests.
func (e *Event) CycleState() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle
}

// Depth returns the number of TRB slots produced but not yet acknowledged by
// the guest's ERDP write, for introspection.
func (e *Event) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capacity == 0 {
		return 0
	}
	produced := (e.enqueue - e.base) / trb.Size
	consumed := (e.erdp - e.base) / trb.Size
	depth := (produced - consumed + uint64(e.capacity)) % uint64(e.capacity)
	return int(depth)
}
