package slot

import (
	"sync"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
)

// MaxSlots is the size of the Device Slot table. DCBAA and the slot ID space
// are both 1-indexed up to this value.
const MaxSlots = 32

// MaxEndpoints is the highest valid endpoint index within a device context.
// Index 0 names the slot context itself; 1..MaxEndpoints name endpoints.
const MaxEndpoints = 31

// ConfiguredEndpoint is one entry of the set Configure Endpoint newly
// enables, as returned by Table.ConfigureEndpoints.
type ConfiguredEndpoint struct {
	EndpointID uint8
	Type       EndpointType
}

// Table is the fixed-size Device Slot table: which slots are reserved, the
// port each reserved slot is bound to, and the Device Context Base Address
// Array pointer used to locate each slot's Device Context in guest memory.
type Table struct {
	mu sync.Mutex

	bus    dma.Bus
	dcbaap uint64

	reserved [MaxSlots + 1]bool
	portOf   [MaxSlots + 1]uint8 // 0 = unbound
}

// NewTable constructs an empty Device Slot table.
func NewTable(bus dma.Bus) *Table {
	return &Table{bus: bus}
}

// SetDCBAAP records the Device Context Base Address Array pointer written
// by the guest to DCBAAP.
func (t *Table) SetDCBAAP(ptr uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dcbaap = ptr &^ 0x3F
}

// ReserveSlot allocates the lowest-index free slot.
func (t *Table) ReserveSlot() (id uint8, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i <= MaxSlots; i++ {
		if !t.reserved[i] {
			t.reserved[i] = true
			return uint8(i), true
		}
	}
	return 0, false
}

// FreeSlot releases a reserved slot and clears its port binding. Per
// Invariant 6, the caller must ensure a slot is freed exactly once.
func (t *Table) FreeSlot(id uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) >= len(t.reserved) {
		panic("slot: invalid slot id in FreeSlot")
	}
	t.reserved[id] = false
	t.portOf[id] = 0
}

// ReservedCount returns the number of slots currently allocated, for
// introspection.
func (t *Table) ReservedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := 1; i <= MaxSlots; i++ {
		if t.reserved[i] {
			n++
		}
	}
	return n
}

// IsReserved reports whether the given slot ID is currently allocated.
func (t *Table) IsReserved(id uint8) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) >= len(t.reserved) {
		return false
	}
	return t.reserved[id]
}

// BindPort records the slot-to-port mapping created by Address Device.
func (t *Table) BindPort(slot, port uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portOf[slot] = port
}

// PortOf returns the port a reserved slot is bound to, or ok=false if
// unbound.
func (t *Table) PortOf(slot uint8) (port uint8, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.portOf[slot]
	return p, p != 0
}

// FindSlotByPort returns the slot currently bound to port, used by detach to
// locate the slot that must be freed.
func (t *Table) FindSlotByPort(port uint8) (slot uint8, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i <= MaxSlots; i++ {
		if t.reserved[i] && t.portOf[i] == port {
			return uint8(i), true
		}
	}
	return 0, false
}

// deviceContextAddress reads DCBAA[slot] to find where the slot's Device
// Context lives in guest memory.
func (t *Table) deviceContextAddress(slot uint8) uint64 {
	t.mu.Lock()
	dcbaap := t.dcbaap
	t.mu.Unlock()
	return t.bus.Read(dcbaap+8*uint64(slot), 8) &^ 0x3F
}

// Initialize copies the Slot Context and the default control endpoint's
// (EP0) Endpoint Context from the Input Context into the slot's Device
// Context, and returns the Root Hub Port Number recorded in the Slot
// Context.
func (t *Table) Initialize(slot uint8, inputContextPtr uint64) (rootHubPort uint8) {
	deviceCtx := t.deviceContextAddress(slot)

	buf := make([]byte, contextSize)

	t.bus.ReadBulk(inputContextPtr+slotContextOffset(), buf)
	rootHubPort = buf[6] // dword1 byte2 = Root Hub Port Number (bits 16..23)
	t.bus.WriteBulk(deviceCtx+deviceContextSlotOffset, buf)

	t.bus.ReadBulk(inputContextPtr+endpointContextOffset(1), buf)
	setEndpointState(buf, EndpointStateRunning)
	t.bus.WriteBulk(deviceCtx+deviceContextEndpointOffset(1), buf)

	pkg.LogDebug(pkg.ComponentSlot, "slot initialized", "slot", slot, "rootHubPort", rootHubPort)
	return rootHubPort
}

// ConfigureEndpoints enables every endpoint newly marked in the Input
// Control Context's Add Context flags (xHCI dword1, bits 1..31 name
// endpoint contexts 1..31) by copying its Endpoint Context from the Input
// Context into the Device Context.
func (t *Table) ConfigureEndpoints(slot uint8, inputContextPtr uint64) []ConfiguredEndpoint {
	deviceCtx := t.deviceContextAddress(slot)

	addFlags := uint32(t.bus.Read(inputContextPtr+4, 4))
	buf := make([]byte, contextSize)

	var out []ConfiguredEndpoint
	for ep := uint8(1); ep <= MaxEndpoints; ep++ {
		if addFlags&(1<<ep) == 0 {
			continue
		}
		t.bus.ReadBulk(inputContextPtr+endpointContextOffset(ep), buf)
		epType := endpointType(buf)
		setEndpointState(buf, EndpointStateRunning)
		t.bus.WriteBulk(deviceCtx+deviceContextEndpointOffset(ep), buf)
		out = append(out, ConfiguredEndpoint{EndpointID: ep, Type: epType})
	}
	return out
}

// SetEndpointState writes the endpoint context's state field for the given
// slot/endpoint.
func (t *Table) SetEndpointState(slot, endpointID uint8, state EndpointState) {
	deviceCtx := t.deviceContextAddress(slot)
	addr := deviceCtx + deviceContextEndpointOffset(endpointID)
	dword0 := uint32(t.bus.Read(addr, 4))
	dword0 = (dword0 &^ 0x7) | uint32(state)
	t.bus.Write(addr, 4, uint64(dword0))
}

// EndpointState reads back the endpoint state for the given slot/endpoint.
func (t *Table) EndpointState(slot, endpointID uint8) EndpointState {
	deviceCtx := t.deviceContextAddress(slot)
	addr := deviceCtx + deviceContextEndpointOffset(endpointID)
	return EndpointState(t.bus.Read(addr, 4) & 0x7)
}

// EndpointMaxPacketSize reads the endpoint context's Max Packet Size field
// (dword1 bits 16..31), used by IN workers to size transfer buffers.
func (t *Table) EndpointMaxPacketSize(slot, endpointID uint8) uint16 {
	deviceCtx := t.deviceContextAddress(slot)
	addr := deviceCtx + deviceContextEndpointOffset(endpointID)
	dword1 := uint32(t.bus.Read(addr+4, 4))
	return uint16(dword1 >> 16)
}

// GetTransferRing returns a handle to the per-endpoint Transfer Ring for
// (slot, endpointID). The handle reads and writes its dequeue pointer and
// cycle state directly in the endpoint context; it holds no ring state of
// its own.
func (t *Table) GetTransferRing(slot, endpointID uint8) *TransferRing {
	deviceCtx := t.deviceContextAddress(slot)
	return &TransferRing{
		bus:     t.bus,
		ctxAddr: deviceCtx + deviceContextEndpointOffset(endpointID),
	}
}

func endpointType(ctx []byte) EndpointType {
	dword1 := leUint32(ctx[4:8])
	return EndpointType((dword1 >> 3) & 0x7)
}

func setEndpointState(ctx []byte, state EndpointState) {
	dword0 := leUint32(ctx[0:4])
	dword0 = (dword0 &^ 0x7) | uint32(state)
	putLeUint32(ctx[0:4], dword0)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
