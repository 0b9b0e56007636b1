package slot

import (
	"runtime"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/trb"
)

// trDequeueOffset is the byte offset of the 8-byte TR Dequeue Pointer field
// within an Endpoint Context; bit 0 of that field is the Dequeue Cycle
// State (DCS).
const trDequeueOffset = 8

// TransferRing references one endpoint's Transfer Ring. Unlike the Command
// Ring, it holds no dequeue-pointer or cycle-state fields of its own —
// both live in the endpoint context in guest memory, read and written
// through bus on every call, per the Data Model's Transfer Ring definition.
type TransferRing struct {
	bus     dma.Bus
	ctxAddr uint64
}

// GetDequeuePointerAndCycleState reads the endpoint context's current TR
// Dequeue Pointer and Dequeue Cycle State.
func (r *TransferRing) GetDequeuePointerAndCycleState() (ptr uint64, cycle bool) {
	v := r.bus.Read(r.ctxAddr+trDequeueOffset, 8)
	return v &^ 0xF, v&0x1 != 0
}

// SetDequeuePointerAndCycleState writes back the TR Dequeue Pointer and
// Dequeue Cycle State, as Set TR Dequeue Pointer commands and ordinary ring
// consumption both do.
func (r *TransferRing) SetDequeuePointerAndCycleState(ptr uint64, cycle bool) {
	v := ptr &^ 0xF
	if cycle {
		v |= 1
	}
	r.bus.Write(r.ctxAddr+trDequeueOffset, 8, v)
}

func (r *TransferRing) readAt(addr uint64) trb.Raw {
	var raw trb.Raw
	r.bus.ReadBulk(addr, raw[:])
	return raw
}

// NextTransferTRB dequeues one TRB, transparently following a Link TRB
// exactly once (panicking on two consecutive Links, matching the Command
// Ring's invariant). It returns ok=false if the TRB at the current dequeue
// pointer has not yet been produced by the driver.
func (r *TransferRing) NextTransferTRB() (t trb.TransferTRB, addr uint64, ok bool) {
	ptr, cycle := r.GetDequeuePointerAndCycleState()

	raw := r.readAt(ptr)
	if raw.Cycle() != cycle {
		return trb.TransferTRB{}, 0, false
	}

	if raw.TRBType() == trb.TypeLink {
		link := trb.ParseTransfer(raw).Link
		ptr = link.RingSegmentPointer
		if link.ToggleCycle {
			cycle = !cycle
		}
		raw = r.readAt(ptr)
		if raw.Cycle() != cycle {
			return trb.TransferTRB{}, 0, false
		}
		if raw.TRBType() == trb.TypeLink {
			panic("slot: two consecutive Link TRBs on transfer ring")
		}
	}

	parsed := trb.ParseTransfer(raw)
	reportAddr := ptr
	ptr += trb.Size
	r.SetDequeuePointerAndCycleState(ptr, cycle)
	return parsed, reportAddr, true
}

// UsbRequest is the fully reconstructed control request a Control worker
// extracts from a Setup+Data+Status (or Setup+Status) TRB sequence.
type UsbRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16

	HasData           bool
	DataDeviceToHost  bool
	DataBufferPointer uint64
	DataTransferLength uint32
	DataIOC           bool
}

// ReadControlRequest consumes one full control transfer from the ring:
// a Setup Stage, an optional Data Stage, and a Status Stage. It returns the
// reconstructed request, the guest address of the Status Stage TRB (the
// address a completion Transfer Event must reference), and ok=false if the
// ring does not yet hold a complete Setup TRB.
//
// A Setup Stage not followed eventually by a Status Stage is a guest
// protocol violation and panics, since it leaves the ring permanently
// unparseable.
func (r *TransferRing) ReadControlRequest() (req UsbRequest, statusAddr uint64, ok bool) {
	setupTRB, _, setupOK := r.NextTransferTRB()
	if !setupOK {
		return UsbRequest{}, 0, false
	}
	if setupTRB.Type != trb.TypeSetupStage {
		panic("slot: expected Setup Stage TRB on control endpoint")
	}
	s := setupTRB.SetupStage
	req = UsbRequest{
		RequestType: s.RequestType,
		Request:     s.Request,
		Value:       s.Value,
		Index:       s.Index,
		Length:      s.Length,
	}

	next, addr, nextOK := r.blockingNextTransferTRB()
	_ = nextOK
	if next.Type == trb.TypeDataStage {
		d := next.DataStage
		req.HasData = true
		req.DataDeviceToHost = d.DeviceToHost
		req.DataBufferPointer = d.DataBufferPointer
		req.DataTransferLength = d.TransferLength
		req.DataIOC = d.IOC

		next, addr, _ = r.blockingNextTransferTRB()
	}
	if next.Type != trb.TypeStatusStage {
		panic("slot: control request missing Status Stage TRB")
	}
	return req, addr, true
}

// blockingNextTransferTRB is used only after a Setup Stage has already been
// observed: the remaining Data/Status stages of the same request are
// assumed to already be enqueued by the driver, so this busy-waits briefly
// rather than returning ok=false mid-request. Endpoint workers call
// ReadControlRequest from their own goroutine, so blocking here does not
// stall the dispatcher.
func (r *TransferRing) blockingNextTransferTRB() (trb.TransferTRB, uint64, bool) {
	for {
		t, addr, ok := r.NextTransferTRB()
		if ok {
			return t, addr, true
		}
		runtime.Gosched()
	}
}
