package realdevice

import (
	"context"
	"sync/atomic"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/ring"
	"github.com/ardnew/vxhci/slot"
)

// Direction is the data-phase direction of a transfer.
type Direction uint8

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

// TransferRequest describes one transfer a worker asks the real device to
// perform. Setup is non-nil only for control transfers.
type TransferRequest struct {
	EndpointID uint8
	Type       slot.EndpointType
	Direction  Direction
	Setup      *slot.UsbRequest
	Data       []byte
}

// EndpointWorkerInfo carries everything a worker spawned for one endpoint
// needs: which slot/endpoint it serves, the ring it consumes, the bus it
// DMAs through, and the shared Event Ring and interrupt line it reports
// completions on.
type EndpointWorkerInfo struct {
	SlotID       uint8
	EndpointID   uint8
	TransferRing *slot.TransferRing
	Bus          dma.Bus
	EventRing    *ring.Event
	Interrupt    ring.Interrupter
}

// Device is the capability set the controller needs from a real (or mock)
// USB device attached to a port.
type Device interface {
	// Speed returns the device's negotiated speed, or ok=false if it could
	// not be determined (the attach policy's CouldNotDetermineSpeed case).
	Speed() (speed port.Speed, ok bool)

	// EnableEndpoint prepares the device to service the given endpoint,
	// e.g. claiming the underlying interface or priming a transfer queue.
	EnableEndpoint(info EndpointWorkerInfo, epType slot.EndpointType) error

	// Transfer performs one transfer and returns the number of bytes moved
	// in the data phase.
	Transfer(ctx context.Context, req TransferRequest) (n int, err error)

	// Cancelled returns the handle workers observe to notice detach.
	Cancelled() *CancellationHandle
}

// CancellationHandle reports whether a device has been detached, for
// endpoint workers to observe between (or during) transfers.
//
// Grounded on an atomic cancellation flag pattern used for in-flight transfers.
type CancellationHandle struct {
	cancelled atomic.Uint32
}

// NewCancellationHandle returns a handle in the not-cancelled state.
func NewCancellationHandle() *CancellationHandle {
	return &CancellationHandle{}
}

// Cancel marks the handle cancelled. Safe to call more than once.
func (h *CancellationHandle) Cancel() {
	h.cancelled.Store(1)
}

// IsCancelled reports whether Cancel has been called.
func (h *CancellationHandle) IsCancelled() bool {
	return h.cancelled.Load() != 0
}
