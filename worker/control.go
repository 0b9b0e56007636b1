package worker

import (
	"context"
	"time"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/ring"
	"github.com/ardnew/vxhci/slot"
)

const controlTransferTimeout = 200 * time.Millisecond

// Control runs the control-endpoint worker: one control request per loop
// iteration, consumed from the Transfer Ring as Setup(+Data)+Status TRBs.
type Control struct {
	SlotID     uint8
	EndpointID uint8
	Ring       *slot.TransferRing
	Bus        dma.Bus
	Device     realdevice.Device
	Events     *ring.Event
	Notify     *Notify
}

// Run drains the control endpoint's ring until ctx is cancelled or the
// device is detached.
func (w *Control) Run(ctx context.Context) {
	for {
		if w.Device.Cancelled().IsCancelled() {
			return
		}

		req, statusAddr, ok := w.Ring.ReadControlRequest()
		if !ok {
			if !w.Notify.Wait(ctx) {
				return
			}
			continue
		}

		w.service(ctx, req, statusAddr)
	}
}

func (w *Control) service(ctx context.Context, req slot.UsbRequest, statusAddr uint64) {
	deviceToHost := req.RequestType&0x80 != 0

	data := make([]byte, req.Length)
	if !deviceToHost && req.HasData {
		n := int(req.DataTransferLength)
		if n > len(data) {
			n = len(data)
		}
		w.Bus.ReadBulk(req.DataBufferPointer, data[:n])
	}

	tctx, cancel := context.WithTimeout(ctx, controlTransferTimeout)
	dir := realdevice.DirectionOut
	if deviceToHost {
		dir = realdevice.DirectionIn
	}
	n, err := w.Device.Transfer(tctx, realdevice.TransferRequest{
		EndpointID: w.EndpointID,
		Type:       slot.EndpointTypeControl,
		Direction:  dir,
		Setup:      &req,
		Data:       data,
	})
	cancel()

	// A timed-out/failed control transfer still reports Success with
	// whatever data was gathered (possibly none); see pkg.FromTransferStatus.
	if err != nil {
		n = 0
		pkg.LogDebug(pkg.ComponentWorker, "control transfer failed, reporting success per simplification", "error", err)
	}

	if deviceToHost && req.HasData {
		if n > int(req.DataTransferLength) {
			n = int(req.DataTransferLength)
		}
		w.Bus.WriteBulk(req.DataBufferPointer, data[:n])
	}

	w.Events.Enqueue(transferEvent(statusAddr, w.SlotID, w.EndpointID))
}
