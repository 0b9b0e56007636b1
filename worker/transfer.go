package worker

import (
	"context"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/ring"
	"github.com/ardnew/vxhci/slot"
	"github.com/ardnew/vxhci/trb"
)

// In runs the IN (Bulk or Interrupt) endpoint worker.
type In struct {
	SlotID     uint8
	EndpointID uint8
	Type       slot.EndpointType
	Ring       *slot.TransferRing
	Bus        dma.Bus
	Device     realdevice.Device
	Events     *ring.Event
	Notify     *Notify
	MaxPacket  uint16
}

func (w *In) Run(ctx context.Context) {
	for {
		if w.Device.Cancelled().IsCancelled() {
			return
		}

		t, addr, ok := w.Ring.NextTransferTRB()
		if !ok {
			if !w.Notify.Wait(ctx) {
				return
			}
			continue
		}
		if t.Type != trb.TypeNormal {
			pkg.LogWarn(pkg.ComponentWorker, "non-Normal TRB on IN endpoint, skipping", "type", t.Type)
			continue
		}

		w.service(ctx, t.Normal, addr)
	}
}

func (w *In) service(ctx context.Context, n trb.Normal, addr uint64) {
	bufSize := inBufferSize(n.TransferLength, w.MaxPacket)
	buf := make([]byte, bufSize)

	actual, err := w.Device.Transfer(ctx, realdevice.TransferRequest{
		EndpointID: w.EndpointID,
		Type:       w.Type,
		Direction:  realdevice.DirectionIn,
		Data:       buf,
	})
	if w.Device.Cancelled().IsCancelled() {
		return
	}
	if err != nil {
		pkg.LogDebug(pkg.ComponentWorker, "IN transfer failed", "error", err)
		actual = 0
	}

	copyLen := actual
	if copyLen > int(n.TransferLength) {
		copyLen = int(n.TransferLength)
	}
	if copyLen > 0 {
		w.Bus.WriteBulk(n.DataBufferPointer, buf[:copyLen])
	}

	if n.IOC {
		w.Events.Enqueue(transferEvent(addr, w.SlotID, w.EndpointID))
	}
}

// inBufferSize rounds transferLength up to a whole number of maxPacket-sized
// packets, with a floor of one packet.
func inBufferSize(transferLength uint32, maxPacket uint16) uint32 {
	if maxPacket == 0 {
		maxPacket = 1
	}
	packets := (transferLength + uint32(maxPacket) - 1) / uint32(maxPacket)
	if packets == 0 {
		packets = 1
	}
	return packets * uint32(maxPacket)
}

// Out runs the Bulk OUT endpoint worker.
type Out struct {
	SlotID     uint8
	EndpointID uint8
	Ring       *slot.TransferRing
	Bus        dma.Bus
	Device     realdevice.Device
	Events     *ring.Event
	Notify     *Notify
}

func (w *Out) Run(ctx context.Context) {
	for {
		if w.Device.Cancelled().IsCancelled() {
			return
		}

		t, addr, ok := w.Ring.NextTransferTRB()
		if !ok {
			if !w.Notify.Wait(ctx) {
				return
			}
			continue
		}
		if t.Type != trb.TypeNormal {
			pkg.LogWarn(pkg.ComponentWorker, "non-Normal TRB on OUT endpoint, skipping", "type", t.Type)
			continue
		}

		w.service(ctx, t.Normal, addr)
	}
}

func (w *Out) service(ctx context.Context, n trb.Normal, addr uint64) {
	buf := make([]byte, n.TransferLength)
	w.Bus.ReadBulk(n.DataBufferPointer, buf)

	_, err := w.Device.Transfer(ctx, realdevice.TransferRequest{
		EndpointID: w.EndpointID,
		Type:       slot.EndpointTypeBulkOut,
		Direction:  realdevice.DirectionOut,
		Data:       buf,
	})
	if w.Device.Cancelled().IsCancelled() {
		return
	}
	if err != nil {
		pkg.LogDebug(pkg.ComponentWorker, "OUT transfer failed", "error", err)
	}

	if n.IOC {
		w.Events.Enqueue(transferEvent(addr, w.SlotID, w.EndpointID))
	}
}
