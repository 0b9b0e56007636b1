package vfu

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/slot"
)

// CapturingDevice wraps a realdevice.Device and mirrors every transfer to a
// PCAPWriter as a Submission/Completion pair, the same two-record shape
// usbmon itself produces for one URB.
type CapturingDevice struct {
	realdevice.Device
	writer    PCAPWriter
	bus, dev  uint8
	nextURBID atomic.Uint64
}

// NewCapturingDevice wraps dev so every transfer it performs is also handed
// to writer, tagged with the bus/device numbers the hot-plug attacher
// assigned it.
func NewCapturingDevice(dev realdevice.Device, writer PCAPWriter, bus, device uint8) *CapturingDevice {
	return &CapturingDevice{Device: dev, writer: writer, bus: bus, dev: device}
}

// xferType maps a slot.EndpointType to usbmon's single-byte transfer-type
// field: 0 isochronous, 1 interrupt, 2 control, 3 bulk.
func xferType(t slot.EndpointType) byte {
	switch t {
	case slot.EndpointTypeControl:
		return 2
	case slot.EndpointTypeBulkIn, slot.EndpointTypeBulkOut:
		return 3
	case slot.EndpointTypeInterruptIn, slot.EndpointTypeInterruptOut:
		return 1
	default:
		return 0
	}
}

// encodeSetup packs a reconstructed control request back into the raw
// 8-byte Setup packet usbmon captures verbatim.
func encodeSetup(r slot.UsbRequest) [8]byte {
	var b [8]byte
	b[0] = r.RequestType
	b[1] = r.Request
	binary.LittleEndian.PutUint16(b[2:], r.Value)
	binary.LittleEndian.PutUint16(b[4:], r.Index)
	binary.LittleEndian.PutUint16(b[6:], r.Length)
	return b
}

// Transfer performs the wrapped device's transfer, writing a Submission
// record before and a Completion record after, both tagged with the same
// URB id so a capture reader can pair them.
func (c *CapturingDevice) Transfer(ctx context.Context, req realdevice.TransferRequest) (int, error) {
	id := c.nextURBID.Add(1)

	epnum := req.EndpointID & 0x0F
	if req.Direction == realdevice.DirectionIn {
		epnum |= 0x80
	}

	rec := PCAPRecord{
		URBID:     id,
		XferType:  xferType(req.Type),
		Endpoint:  epnum,
		DeviceNum: c.dev,
		BusNum:    uint16(c.bus),
		Length:    uint32(len(req.Data)),
	}
	if req.Setup != nil {
		rec.HasSetup = true
		rec.Setup = encodeSetup(*req.Setup)
	}

	rec.Type = PCAPSubmission
	rec.Timestamp = time.Now()
	c.writer.WriteRecord(rec)

	n, err := c.Device.Transfer(ctx, req)

	rec.Type = PCAPCompletion
	rec.Timestamp = time.Now()
	rec.CapturedLength = uint32(n)
	if err != nil {
		rec.Status = -1
	}
	c.writer.WriteRecord(rec)

	return n, err
}
