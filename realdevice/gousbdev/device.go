package gousbdev

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/slot"
)

// Device implements realdevice.Device by wrapping a *gousb.Device already
// opened by the caller (typically by the hot-plug attacher, which matches
// the plugged device by bus/address before handing it off here).
type Device struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	mu    sync.Mutex
	inEP  map[uint8]*gousb.InEndpoint
	outEP map[uint8]*gousb.OutEndpoint

	cancel *realdevice.CancellationHandle
}

// New claims the device's first configuration and interface and wraps it.
func New(dev *gousb.Device) (*Device, error) {
	dev.SetAutoDetach(true)

	cfg, err := dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("gousbdev: open config: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("gousbdev: claim interface: %w", err)
	}

	return &Device{
		dev:    dev,
		cfg:    cfg,
		intf:   intf,
		inEP:   make(map[uint8]*gousb.InEndpoint),
		outEP:  make(map[uint8]*gousb.OutEndpoint),
		cancel: realdevice.NewCancellationHandle(),
	}, nil
}

func toPortSpeed(s gousb.Speed) port.Speed {
	switch s {
	case gousb.SpeedLow:
		return port.SpeedLow
	case gousb.SpeedFull:
		return port.SpeedFull
	case gousb.SpeedHigh:
		return port.SpeedHigh
	case gousb.SpeedSuper:
		return port.SpeedSuper
	case gousb.SpeedSuperPlus:
		return port.SpeedSuperPlus
	default:
		return port.SpeedUnknown
	}
}

func (d *Device) Speed() (port.Speed, bool) {
	s := toPortSpeed(d.dev.Desc.Speed)
	return s, s != port.SpeedUnknown
}

// endpointAddress derives a USB endpoint address from the controller's
// abstract endpoint ID, as linuxhal does for the same reason: the
// controller's endpoint_id space (1..31) carries no interface/alt-setting
// structure to recover the real address from.
func endpointAddress(id uint8, dir realdevice.Direction) uint8 {
	addr := id & 0x0F
	if dir == realdevice.DirectionIn {
		addr |= 0x80
	}
	return addr
}

func (d *Device) EnableEndpoint(info realdevice.EndpointWorkerInfo, epType slot.EndpointType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if epType.IsControl() {
		return nil
	}

	addr := endpointAddress(info.EndpointID, directionOf(epType))
	if epType.IsIn() {
		if _, ok := d.inEP[addr]; ok {
			return nil
		}
		ep, err := d.intf.InEndpoint(int(addr & 0x0F))
		if err != nil {
			return fmt.Errorf("gousbdev: open in endpoint: %w", err)
		}
		d.inEP[addr] = ep
		return nil
	}
	if _, ok := d.outEP[addr]; ok {
		return nil
	}
	ep, err := d.intf.OutEndpoint(int(addr & 0x0F))
	if err != nil {
		return fmt.Errorf("gousbdev: open out endpoint: %w", err)
	}
	d.outEP[addr] = ep
	return nil
}

func directionOf(t slot.EndpointType) realdevice.Direction {
	if t.IsIn() {
		return realdevice.DirectionIn
	}
	return realdevice.DirectionOut
}

func (d *Device) Transfer(ctx context.Context, req realdevice.TransferRequest) (int, error) {
	if d.cancel.IsCancelled() {
		return 0, pkg.ErrNoDevice
	}

	if req.Type == slot.EndpointTypeControl {
		s := req.Setup
		return d.dev.Control(s.RequestType, s.Request, s.Value, s.Index, req.Data)
	}

	addr := endpointAddress(req.EndpointID, req.Direction)
	d.mu.Lock()
	in, isIn := d.inEP[addr]
	out, isOut := d.outEP[addr]
	d.mu.Unlock()

	switch {
	case isIn:
		return in.Read(req.Data)
	case isOut:
		return out.Write(req.Data)
	default:
		return 0, pkg.ErrInvalidEndpoint
	}
}

func (d *Device) Cancelled() *realdevice.CancellationHandle { return d.cancel }

// Close releases the interface, configuration, and device handles.
func (d *Device) Close() error {
	d.intf.Close()
	d.cfg.Close()
	return d.dev.Close()
}
