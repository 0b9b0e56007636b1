//go:build linux

package linuxhal

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/slot"
)

const defaultTimeoutMS = 200

// Device implements realdevice.Device over an already-open usbfs file
// descriptor. It claims interface 0 lazily on the first enabled endpoint; a
// device exposing more than one interface needs a richer EnableEndpoint
// than this controller's abstract (slot, endpoint) addressing provides, and
// is out of scope here (documented simplification).
type Device struct {
	fd    int
	speed port.Speed

	mu      sync.Mutex
	claimed bool

	cancel *realdevice.CancellationHandle
	stop   chan struct{}
}

// New wraps fd, already opened and handed off by the hot-plug attacher, as
// a realdevice.Device reporting the given speed.
func New(fd int, speed port.Speed) *Device {
	d := &Device{
		fd:     fd,
		speed:  speed,
		cancel: realdevice.NewCancellationHandle(),
		stop:   make(chan struct{}),
	}
	go watchDisconnect(fd, d.cancel, d.stop)
	return d
}

func (d *Device) Speed() (port.Speed, bool) { return d.speed, true }

// kernel enum usb_device_speed values, from <linux/usb/ch9.h>.
const (
	usbSpeedUnknown   = 0
	usbSpeedLow       = 1
	usbSpeedFull      = 2
	usbSpeedHigh      = 3
	usbSpeedWireless  = 4
	usbSpeedSuper     = 5
	usbSpeedSuperPlus = 6
)

// GetSpeed issues USBDEVFS_GET_SPEED against fd and maps the kernel's speed
// enum to a port.Speed, for the hot-plug Opener to call before New.
func GetSpeed(fd int) (port.Speed, bool) {
	raw, err := doGetSpeed(fd)
	if err != nil {
		return port.SpeedUnknown, false
	}
	return speedFromKernelEnum(raw)
}

// speedFromKernelEnum maps a raw enum usb_device_speed value to a
// port.Speed. ok is false for USB_SPEED_UNKNOWN/USB_SPEED_WIRELESS or an
// unrecognized value, matching the hot-plug protocol's
// CouldNotDetermineSpeed response.
func speedFromKernelEnum(raw int) (port.Speed, bool) {
	switch raw {
	case usbSpeedLow:
		return port.SpeedLow, true
	case usbSpeedFull:
		return port.SpeedFull, true
	case usbSpeedHigh:
		return port.SpeedHigh, true
	case usbSpeedSuper:
		return port.SpeedSuper, true
	case usbSpeedSuperPlus:
		return port.SpeedSuperPlus, true
	default:
		return port.SpeedUnknown, false
	}
}

func (d *Device) EnableEndpoint(info realdevice.EndpointWorkerInfo, epType slot.EndpointType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed {
		return nil
	}
	if err := disconnectDriver(d.fd, 0); err != nil {
		if !isNoData(err) {
			pkg.LogDebug(pkg.ComponentRealDevice, "disconnect driver failed", "error", err)
		}
	}
	if err := claimInterface(d.fd, 0); err != nil {
		return err
	}
	d.claimed = true
	return nil
}

// endpointAddress derives a usbfs endpoint address from the controller's
// abstract endpoint ID and transfer direction: low 4 bits of the ID name
// the endpoint number, and the direction bit is set for IN transfers.
func endpointAddress(id uint8, dir realdevice.Direction) uint8 {
	addr := id & 0x0F
	if dir == realdevice.DirectionIn {
		addr |= 0x80
	}
	return addr
}

// timeoutMS derives the usbfs ioctl timeout from ctx's deadline, in the
// kernel's own convention: 0 means block indefinitely. The Control worker
// wraps its context with an explicit deadline (controlTransferTimeout)
// before calling Transfer; the IN/OUT workers pass a bare, deadline-less
// context, since only the control path is bounded — their transfers block
// until completion or cancellation.
func timeoutMS(ctx context.Context) uint32 {
	dl, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	if ms := time.Until(dl).Milliseconds(); ms > 0 {
		return uint32(ms)
	}
	return defaultTimeoutMS
}

func (d *Device) Transfer(ctx context.Context, req realdevice.TransferRequest) (int, error) {
	if d.cancel.IsCancelled() {
		return 0, pkg.ErrNoDevice
	}

	ms := timeoutMS(ctx)

	if req.Type == slot.EndpointTypeControl {
		s := req.Setup
		return doControlTransfer(d.fd, s.RequestType, s.Request, s.Value, s.Index, req.Data, ms)
	}

	addr := endpointAddress(req.EndpointID, req.Direction)
	return doBulkTransfer(d.fd, addr, req.Data, ms)
}

func (d *Device) Cancelled() *realdevice.CancellationHandle { return d.cancel }

// Close stops the disconnect watcher and closes the underlying descriptor.
func (d *Device) Close() error {
	close(d.stop)
	return unix.Close(d.fd)
}
