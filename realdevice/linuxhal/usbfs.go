//go:build linux

package linuxhal

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ctrlTransfer mirrors the kernel's struct usbdevfs_ctrltransfer.
type ctrlTransfer struct {
	requestType uint8
	request     uint8
	value       uint16
	index       uint16
	length      uint16
	timeout     uint32
	data        uintptr
}

// bulkTransfer mirrors the kernel's struct usbdevfs_bulktransfer.
type bulkTransfer struct {
	endpoint uint32
	length   uint32
	timeout  uint32
	data     uintptr
}

// ioctlRaw issues an ioctl via golang.org/x/sys/unix rather than the raw
// bare syscall package, for portability across more than one ioctl number layout
// of that layer.
func ioctlRaw(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlRetval issues an ioctl and returns the syscall's return value, used
// by control/bulk transfers to report bytes transferred.
func ioctlRetval(fd int, req uintptr, arg uintptr) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}

// doGetSpeed issues USBDEVFS_GET_SPEED, whose raw ioctl return value is the
// kernel's enum usb_device_speed for the device behind fd.
func doGetSpeed(fd int) (int, error) {
	return ioctlRetval(fd, ioctlUsbdevfsGetSpeed, 0)
}

// doControlTransfer performs a synchronous control transfer with the given
// millisecond timeout.
func doControlTransfer(fd int, reqType, req uint8, value, index uint16, data []byte, timeoutMS uint32) (int, error) {
	ctrl := ctrlTransfer{
		requestType: reqType,
		request:     req,
		value:       value,
		index:       index,
		length:      uint16(len(data)),
		timeout:     timeoutMS,
	}
	if len(data) > 0 {
		ctrl.data = uintptr(unsafe.Pointer(&data[0]))
	}
	return ioctlRetval(fd, ioctlUsbdevfsControl, uintptr(unsafe.Pointer(&ctrl)))
}

// doBulkTransfer performs a synchronous bulk (or interrupt, which usbfs
// treats identically for the synchronous path) transfer.
func doBulkTransfer(fd int, endpoint uint8, data []byte, timeoutMS uint32) (int, error) {
	bulk := bulkTransfer{
		endpoint: uint32(endpoint),
		length:   uint32(len(data)),
		timeout:  timeoutMS,
	}
	if len(data) > 0 {
		bulk.data = uintptr(unsafe.Pointer(&data[0]))
	}
	return ioctlRetval(fd, ioctlUsbdevfsBulk, uintptr(unsafe.Pointer(&bulk)))
}

func claimInterface(fd int, iface uint8) error {
	ifaceNum := uint32(iface)
	return ioctlRaw(fd, ioctlUsbdevfsClaimInterface, uintptr(unsafe.Pointer(&ifaceNum)))
}

func releaseInterface(fd int, iface uint8) error {
	ifaceNum := uint32(iface)
	return ioctlRaw(fd, ioctlUsbdevfsReleaseInterface, uintptr(unsafe.Pointer(&ifaceNum)))
}

func disconnectDriver(fd int, iface uint8) error {
	ifaceNum := uint32(iface)
	return ioctlRaw(fd, ioctlUsbdevfsDisconnect, uintptr(unsafe.Pointer(&ifaceNum)))
}

func isNoData(err error) bool {
	return err == unix.ENODATA
}
