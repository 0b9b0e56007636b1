// Package linuxhal implements realdevice.Device over the Linux usbfs ioctl
// interface (/dev/bus/usb/BBB/DDD), operating on a file descriptor the
// hot-plug attacher has already opened and handed off, rather than
// enumerating devices itself. Control and bulk/interrupt transfers go
// through USBDEVFS_CONTROL/USBDEVFS_BULK; a background goroutine watches the
// fd with epoll for ENODEV/hang-up and cancels the device's
// CancellationHandle when the kernel reports the device gone.
package linuxhal
