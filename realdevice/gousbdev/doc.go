// Package gousbdev implements realdevice.Device on top of
// github.com/google/gousb, for platforms where talking to the host's
// libusb installation is preferable to usbfs ioctls directly.
package gousbdev
