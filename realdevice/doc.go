// Package realdevice defines the capability set the controller needs from a
// physical (or mock) USB device: reporting its negotiated speed, accepting
// newly-configured endpoints, performing transfers, and exposing a
// cancellation handle that endpoint workers observe when the device is
// detached.
package realdevice
