// Package port implements the 1-indexed PORTSC register table: USB3 ports
// occupy the low IDs, USB2 ports the remainder, and attach/detach encode
// connect state and device speed into each port's PORTSC value.
package port
