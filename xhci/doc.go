// Package xhci implements the top-level xHCI controller: the MMIO register
// dispatcher, Command Ring handling, doorbell routing, attach/detach
// policy, and interrupt generation tying together trb, dma, ring, slot,
// port, realdevice, and worker.
package xhci
