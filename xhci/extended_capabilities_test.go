package xhci

import (
	"testing"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/port"
)

func TestHCCParams1_PointsXECPAtSupportedProtocolList(t *testing.T) {
	c := New(dma.NewSim(1<<16), &countingInterrupter{})

	got := c.ReadMMIO(hccParams1Offset, 4)
	if got&1 == 0 {
		t.Fatalf("AC64 bit cleared: %#x", got)
	}
	if xecp := (got >> 16) & 0xFFFF; xecp != XecpBase/4 {
		t.Fatalf("xECP = %#x, want %#x", xecp, XecpBase/4)
	}
}

func TestReadMMIO_USB3SupportedProtocolCapability(t *testing.T) {
	c := New(dma.NewSim(1<<16), &countingInterrupter{})

	word0 := c.ReadMMIO(XecpBase, 4)
	if id := word0 & 0xFF; id != xecpCapIDProtocol {
		t.Fatalf("capability ID = %#x, want %#x", id, xecpCapIDProtocol)
	}
	if next := (word0 >> 8) & 0xFF; next != xecpCapLen/4 {
		t.Fatalf("next capability pointer = %d, want %d", next, xecpCapLen/4)
	}
	if major := (word0 >> 16) & 0xFF; major != 3 {
		t.Fatalf("major revision = %d, want 3", major)
	}

	name := c.ReadMMIO(XecpBase+4, 4)
	if name != nameStringUSB {
		t.Fatalf("name string = %#x, want %#x", name, nameStringUSB)
	}

	ports := c.ReadMMIO(XecpBase+8, 4)
	if off := ports & 0xFF; off != 1 {
		t.Fatalf("compatible port offset = %d, want 1", off)
	}
	if count := (ports >> 8) & 0xFF; count != port.NumUSB3Ports {
		t.Fatalf("compatible port count = %d, want %d", count, port.NumUSB3Ports)
	}
}

func TestReadMMIO_USB2SupportedProtocolCapabilityIsLastInList(t *testing.T) {
	c := New(dma.NewSim(1<<16), &countingInterrupter{})

	word0 := c.ReadMMIO(XecpBase+xecpCapLen, 4)
	if major := (word0 >> 16) & 0xFF; major != 2 {
		t.Fatalf("major revision = %d, want 2", major)
	}
	if next := (word0 >> 8) & 0xFF; next != 0 {
		t.Fatalf("next capability pointer = %d, want 0 (end of list)", next)
	}

	ports := c.ReadMMIO(XecpBase+xecpCapLen+8, 4)
	if off := ports & 0xFF; off != port.NumUSB3Ports+1 {
		t.Fatalf("compatible port offset = %d, want %d", off, port.NumUSB3Ports+1)
	}
	if count := (ports >> 8) & 0xFF; count != port.MaxPorts-port.NumUSB3Ports {
		t.Fatalf("compatible port count = %d, want %d", count, port.MaxPorts-port.NumUSB3Ports)
	}
}

func TestWriteMMIO_ExtendedCapabilityIsReadOnly(t *testing.T) {
	c := New(dma.NewSim(1<<16), &countingInterrupter{})

	before := c.ReadMMIO(XecpBase, 4)
	c.WriteMMIO(XecpBase, 4, 0xFFFFFFFF)
	if after := c.ReadMMIO(XecpBase, 4); after != before {
		t.Fatalf("extended capability register changed after write: %#x -> %#x", before, after)
	}
}
