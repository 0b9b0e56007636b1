package ring

import (
	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/trb"
)

// crcrPointerMask clears CRCR's low 6 bits: RCS (bit 0), Command Stop (bit
// 1, write-only), Command Abort (bit 2, write-only), Command Ring Running
// (bit 3, read-only), and 2 reserved bits.
const crcrPointerMask = ^uint64(0x3F)

// Command is the consumer side of the Command Ring: a dequeue pointer and
// cycle state maintained entirely in emulator-local memory (unlike Transfer
// Rings, whose equivalent state lives in the guest-visible endpoint
// context).
type Command struct {
	bus dma.Bus

	dequeue uint64
	cycle   bool
	running bool
}

// NewCommand constructs an unconfigured Command Ring.
func NewCommand(bus dma.Bus) *Command {
	return &Command{bus: bus}
}

// Control handles a guest write to CRCR. While stopped, it reconfigures the
// dequeue pointer and cycle state and marks the ring running. While
// running, Command Stop (bit 1) stops the ring; Command Abort (bit 2)
// drains every already-produced command TRB without processing it, then
// stops the ring the same way Command Stop does.
func (c *Command) Control(value uint64) {
	if !c.running {
		c.dequeue = value & crcrPointerMask
		c.cycle = value&0x1 != 0
		c.running = true
		return
	}

	if value&0x2 != 0 { // Command Stop
		c.running = false
		return
	}
	if value&0x4 != 0 { // Command Abort
		pkg.LogWarn(pkg.ComponentRing, "command abort requested, draining ring without processing")
		c.drain()
		c.running = false
	}
}

// drain advances the dequeue pointer past every command TRB already
// produced (cycle bit matching), following Link TRBs, without parsing or
// reporting any of them as a processed command. It stops at the first TRB
// that has not yet been produced.
func (c *Command) drain() {
	for {
		raw := c.readAt(c.dequeue)
		if raw.Cycle() != c.cycle {
			return
		}

		t := raw.TRBType()
		if t != trb.TypeLink {
			c.dequeue += trb.Size
			continue
		}

		link := trb.ParseCommand(raw).Link
		c.followLink(link)
		raw = c.readAt(c.dequeue)
		if raw.Cycle() == c.cycle && raw.TRBType() == trb.TypeLink {
			panic("ring: two consecutive Link TRBs on command ring")
		}
	}
}

// Status returns the Command Ring Running bit as reported in CRCR reads.
func (c *Command) Status() bool {
	return c.running
}

// NextCommandTRB reads one command from the ring. It returns ok=false if the
// TRB at the dequeue pointer has not been produced yet (cycle-bit mismatch).
// addr is the guest address of the command TRB being reported — for a
// ring that required following a Link TRB, this is the address of the real
// command, not the Link.
//
// Two consecutive Link TRBs is an invariant violation (Data Model
// Invariants, Command Ring) and panics.
func (c *Command) NextCommandTRB() (cmd trb.CommandTRB, addr uint64, ok bool) {
	raw := c.readAt(c.dequeue)
	if raw.Cycle() != c.cycle {
		return trb.CommandTRB{}, 0, false
	}

	parsed := trb.ParseCommand(raw)
	if parsed.Type == trb.TypeLink {
		c.followLink(parsed.Link)
		raw = c.readAt(c.dequeue)
		if raw.Cycle() != c.cycle {
			return trb.CommandTRB{}, 0, false
		}
		parsed = trb.ParseCommand(raw)
		if parsed.Type == trb.TypeLink {
			panic("ring: two consecutive Link TRBs on command ring")
		}
	}

	reportAddr := c.dequeue
	c.dequeue += trb.Size
	return parsed, reportAddr, true
}

func (c *Command) followLink(link trb.Link) {
	c.dequeue = link.RingSegmentPointer
	if link.ToggleCycle {
		c.cycle = !c.cycle
	}
}

func (c *Command) readAt(addr uint64) trb.Raw {
	var raw trb.Raw
	c.bus.ReadBulk(addr, raw[:])
	return raw
}

// DequeuePointer returns the current consumer pointer. Exposed for tests.
func (c *Command) DequeuePointer() uint64 {
	return c.dequeue
}

// CycleState returns the current consumer cycle state. Exposed for tests.
func (c *Command) CycleState() bool {
	return c.cycle
}
