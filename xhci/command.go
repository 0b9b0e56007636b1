package xhci

import (
	"context"
	"fmt"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/ring"
	"github.com/ardnew/vxhci/slot"
	"github.com/ardnew/vxhci/trb"
	"github.com/ardnew/vxhci/worker"
)

// drainCommandRing processes every command currently available on the
// Command Ring, enqueuing one Command Completion Event per command
// consumed, in consumption order. It releases the controller mutex around
// each command so enqueueing an event (which takes its own lock) and
// starting endpoint workers never contend with it.
func (c *Controller) drainCommandRing() {
	for {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return
		}
		cmd, addr, ok := c.cmdRing.NextCommandTRB()
		c.mu.Unlock()
		if !ok {
			return
		}
		c.handleCommand(cmd, addr)
	}
}

func (c *Controller) handleCommand(cmd trb.CommandTRB, addr uint64) {
	var code pkg.CompletionCode
	var slotID uint8

	switch cmd.Type {
	case trb.TypeEnableSlot:
		code, slotID = c.cmdEnableSlot()
	case trb.TypeDisableSlot:
		slotID = cmd.SlotID
		code = c.cmdDisableSlot(cmd.SlotID)
	case trb.TypeAddressDevice:
		slotID = cmd.SlotID
		code = c.cmdAddressDevice(cmd.SlotID, cmd.InputContextPointer)
	case trb.TypeConfigureEndpoint:
		slotID = cmd.SlotID
		code = c.cmdConfigureEndpoint(cmd.SlotID, cmd.InputContextPointer, cmd.DeconfigureBit)
	case trb.TypeStopEndpoint:
		slotID = cmd.SlotID
		c.slots.SetEndpointState(cmd.SlotID, cmd.EndpointID, slot.EndpointStateStopped)
		code = pkg.CompletionCodeSuccess
	case trb.TypeResetEndpoint:
		slotID = cmd.SlotID
		c.slots.SetEndpointState(cmd.SlotID, cmd.EndpointID, slot.EndpointStateStopped)
		code = pkg.CompletionCodeSuccess
	case trb.TypeResetDevice, trb.TypeEvaluateContext, trb.TypeSetTRDequeuePointer,
		trb.TypeForceHeader, trb.TypeNoOpCommand:
		// Acknowledged as Success without side effects (documented
		// limitation): none of these mutate controller state.
		slotID = cmd.SlotID
		code = pkg.CompletionCodeSuccess
	default:
		pkg.LogWarn(pkg.ComponentXHCI, "unrecognized command TRB", "type", cmd.Type)
		code = pkg.CompletionCodeTRBError
	}

	c.eventRing.Enqueue(trb.CommandCompletionEvent{
		CommandTRBPointer: addr,
		CompletionCode:    code,
		SlotID:            slotID,
	})
}

func (c *Controller) cmdEnableSlot() (pkg.CompletionCode, uint8) {
	id, ok := c.slots.ReserveSlot()
	if !ok {
		return pkg.CompletionCodeNoSlotsAvailableError, 0
	}
	return pkg.CompletionCodeSuccess, id
}

func (c *Controller) cmdDisableSlot(slotID uint8) pkg.CompletionCode {
	if !c.slots.IsReserved(slotID) {
		return pkg.CompletionCodeSlotNotEnabledError
	}
	c.slots.FreeSlot(slotID)

	c.mu.Lock()
	delete(c.bySlot, slotID)
	c.mu.Unlock()

	return pkg.CompletionCodeSuccess
}

// cmdAddressDevice initializes the device context, binds the slot to its
// root hub port, and starts the Control worker for the device occupying
// that port.
//
// An out-of-range root hub port number is a guest protocol violation and
// panics, per the Fatal-conditions list.
func (c *Controller) cmdAddressDevice(slotID uint8, inputContextPtr uint64) pkg.CompletionCode {
	rootHubPort := c.slots.Initialize(slotID, inputContextPtr)
	if rootHubPort < 1 || int(rootHubPort) > port.MaxPorts {
		panic(fmt.Sprintf("xhci: invalid root hub port %d from AddressDevice", rootHubPort))
	}
	c.slots.BindPort(slotID, rootHubPort)

	c.mu.Lock()
	ad, ok := c.byPort[rootHubPort]
	if !ok {
		c.mu.Unlock()
		return pkg.CompletionCodeIncompatibleDeviceError
	}
	sw := &slotWorkers{device: ad.device, notify: make(map[uint8]*worker.Notify)}
	c.bySlot[slotID] = sw
	n := worker.NewNotify()
	sw.notify[1] = n
	bus := c.bus
	ev := c.eventRing
	dev := ad.device
	c.mu.Unlock()

	tr := c.slots.GetTransferRing(slotID, 1)

	if err := dev.EnableEndpoint(c.workerInfo(slotID, 1, tr, bus, ev), slot.EndpointTypeControl); err != nil {
		pkg.LogWarn(pkg.ComponentXHCI, "EnableEndpoint failed for control endpoint",
			"slot", slotID, "error", err)
	}
	w := &worker.Control{SlotID: slotID, EndpointID: 1, Ring: tr, Bus: bus, Device: dev, Events: ev, Notify: n}
	go w.Run(context.Background())

	return pkg.CompletionCodeSuccess
}

// cmdConfigureEndpoint enables every endpoint newly marked in the input
// context's Add-Endpoint flags, starting one worker per endpoint. A
// Configure Endpoint command with the Deconfigure (DC) bit set asks for the
// endpoint-context teardown path instead; this controller does not
// implement it and acknowledges the command as Success with no side
// effects, logging the unsupported-feature path rather than silently
// running the Add-Endpoint path against it.
func (c *Controller) cmdConfigureEndpoint(slotID uint8, inputContextPtr uint64, deconfigure bool) pkg.CompletionCode {
	if deconfigure {
		pkg.LogWarn(pkg.ComponentXHCI, "Configure Endpoint deconfigure bit set, unsupported feature acknowledged as no-op",
			"slot", slotID)
		return pkg.CompletionCodeSuccess
	}

	c.mu.Lock()
	portID, ok := c.slots.PortOf(slotID)
	if !ok {
		c.mu.Unlock()
		return pkg.CompletionCodeIncompatibleDeviceError
	}
	ad, ok := c.byPort[portID]
	if !ok {
		c.mu.Unlock()
		return pkg.CompletionCodeIncompatibleDeviceError
	}
	sw, ok := c.bySlot[slotID]
	if !ok {
		sw = &slotWorkers{device: ad.device, notify: make(map[uint8]*worker.Notify)}
		c.bySlot[slotID] = sw
	}
	bus := c.bus
	ev := c.eventRing
	dev := ad.device
	c.mu.Unlock()

	configured := c.slots.ConfigureEndpoints(slotID, inputContextPtr)
	for _, ep := range configured {
		tr := c.slots.GetTransferRing(slotID, ep.EndpointID)
		n := worker.NewNotify()

		c.mu.Lock()
		sw.notify[ep.EndpointID] = n
		c.mu.Unlock()

		if err := dev.EnableEndpoint(c.workerInfo(slotID, ep.EndpointID, tr, bus, ev), ep.Type); err != nil {
			pkg.LogWarn(pkg.ComponentXHCI, "EnableEndpoint failed",
				"slot", slotID, "endpoint", ep.EndpointID, "error", err)
			continue
		}
		c.startDataWorker(slotID, ep.EndpointID, ep.Type, tr, bus, dev, ev, n)
	}

	return pkg.CompletionCodeSuccess
}

// startDataWorker launches the IN or OUT worker goroutine appropriate for
// ep.Type. The Control endpoint (EP1) is started from cmdAddressDevice
// instead, since it always exists before any Configure Endpoint command.
func (c *Controller) startDataWorker(
	slotID, endpointID uint8,
	epType slot.EndpointType,
	tr *slot.TransferRing,
	bus dma.Bus,
	dev realdevice.Device,
	ev *ring.Event,
	n *worker.Notify,
) {
	if epType.IsIn() {
		w := &worker.In{
			SlotID: slotID, EndpointID: endpointID, Type: epType,
			Ring: tr, Bus: bus, Device: dev, Events: ev, Notify: n,
			MaxPacket: c.slots.EndpointMaxPacketSize(slotID, endpointID),
		}
		go w.Run(context.Background())
		return
	}
	w := &worker.Out{
		SlotID: slotID, EndpointID: endpointID,
		Ring: tr, Bus: bus, Device: dev, Events: ev, Notify: n,
	}
	go w.Run(context.Background())
}

// workerInfo bundles the handles an endpoint needs to enable itself on the
// real device.
func (c *Controller) workerInfo(slotID, endpointID uint8, tr *slot.TransferRing, bus dma.Bus, ev *ring.Event) realdevice.EndpointWorkerInfo {
	return realdevice.EndpointWorkerInfo{
		SlotID: slotID, EndpointID: endpointID,
		TransferRing: tr, Bus: bus, EventRing: ev, Interrupt: c.interrupt,
	}
}
