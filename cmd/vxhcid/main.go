//go:build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/hotplug"
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/pkg/linux/usbid"
	"github.com/ardnew/vxhci/pkg/prof"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/realdevice/linuxhal"
	"github.com/ardnew/vxhci/vfu"
	"github.com/ardnew/vxhci/vfu/introspect"
	"github.com/ardnew/vxhci/xhci"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	pkg.SetLogLevel(cfg.logLevel())

	if err := run(cfg); err != nil {
		pkg.LogError(pkg.ComponentVFU, "vxhcid exiting", "error", err)
		os.Exit(1)
	}
}

// run builds the controller and every collaborator the CLI surface asked
// for, serves them until a termination signal arrives, and tears them down
// in reverse order.
func run(cfg Config) error {
	if cfg.CPUProfile != "" {
		if err := prof.StartCPU(cfg.CPUProfile); err != nil {
			return fmt.Errorf("vxhcid: cpuprofile: %w", err)
		}
		defer prof.StopCPU()
	}

	bus := dma.NewSim(cfg.DMASize)

	pcap, err := openPCAP(cfg.PCAPPath)
	if err != nil {
		return fmt.Errorf("vxhcid: pcap: %w", err)
	}
	defer pcap.Close()

	trigger := vfu.TriggerFunc(func(vector uint32) error {
		pkg.LogDebug(pkg.ComponentVFU, "interrupt line raised", "vector", vector)
		return nil
	})
	interrupter := vfu.NewMSIXInterrupter(0, trigger)

	controller := xhci.New(bus, interrupter)

	config := vfu.NewConfigSpace(vendorID, deviceID, bar0Size)
	device := vfu.NewControllerDevice(controller, config)
	logDeviceSurface(cfg, device)

	for _, path := range cfg.DevicePaths {
		if err := attachAtStartup(controller, path, pcap); err != nil {
			return fmt.Errorf("vxhcid: attach %s: %w", path, err)
		}
	}

	var hpServer *hotplug.Server
	if cfg.HotplugSocket != "" {
		hpServer, err = hotplug.Listen(cfg.HotplugSocket, controller, linuxOpener)
		if err != nil {
			return fmt.Errorf("vxhcid: hotplug socket: %w", err)
		}
		defer hpServer.Close()
		go serveLogged(pkg.ComponentHotplug, hpServer.Serve)
	}

	var inServer *introspect.Server
	if cfg.IntrospectSocket != "" {
		inServer, err = introspect.Listen(cfg.IntrospectSocket, introspect.NewService(controller, newUSBIDResolver()))
		if err != nil {
			return fmt.Errorf("vxhcid: introspect socket: %w", err)
		}
		defer inServer.Close()
		go serveLogged(pkg.ComponentVFU, inServer.Serve)
	}

	pkg.LogInfo(pkg.ComponentVFU, "vxhcid ready",
		"socket", cfg.SocketPath, "socket-fd", cfg.SocketFD,
		"hotplug-socket", cfg.HotplugSocket, "introspect-socket", cfg.IntrospectSocket)

	waitForSignal()
	pkg.LogInfo(pkg.ComponentVFU, "vxhcid shutting down")
	return nil
}

// logDeviceSurface records, at startup, the vfio-user boundary this process
// exposes. The framing that would actually drive device over -socket or
// -socket-fd is an external collaborator this reference wiring does not
// implement; this log line documents the surface it would connect to.
func logDeviceSurface(cfg Config, device *vfu.ControllerDevice) {
	bar, _ := device.Bar(0)
	pkg.LogInfo(pkg.ComponentVFU, "controller device surface ready",
		"bar0-size", bar.Size, "vendor-id", fmt.Sprintf("%#04x", vendorID), "device-id", fmt.Sprintf("%#04x", deviceID))
}

// usbidResolver implements introspect.NameResolver by combining the kernel's
// sysfs device table (for the vendor/product ID a (bus, device) pair names)
// with the USB ID database (for the names those IDs themselves resolve to).
type usbidResolver struct {
	db *usbid.Database
}

// newUSBIDResolver loads the system USB ID database, if one is present.
// Resolve degrades to always-miss when no database file could be found;
// it is still safe to register against introspect.NewService.
func newUSBIDResolver() *usbidResolver {
	db := usbid.New()
	db.Load()
	return &usbidResolver{db: db}
}

func (r *usbidResolver) Resolve(bus, device uint8) (vendor, product string, ok bool) {
	vid, pid, found := linuxhal.VendorProduct(bus, device)
	if !found {
		return "", "", false
	}
	vendor = r.db.LookupVendor(vid)
	product = r.db.LookupProduct(vid, pid)
	return vendor, product, vendor != "" || product != ""
}

func openPCAP(path string) (vfu.PCAPWriter, error) {
	if path == "" {
		return vfu.NopPCAPWriter{}, nil
	}
	return vfu.NewFilePCAPWriter(path)
}

// linuxOpener is the hotplug.Opener for devices attached over the hot-plug
// socket. It does not wrap the result for PCAP capture: the hot-plug
// protocol's Opener only ever sees a bare fd, never the (bus, device) pair
// the attach command carries, so a capture record tagged with the right
// numbers can't be built here. Devices named with -device at startup are
// captured instead, where those numbers are already in hand.
func linuxOpener(fd int) (realdevice.Device, error) {
	speed, ok := linuxhal.GetSpeed(fd)
	if !ok {
		return nil, nil
	}
	return linuxhal.New(fd, speed), nil
}

// attachAtStartup opens an already-present device node directly, bypassing
// the hot-plug socket entirely, for the -device flag's "attach at startup"
// convenience.
func attachAtStartup(controller *xhci.Controller, path string, pcap vfu.PCAPWriter) error {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return err
	}

	speed, ok := linuxhal.GetSpeed(fd)
	if !ok {
		unix.Close(fd)
		return pkg.ErrCouldNotDetermineSpeed
	}
	dev := linuxhal.New(fd, speed)

	bus, device := startupBusDevice(path)
	captured := vfu.NewCapturingDevice(dev, pcap, bus, device)

	if _, err := controller.AttachDevice(bus, device, captured); err != nil {
		dev.Close()
		return err
	}
	return nil
}

// startupBusDevice assigns synthetic bus/device numbers to a device named
// directly on the command line, since it never passes through the hot-plug
// protocol's own (bus, device) addressing.
func startupBusDevice(path string) (bus, device uint8) {
	var sum uint32
	for i := 0; i < len(path); i++ {
		sum = sum*31 + uint32(path[i])
	}
	return 0, uint8(1 + sum%254)
}

func serveLogged(component pkg.Component, serve func() error) {
	if err := serve(); err != nil {
		pkg.LogWarn(component, "server loop exited", "error", err)
	}
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
