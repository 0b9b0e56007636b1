//go:build linux

// Command vxhcid is the reference process wiring: it builds one
// xhci.Controller over a simulated guest-memory bus, wraps it in the
// vfu.Device adapter, and accepts hot-plug and introspection connections on
// their own Unix sockets. The vfio-user server framing that would actually
// drive vfu.Device over a VMM-facing socket is an external collaborator and
// is not implemented here; -socket/-socket-fd are accepted and logged for
// that framing's benefit but are not themselves served.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
)

// bar0Size is the MMIO BAR0 size this reference wiring advertises: large
// enough to cover capability, operational, runtime, and the full doorbell
// array (DoorbellBase + MaxSlots+1 doorbells), rounded up to a power of two
// per the PCI BAR-sizing convention.
const bar0Size = 0x4000

// vendorID/deviceID are this controller's own PCI identifiers. Neither is
// assigned by the PCI-SIG; a real deployment would substitute registered
// values.
const (
	vendorID uint16 = 0x1b36 // Red Hat, Inc. (QEMU's vendor ID, conventional for software-emulated devices)
	deviceID uint16 = 0x0d00
)

// verboseFlag counts repeated -v occurrences, the same convention many Unix
// CLIs use for graduated verbosity.
type verboseFlag int

func (v *verboseFlag) String() string   { return fmt.Sprintf("%d", int(*v)) }
func (v *verboseFlag) IsBoolFlag() bool { return true }
func (v *verboseFlag) Set(string) error { *v++; return nil }

// stringList collects every occurrence of a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Config is the parsed CLI surface.
type Config struct {
	Verbose int

	SocketPath string
	SocketFD   int

	DevicePaths []string

	HotplugSocket    string
	IntrospectSocket string
	PCAPPath         string

	DMASize    int
	CPUProfile string
}

// parseConfig parses args (normally os.Args[1:]) into a Config.
func parseConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("vxhcid", flag.ContinueOnError)

	var verbose verboseFlag
	fs.Var(&verbose, "v", "increase logging verbosity (repeatable)")

	socketPath := fs.String("socket", "", "path at which to listen for the vfio-user connection")
	socketFD := fs.Int("socket-fd", -1, "already-open file descriptor for the vfio-user connection, in place of -socket")

	var devices stringList
	fs.Var(&devices, "device", "usbfs device node to attach at startup (repeatable)")

	hotplugSocket := fs.String("hotplug-socket", "", "path at which to listen for hot-plug attach/detach commands")
	introspectSocket := fs.String("introspect-socket", "", "path at which to serve read-only controller introspection")
	pcapPath := fs.String("pcap", "", "path to write a USB packet capture, in LINKTYPE_USB_LINUX pcap format")

	dmaSize := fs.Int("dma-size", 64<<20, "size in bytes of the simulated guest-memory bus")
	cpuProfile := fs.String("cpuprofile", "", "write a CPU profile to this path (requires building with -tags profile)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Verbose:          int(verbose),
		SocketPath:       *socketPath,
		SocketFD:         *socketFD,
		DevicePaths:      devices,
		HotplugSocket:    *hotplugSocket,
		IntrospectSocket: *introspectSocket,
		PCAPPath:         *pcapPath,
		DMASize:          *dmaSize,
		CPUProfile:       *cpuProfile,
	}

	if cfg.SocketPath == "" && cfg.SocketFD < 0 {
		return Config{}, fmt.Errorf("vxhcid: one of -socket or -socket-fd is required")
	}
	if cfg.DMASize <= 0 {
		return Config{}, fmt.Errorf("vxhcid: -dma-size must be positive")
	}

	return cfg, nil
}

// logLevel maps a -v count to a slog.Level: 0 warnings-and-above, 1 info,
// 2-or-more debug.
func (c Config) logLevel() slog.Level {
	switch {
	case c.Verbose >= 2:
		return slog.LevelDebug
	case c.Verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
