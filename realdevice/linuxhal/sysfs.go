//go:build linux

package linuxhal

import (
	"os"
	"strconv"
	"strings"
)

const sysfsUSBDevicesPath = "/sys/bus/usb/devices"

// VendorProduct reads the idVendor/idProduct sysfs attributes for the USB
// device enumerated under (bus, device), for introspection's human-readable
// naming. ok is false if no sysfs entry matches or either attribute is
// unreadable.
func VendorProduct(bus, device uint8) (vendorID, productID uint16, ok bool) {
	entries, err := os.ReadDir(sysfsUSBDevicesPath)
	if err != nil {
		return 0, 0, false
	}
	for _, entry := range entries {
		name := entry.Name()
		// USB device entries look like "1-1" or "1-1.2"; skip root-hub
		// entries ("usb1") and interface entries ("1-1:1.0").
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		path := sysfsUSBDevicesPath + "/" + name
		if !matchesBusDevice(path, bus, device) {
			continue
		}
		vid, vok := readSysfsHex16(path + "/idVendor")
		pid, pok := readSysfsHex16(path + "/idProduct")
		return vid, pid, vok && pok
	}
	return 0, 0, false
}

func matchesBusDevice(path string, bus, device uint8) bool {
	b, ok := readSysfsDecimal(path + "/busnum")
	if !ok || uint8(b) != bus {
		return false
	}
	d, ok := readSysfsDecimal(path + "/devnum")
	return ok && uint8(d) == device
}

func readSysfsDecimal(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
	return v, err == nil
}

func readSysfsHex16(path string) (uint16, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err == nil
}
