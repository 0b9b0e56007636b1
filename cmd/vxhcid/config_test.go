//go:build linux

package main

import (
	"log/slog"
	"testing"
)

func TestParseConfig_RequiresSocketOrFD(t *testing.T) {
	if _, err := parseConfig([]string{}); err == nil {
		t.Fatal("parseConfig() with neither -socket nor -socket-fd, want error")
	}
}

func TestParseConfig_SocketPathAccepted(t *testing.T) {
	cfg, err := parseConfig([]string{"-socket", "/tmp/vxhci.sock"})
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.SocketPath != "/tmp/vxhci.sock" {
		t.Errorf("SocketPath = %q, want /tmp/vxhci.sock", cfg.SocketPath)
	}
	if cfg.DMASize != 64<<20 {
		t.Errorf("DMASize = %d, want default 64MiB", cfg.DMASize)
	}
}

func TestParseConfig_RepeatableFlags(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-socket-fd", "3",
		"-device", "/dev/bus/usb/001/002",
		"-device", "/dev/bus/usb/001/003",
		"-v", "-v",
	})
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.SocketFD != 3 {
		t.Errorf("SocketFD = %d, want 3", cfg.SocketFD)
	}
	if len(cfg.DevicePaths) != 2 {
		t.Fatalf("len(DevicePaths) = %d, want 2", len(cfg.DevicePaths))
	}
	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d, want 2", cfg.Verbose)
	}
	if got := cfg.logLevel(); got != slog.LevelDebug {
		t.Errorf("logLevel() = %v, want Debug", got)
	}
}

func TestParseConfig_RejectsNonPositiveDMASize(t *testing.T) {
	if _, err := parseConfig([]string{"-socket-fd", "3", "-dma-size", "0"}); err == nil {
		t.Fatal("parseConfig() with -dma-size 0, want error")
	}
}

func TestConfig_LogLevelDefaultsToWarn(t *testing.T) {
	cfg := Config{Verbose: 0}
	if got := cfg.logLevel(); got != slog.LevelWarn {
		t.Errorf("logLevel() = %v, want Warn", got)
	}
}
