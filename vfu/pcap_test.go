package vfu

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilePCAPWriter_GlobalHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	w, err := NewFilePCAPWriter(path)
	if err != nil {
		t.Fatalf("NewFilePCAPWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != pcapGlobalHeaderSize {
		t.Fatalf("header length = %d, want %d", len(data), pcapGlobalHeaderSize)
	}
	if got := binary.LittleEndian.Uint32(data[0:]); got != pcapMagic {
		t.Errorf("magic = %#x, want %#x", got, pcapMagic)
	}
	if got := binary.LittleEndian.Uint32(data[20:]); got != PCAPLinkTypeUSBLinux {
		t.Errorf("linktype = %d, want %d", got, PCAPLinkTypeUSBLinux)
	}
}

func TestFilePCAPWriter_RecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	w, err := NewFilePCAPWriter(path)
	if err != nil {
		t.Fatalf("NewFilePCAPWriter() error = %v", err)
	}

	rec := PCAPRecord{
		URBID:          0x1122334455667788,
		Type:           PCAPSubmission,
		XferType:       2, // control
		Endpoint:       0x80,
		DeviceNum:      5,
		BusNum:         1,
		HasSetup:       true,
		Setup:          [8]byte{0x80, 0x06, 0, 1, 0, 0, 18, 0},
		Status:         0,
		Length:         18,
		CapturedLength: 18,
		Timestamp:      time.Unix(1700000000, 123000),
	}
	if err := w.WriteRecord(rec); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := pcapGlobalHeaderSize + pcapRecordHeaderSize + usbmonHeaderSize
	if len(data) != want {
		t.Fatalf("file length = %d, want %d", len(data), want)
	}

	body := data[pcapGlobalHeaderSize+pcapRecordHeaderSize:]
	if got := binary.LittleEndian.Uint64(body[0:]); got != rec.URBID {
		t.Errorf("urb id = %#x, want %#x", got, rec.URBID)
	}
	if PCAPEventType(body[8]) != PCAPSubmission {
		t.Errorf("event type = %c, want S", body[8])
	}
	if body[14] != 0 {
		t.Errorf("flag_setup = %d, want 0 (setup present)", body[14])
	}
	if got := body[40]; got != rec.Setup[0] {
		t.Errorf("setup[0] = %#x, want %#x", got, rec.Setup[0])
	}
}

func TestFilePCAPWriter_NoSetupFlagged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	w, err := NewFilePCAPWriter(path)
	if err != nil {
		t.Fatalf("NewFilePCAPWriter() error = %v", err)
	}
	if err := w.WriteRecord(PCAPRecord{Type: PCAPCompletion, Timestamp: time.Unix(0, 0)}); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	w.Close()

	data, _ := os.ReadFile(path)
	body := data[pcapGlobalHeaderSize+pcapRecordHeaderSize:]
	if body[14] != 1 {
		t.Errorf("flag_setup = %d, want 1 (no setup)", body[14])
	}
}

func TestNopPCAPWriter_DiscardsSilently(t *testing.T) {
	var w NopPCAPWriter
	if err := w.WriteRecord(PCAPRecord{}); err != nil {
		t.Errorf("WriteRecord() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
