package hotplug

import (
	"bytes"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	cases := []Command{
		{ID: CommandAttach, Bus: 3, Device: 5, FD: 42},
		{ID: CommandDetach, Bus: 1, Device: 9, FD: -1},
		{ID: CommandList, FD: -1},
	}
	for _, want := range cases {
		encoded := EncodeCommand(want)
		got, err := DecodeCommand(encoded, want.FD)
		if err != nil {
			t.Fatalf("DecodeCommand(%v) error = %v", want, err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestDecodeCommand_WrongLength(t *testing.T) {
	if _, err := DecodeCommand([]byte{0, 1}, -1); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestDecodeCommand_UnrecognizedID(t *testing.T) {
	if _, err := DecodeCommand([]byte{99, 0, 0}, -1); err == nil {
		t.Error("expected error for unrecognized command id")
	}
}

func TestResponseRoundTrip_NoTrailer(t *testing.T) {
	cases := []Response{
		{Code: ResponseSuccessfulOperation},
		{Code: ResponseNoFreePort},
		{Code: ResponseCouldNotDetermineSpeed},
		{Code: ResponseFailedToOpenFd},
		{Code: ResponseAlreadyAttached},
		{Code: ResponseNoSuchDevice},
	}
	for _, want := range cases {
		buf := bytes.NewReader(EncodeResponse(want))
		got, err := DecodeResponse(buf)
		if err != nil {
			t.Fatalf("DecodeResponse(%v) error = %v", want, err)
		}
		if got.Code != want.Code || len(got.Devices) != 0 {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestResponseRoundTrip_ListFollowing(t *testing.T) {
	want := Response{
		Code: ResponseListFollowing,
		Devices: []BusDevice{
			{Bus: 1, Device: 2},
			{Bus: 3, Device: 4},
			{Bus: 5, Device: 6},
		},
	}
	buf := bytes.NewReader(EncodeResponse(want))
	got, err := DecodeResponse(buf)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if got.Code != want.Code || len(got.Devices) != len(want.Devices) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
	for i := range want.Devices {
		if got.Devices[i] != want.Devices[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got.Devices[i], want.Devices[i])
		}
	}
}

func TestResponseRoundTrip_EmptyList(t *testing.T) {
	want := Response{Code: ResponseListFollowing}
	buf := bytes.NewReader(EncodeResponse(want))
	got, err := DecodeResponse(buf)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if got.Code != ResponseListFollowing || len(got.Devices) != 0 {
		t.Errorf("round trip = %+v, want empty list", got)
	}
}

func TestDecodeResponse_InvalidCode(t *testing.T) {
	if _, err := DecodeResponse(bytes.NewReader([]byte{7})); err == nil {
		t.Error("expected error for code >= 7")
	}
}
