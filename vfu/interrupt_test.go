package vfu

import (
	"errors"
	"testing"
)

func TestMSIXInterrupter_RaiseCallsTriggerWithVector(t *testing.T) {
	var gotVector uint32 = 99
	interrupter := NewMSIXInterrupter(3, func(vector uint32) error {
		gotVector = vector
		return nil
	})

	interrupter.Raise()

	if gotVector != 3 {
		t.Errorf("trigger vector = %d, want 3", gotVector)
	}
}

func TestMSIXInterrupter_RaiseSuppressesTriggerError(t *testing.T) {
	interrupter := NewMSIXInterrupter(0, func(uint32) error {
		return errors.New("eventfd write failed")
	})

	interrupter.Raise() // must not panic
}
