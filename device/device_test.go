/*
DESCRIPTION
  device_test.go tests the ManualInput AVDevice and MultiError.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package device

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestManualInput(t *testing.T) {
	m := NewManualInput()

	_, err := m.Write([]byte{1})
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted before start, got: %v", err)
	}

	err = m.Start()
	if err != nil {
		t.Fatalf("could not start: %v", err)
	}
	if !m.IsRunning() {
		t.Error("device should be running")
	}

	want := []byte{0xff, 0xd8, 0xff, 0xd9}
	go func() {
		m.Write(want)
		m.Stop()
	}()

	got, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected data\ngot: %v\nwant: %v", got, want)
	}
	if m.IsRunning() {
		t.Error("device should not be running")
	}
}

func TestMultiError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	me := MultiError{errA, errB}
	if !errors.Is(me, errB) {
		t.Error("expected MultiError to contain errB")
	}
	if me.Error() != "[a b]" {
		t.Errorf("unexpected error string: %s", me.Error())
	}
}
