package canlink

import (
	"bytes"
	"sync"
	"testing"
)

func TestBuildGetDevices(t *testing.T) {
	got := BuildGetDevices(0x0103, 0x01, 0x00, 0xFF)
	want := []byte{0x03, 0x01, 0x01, 0x01, 0x00, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildGetDevicesMetadata(t *testing.T) {
	got := BuildGetDevicesMetadata(0x0002, 0x02, 0x05, 0x10)
	want := []byte{0x02, 0x00, 0x02, 0x02, 0x05, 0x10}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildActionSwitch(t *testing.T) {
	got, err := BuildActionSwitch(1, 0x02, true, []uint8{0x05})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	want := []byte{0x01, 0x00, 0x40, 0x02, 0x01, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildActionSwitchOffBatch(t *testing.T) {
	got, err := BuildActionSwitch(0x0200, 0x01, false, []uint8{0x03, 0x07, 0x09})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	want := []byte{0x00, 0x02, 0x40, 0x01, 0x00, 0x03, 0x07, 0x09}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildActionSwitchInvalidDeviceList(t *testing.T) {
	if _, err := BuildActionSwitch(1, 0x01, true, nil); err == nil {
		t.Error("empty device list: expected error")
	}
	if _, err := BuildActionSwitch(1, 0x01, true, make([]uint8, 256)); err == nil {
		t.Error("256 device ids: expected error")
	}
	// 255 ids is the ceiling, not an error.
	if _, err := BuildActionSwitch(1, 0x01, true, make([]uint8, 255)); err != nil {
		t.Errorf("255 device ids: unexpected error: %v", err)
	}
}

func TestBuildActionMovement(t *testing.T) {
	got := BuildActionMovement(0x0007, 0x03, 0x02, MoveReverse)
	want := []byte{0x07, 0x00, 0x41, 0x03, 0x02, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildActionDimmable(t *testing.T) {
	tests := []struct {
		name       string
		mode       DimmableMode
		brightness int
		want       []byte
	}{
		{"on half", DimmableOn, 128, []byte{0x01, 0x00, 0x43, 0x01, 0x02, 0x01, 0x80, 0x00}},
		{"off", DimmableOff, 0, []byte{0x01, 0x00, 0x43, 0x01, 0x02, 0x00, 0x00, 0x00}},
		{"restore", DimmableRestore, 0, []byte{0x01, 0x00, 0x43, 0x01, 0x02, 0x7F, 0x00, 0x00}},
		{"brightness clamps high", DimmableOn, 300, []byte{0x01, 0x00, 0x43, 0x01, 0x02, 0x01, 0xFF, 0x00}},
		{"brightness clamps low", DimmableOn, -5, []byte{0x01, 0x00, 0x43, 0x01, 0x02, 0x01, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildActionDimmable(1, 0x01, 0x02, tt.mode, tt.brightness)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % X, want % X", got, tt.want)
			}
		})
	}
}

func TestBuildActionHvac(t *testing.T) {
	// heat mode in bits 0-2, heat source in 4-5, fan mode in 6-7.
	got := BuildActionHvac(0x0009, 0x04, 0x01, HvacHeat, HeatSourceHeatPump, FanLow, 62, 78)
	packed := byte(0x02) | byte(0x01)<<4 | byte(0x01)<<6
	want := []byte{0x09, 0x00, 0x45, 0x04, 0x01, packed, 62, 78}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestBuildActionHvacClampsTemps(t *testing.T) {
	got := BuildActionHvac(1, 0x01, 0x01, HvacAuto, HeatSourceFurnace, FanAuto, -20, 400)
	if got[6] != 0 {
		t.Errorf("low trip = %d, want clamp to 0", got[6])
	}
	if got[7] != 255 {
		t.Errorf("high trip = %d, want clamp to 255", got[7])
	}
}

func TestIDSequenceSkipsReserved(t *testing.T) {
	s := NewIDSequence()
	s.next = commandIDMax - 1

	seen := []uint16{s.Next(), s.Next(), s.Next(), s.Next()}
	want := []uint16{commandIDMax - 1, commandIDMax, commandIDMin, commandIDMin + 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("id %d = 0x%04X, want 0x%04X", i, seen[i], want[i])
		}
	}
	for _, id := range seen {
		if id == 0x0000 || id == 0xFFFF {
			t.Errorf("reserved id 0x%04X issued", id)
		}
	}
}

func TestIDSequenceConcurrent(t *testing.T) {
	s := NewIDSequence()

	const goroutines, perG = 8, 500
	var mu sync.Mutex
	counts := make(map[uint16]int)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				id := s.Next()
				mu.Lock()
				counts[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 4000 ids drawn from a 65534-wide range without wrapping: all unique.
	if len(counts) != goroutines*perG {
		t.Errorf("unique ids = %d, want %d", len(counts), goroutines*perG)
	}
	for id := range counts {
		if id == 0x0000 || id == 0xFFFF {
			t.Errorf("reserved id 0x%04X issued", id)
		}
	}
}

func TestCommandTypeNames(t *testing.T) {
	if got := CmdActionSwitch.String(); got != "ActionSwitch" {
		t.Errorf("ActionSwitch name = %q", got)
	}
	if got := CommandType(0x99).String(); got != "0x99" {
		t.Errorf("unknown command name = %q", got)
	}
}
