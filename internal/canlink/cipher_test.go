package canlink

import (
	"bytes"
	"testing"
)

func TestDeriveKeyGoldenVector(t *testing.T) {
	// Captured from a real unlock exchange.
	const (
		cypher = 0x8100080D
		seed   = 0x12345678
		want   = 0xA27FA98B
	)
	if got := DeriveKey(cypher, seed); got != want {
		t.Errorf("DeriveKey(0x%08X, 0x%08X) = 0x%08X, want 0x%08X", cypher, seed, got, want)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	first := DeriveKey(0x8100080D, 0xDEADBEEF)
	for i := 0; i < 10; i++ {
		if got := DeriveKey(0x8100080D, 0xDEADBEEF); got != first {
			t.Fatalf("call %d: 0x%08X, want 0x%08X", i, got, first)
		}
	}
}

func TestDeriveKeySeedSensitivity(t *testing.T) {
	base := DeriveKey(0x8100080D, 0x12345678)
	if got := DeriveKey(0x8100080D, 0x12345679); got == base {
		t.Errorf("adjacent seeds derived the same key 0x%08X", base)
	}
	if got := DeriveKey(0x8100080E, 0x12345678); got == base {
		t.Errorf("adjacent cyphers derived the same key 0x%08X", base)
	}
}

func TestUnpackSeed(t *testing.T) {
	seed, err := UnpackSeed([]byte{0x78, 0x56, 0x34, 0x12})
	if err != nil {
		t.Fatalf("unpack error: %v", err)
	}
	if seed != 0x12345678 {
		t.Errorf("seed = 0x%08X, want 0x12345678", seed)
	}
}

func TestUnpackSeedWrongLength(t *testing.T) {
	for _, data := range [][]byte{nil, {0x01}, {0x01, 0x02, 0x03}, {0x01, 0x02, 0x03, 0x04, 0x05}} {
		if _, err := UnpackSeed(data); err == nil {
			t.Errorf("UnpackSeed(% X): expected error", data)
		}
	}
}

func TestPackKeyLittleEndian(t *testing.T) {
	got := PackKey(0xA27FA98B)
	want := []byte{0x8B, 0xA9, 0x7F, 0xA2}
	if !bytes.Equal(got, want) {
		t.Errorf("PackKey = % X, want % X", got, want)
	}
}

func TestSeedKeyWireRoundTrip(t *testing.T) {
	wire := PackKey(0x12345678)
	seed, err := UnpackSeed(wire)
	if err != nil {
		t.Fatalf("unpack error: %v", err)
	}
	if seed != 0x12345678 {
		t.Errorf("round trip = 0x%08X, want 0x12345678", seed)
	}
}
