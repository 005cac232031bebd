package common

import (
	"strings"
	"testing"
)

// ---------- RandomString ----------

func TestRandomString_UsesOnlyAlphabet(t *testing.T) {
	for _, alphabet := range []string{Letters, "0123456789", "ab"} {
		s, err := RandomString(alphabet, 64)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s) != 64 {
			t.Fatalf("expected length 64, got %d", len(s))
		}
		for _, r := range s {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("rune %q not in alphabet %q", r, alphabet)
			}
		}
	}
}

func TestRandomString_Empty(t *testing.T) {
	s, err := RandomString(Letters, 0)
	if err != nil || s != "" {
		t.Fatalf("expected empty string, got %q (%v)", s, err)
	}
}

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}
