package util

import "testing"

func TestFingerprint(t *testing.T) {
	got := Fingerprint("ingredient prompt")
	if got != Fingerprint("ingredient prompt") {
		t.Fatalf("expected stable fingerprint, got %s", got)
	}
	if got == Fingerprint("packaging prompt") {
		t.Fatalf("expected different prompts to differ")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("fingerprint contains non-hex character: %c", ch)
		}
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 hex characters, got %d", len(got))
	}
}
