package audio

import "testing"

func TestEncodeForTelephonySilenceMapping(t *testing.T) {
	out := EncodeForTelephony([]byte{0x00})
	if out[0] != SilenceCode {
		t.Errorf("sample 0x00 should map to silence code 0x%02X, got 0x%02X", SilenceCode, out[0])
	}

	out = EncodeForTelephony([]byte{0xFF})
	if out[0] <= SilenceCode {
		t.Errorf("sample 0xFF should map above the silence code, got 0x%02X", out[0])
	}
}

func TestEncodeForTelephonyBelowMidpoint(t *testing.T) {
	for _, b := range []byte{0x00, 0x01, 0x40, 0x7E, 0x7F} {
		out := EncodeForTelephony([]byte{b})
		if out[0] != SilenceCode {
			t.Errorf("sample 0x%02X below midpoint should map to silence, got 0x%02X", b, out[0])
		}
	}
}

func TestEncodeForTelephonyMonotonicAboveMidpoint(t *testing.T) {
	prev := byte(0)
	for b := 0x80; b <= 0xFF; b++ {
		out := EncodeForTelephony([]byte{byte(b)})
		if out[0] < SilenceCode {
			t.Fatalf("sample 0x%02X mapped below silence code: 0x%02X", b, out[0])
		}
		if out[0] < prev {
			t.Fatalf("mapping not monotonic at sample 0x%02X: 0x%02X < 0x%02X", b, out[0], prev)
		}
		prev = out[0]
	}
}

func TestEncodeForTelephonyLength(t *testing.T) {
	for _, n := range []int{0, 1, 160, 4096} {
		in := make([]byte, n)
		if got := len(EncodeForTelephony(in)); got != n {
			t.Errorf("output length %d for input length %d", got, n)
		}
	}
}
