package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseCountryID checks parsing never panics and valid IDs round-trip.
func FuzzParseCountryID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCountryID(input)
		if err == nil {
			roundTrip, err2 := ParseCountryID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseCountryCode checks accepted codes are always two upper-case letters.
func FuzzParseCountryCode(f *testing.F) {
	f.Add("th")
	f.Add(" DE ")
	f.Add("")
	f.Add("ÄÖ")

	f.Fuzz(func(t *testing.T, input string) {
		code, err := ParseCountryCode(input)
		if err != nil {
			return
		}
		if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
			t.Errorf("accepted malformed code %q from %q", code, input)
		}
	})
}
