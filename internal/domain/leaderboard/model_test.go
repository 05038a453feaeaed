package leaderboard

import "testing"

func TestParsePlatform(t *testing.T) {
	cases := map[string]Platform{
		"pc":     PlatformPC,
		" PS4 ":  PlatformPS4,
		"ps5":    PlatformPS4,
		"xbox":   PlatformXbox,
		"X1":     PlatformXbox,
		"Switch": PlatformSwitch,
	}
	for raw, want := range cases {
		got, err := ParsePlatform(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePlatform(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParsePlatform("stadia"); err == nil {
		t.Fatalf("expected unknown platform error")
	}
}

func TestScopeKeyIsStablePerPlatformAndLimit(t *testing.T) {
	a := Scope{Platform: PlatformPC, Limit: 500}
	b := Scope{Platform: PlatformPC, Limit: 100}
	if a.Key() == b.Key() {
		t.Fatalf("different limits must not share a key")
	}
	if a.Key() != "leaderboard:PC:limit=500" {
		t.Fatalf("unexpected key %q", a.Key())
	}
}
